// Package state 维护远端持久化的部署状态和阶段推进逻辑
package state

import (
	"encoding/json"
	"fmt"
	"path"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/model"
	"relayhub-deploy-cli/internal/pkg/logger"
	"relayhub-deploy-cli/internal/pkg/ssh"
)

// Store 通过远端会话读写状态文件
type Store struct {
	runner ssh.Runner
	logger *logger.Logger
	path   string
}

func NewStore(r ssh.Runner, log *logger.Logger) *Store {
	return &Store{
		runner: r,
		logger: log,
		path:   config.StatePath,
	}
}

// Load 读取远端状态。文件不存在或内容损坏都视为无历史状态，
// 宁可从头跑一遍幂等流程也不因状态文件崩溃。
func (s *Store) Load() *model.DeploymentState {
	result, err := s.runner.Execute(fmt.Sprintf("cat %s", s.path))
	if err != nil {
		s.logger.Warnf("读取状态文件失败，按无历史状态处理: %v", err)
		return nil
	}
	if result.ExitCode != 0 {
		return nil
	}

	var st model.DeploymentState
	if err := json.Unmarshal([]byte(result.Stdout), &st); err != nil {
		s.logger.Warnf("状态文件内容损坏，按无历史状态处理: %v", err)
		return nil
	}
	if st.DeploymentID == "" || st.Phases == nil {
		s.logger.Warn("状态文件缺少必要字段，按无历史状态处理")
		return nil
	}

	return &st
}

// Save 持久化状态。每次阶段转换后都必须调用，保证崩溃后能精确续传。
func (s *Store) Save(st *model.DeploymentState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化状态失败: %v", err)
	}

	// 状态文件在home下，账号创建前home可能还不存在
	result, err := s.runner.Execute(fmt.Sprintf("mkdir -p %s", path.Dir(s.path)))
	if err != nil {
		return fmt.Errorf("创建状态目录失败: %v", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("创建状态目录失败: %s", result.Stderr)
	}

	if err := s.runner.Upload(string(data), s.path); err != nil {
		return fmt.Errorf("写入状态文件失败: %v", err)
	}
	return nil
}

// Delete 删除远端状态文件，可重复调用
func (s *Store) Delete() error {
	result, err := s.runner.Execute(fmt.Sprintf("rm -f %s", s.path))
	if err != nil {
		return fmt.Errorf("删除状态文件失败: %v", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("删除状态文件失败: %s", result.Stderr)
	}
	return nil
}
