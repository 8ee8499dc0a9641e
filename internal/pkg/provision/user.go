package provision

import (
	"fmt"
	"strconv"
	"strings"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/model"
	"relayhub-deploy-cli/internal/pkg/ssh"
	"relayhub-deploy-cli/pkg/utils"
)

// EnsurePrincipal 创建运行账号并解析其真实uid/gid/home。
// 返回值是之后所有阶段的只读事实。
func (a *Actions) EnsurePrincipal(r ssh.Runner) (model.PrincipalFacts, error) {
	var facts model.PrincipalFacts

	// 幂等检查
	result, err := r.Execute(fmt.Sprintf("id -u %s", config.PrincipalName))
	if err != nil {
		return facts, utils.NewPhaseError(utils.CodePrincipalSetup, "principal", err)
	}

	if result.ExitCode != 0 {
		a.logger.Infof("创建运行账号 %s", config.PrincipalName)
		if err := a.createPrincipal(r); err != nil {
			return facts, utils.NewPhaseError(utils.CodePrincipalSetup, "principal", err)
		}
	} else {
		a.logger.Infof("运行账号 %s 已存在，跳过创建", config.PrincipalName)
	}

	// 无条件保证docker组成员身份，重复执行无副作用
	result, err = r.Execute(fmt.Sprintf("usermod -aG docker %s", config.PrincipalName))
	if err != nil {
		return facts, utils.NewPhaseError(utils.CodePrincipalSetup, "principal", err)
	}
	if result.ExitCode != 0 {
		return facts, utils.NewPhaseError(utils.CodePrincipalSetup, "principal",
			fmt.Errorf("加入docker组失败: %s", result.Stderr))
	}

	// 解析真实身份作为后续阶段的基准事实
	facts, err = a.resolvePrincipal(r)
	if err != nil {
		return facts, utils.NewPhaseError(utils.CodePrincipalSetup, "principal", err)
	}

	a.logger.Infof("运行账号就绪: %s uid=%d gid=%d home=%s",
		facts.Username, facts.UID, facts.GID, facts.Home)
	return facts, nil
}

func (a *Actions) createPrincipal(r ssh.Runner) error {
	// 状态文件可能已在home下创建过目录，useradd不依赖-m
	result, err := r.Execute(fmt.Sprintf("mkdir -p %s", config.PrincipalHome))
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("创建home目录失败: %s", result.Stderr)
	}

	// 优先使用约定uid，被占用则退回系统自动分配
	uidFlag := fmt.Sprintf("-u %d", config.PreferredUID)
	result, err = r.Execute(fmt.Sprintf("getent passwd %d", config.PreferredUID))
	if err != nil {
		return err
	}
	if result.ExitCode == 0 {
		a.logger.Warnf("uid %d 已被占用，改用系统自动分配", config.PreferredUID)
		uidFlag = ""
	}

	cmd := fmt.Sprintf("useradd %s -U -d %s -s /bin/bash %s",
		uidFlag, config.PrincipalHome, config.PrincipalName)
	result, err = r.Execute(cmd)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("useradd 退出码 %d: %s", result.ExitCode, result.Stderr)
	}

	result, err = r.Execute(fmt.Sprintf("chown %s:%s %s",
		config.PrincipalName, config.PrincipalName, config.PrincipalHome))
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("chown home目录失败: %s", result.Stderr)
	}

	return nil
}

func (a *Actions) resolvePrincipal(r ssh.Runner) (model.PrincipalFacts, error) {
	var facts model.PrincipalFacts
	facts.Username = config.PrincipalName

	result, err := r.Execute(fmt.Sprintf("id -u %s", config.PrincipalName))
	if err != nil {
		return facts, err
	}
	if result.ExitCode != 0 {
		return facts, fmt.Errorf("解析uid失败: %s", result.Stderr)
	}
	if facts.UID, err = strconv.Atoi(strings.TrimSpace(result.Stdout)); err != nil {
		return facts, fmt.Errorf("uid输出格式无效: %q", result.Stdout)
	}

	result, err = r.Execute(fmt.Sprintf("id -g %s", config.PrincipalName))
	if err != nil {
		return facts, err
	}
	if result.ExitCode != 0 {
		return facts, fmt.Errorf("解析gid失败: %s", result.Stderr)
	}
	if facts.GID, err = strconv.Atoi(strings.TrimSpace(result.Stdout)); err != nil {
		return facts, fmt.Errorf("gid输出格式无效: %q", result.Stdout)
	}

	result, err = r.Execute(fmt.Sprintf("getent passwd %s | cut -d: -f6", config.PrincipalName))
	if err != nil {
		return facts, err
	}
	if result.ExitCode != 0 || strings.TrimSpace(result.Stdout) == "" {
		return facts, fmt.Errorf("解析home目录失败")
	}
	facts.Home = strings.TrimSpace(result.Stdout)

	return facts, nil
}
