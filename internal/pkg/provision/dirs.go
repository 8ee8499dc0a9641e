package provision

import (
	"fmt"
	"strings"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/model"
	"relayhub-deploy-cli/internal/pkg/ssh"
	"relayhub-deploy-cli/pkg/utils"
)

// EnsureDirectories 创建固定目录布局并收紧凭证目录权限，全部操作可重复执行
func (a *Actions) EnsureDirectories(r ssh.Runner, facts model.PrincipalFacts) error {
	dirs := []string{
		config.ConfigDir,
		config.CredentialsDir,
		config.DataDir,
		config.LogDir,
		config.SourceDir,
	}

	a.logger.Infof("创建目录布局: %s", strings.Join(dirs, " "))
	result, err := r.Execute(fmt.Sprintf("mkdir -p %s", strings.Join(dirs, " ")))
	if err != nil {
		return utils.NewPhaseError(utils.CodeDirectoryLayout, "directories", err)
	}
	if result.ExitCode != 0 {
		return utils.NewPhaseError(utils.CodeDirectoryLayout, "directories",
			fmt.Errorf("mkdir 退出码 %d: %s", result.ExitCode, result.Stderr))
	}

	result, err = r.Execute(fmt.Sprintf("chown -R %d:%d %s", facts.UID, facts.GID, strings.Join(dirs, " ")))
	if err != nil {
		return utils.NewPhaseError(utils.CodeDirectoryLayout, "directories", err)
	}
	if result.ExitCode != 0 {
		return utils.NewPhaseError(utils.CodeDirectoryLayout, "directories",
			fmt.Errorf("chown 退出码 %d: %s", result.ExitCode, result.Stderr))
	}

	// 凭证目录仅属主可访问
	result, err = r.Execute(fmt.Sprintf("chmod 700 %s", config.CredentialsDir))
	if err != nil {
		return utils.NewPhaseError(utils.CodeDirectoryLayout, "directories", err)
	}
	if result.ExitCode != 0 {
		return utils.NewPhaseError(utils.CodeDirectoryLayout, "directories",
			fmt.Errorf("chmod 凭证目录失败: %s", result.Stderr))
	}

	a.logger.Info("目录布局就绪")
	return nil
}
