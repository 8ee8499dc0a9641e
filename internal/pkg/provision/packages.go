package provision

import (
	"fmt"
	"strings"

	"relayhub-deploy-cli/internal/pkg/ssh"
	"relayhub-deploy-cli/pkg/utils"
)

// 基础软件包，jq作为标志性二进制用于幂等检查
var basePackages = []string{"ca-certificates", "curl", "git", "jq", "openssl"}

const packageLogPath = "/tmp/relayhub-packages.log"

// InstallBasePackages 安装基础软件包。已存在标志性二进制则跳过。
func (a *Actions) InstallBasePackages(r ssh.Runner) error {
	// 幂等检查
	if result, err := r.Execute("command -v jq"); err == nil && result.ExitCode == 0 {
		a.logger.Info("基础软件包已安装，跳过")
		return nil
	}

	a.logger.Info("Step 1: 刷新软件包索引")
	cmd := fmt.Sprintf("export DEBIAN_FRONTEND=noninteractive && apt-get update -y > %s 2>&1", packageLogPath)
	result, err := r.Execute(cmd)
	if err != nil {
		return utils.NewPhaseError(utils.CodePackageInstall, "base-packages", err)
	}
	if result.ExitCode != 0 {
		return utils.NewPhaseError(utils.CodePackageInstall, "base-packages",
			fmt.Errorf("apt-get update 退出码 %d: %s", result.ExitCode, a.tailRemoteLog(r, packageLogPath)))
	}

	a.logger.Infof("Step 2: 安装软件包: %s", strings.Join(basePackages, " "))
	cmd = fmt.Sprintf("export DEBIAN_FRONTEND=noninteractive && apt-get install -y %s >> %s 2>&1",
		strings.Join(basePackages, " "), packageLogPath)
	result, err = r.Execute(cmd)
	if err != nil {
		return utils.NewPhaseError(utils.CodePackageInstall, "base-packages", err)
	}
	if result.ExitCode != 0 {
		return utils.NewPhaseError(utils.CodePackageInstall, "base-packages",
			fmt.Errorf("apt-get install 退出码 %d: %s", result.ExitCode, a.tailRemoteLog(r, packageLogPath)))
	}

	// 自验证
	result, err = r.Execute("command -v jq")
	if err != nil || result.ExitCode != 0 {
		return utils.NewPhaseError(utils.CodePackageInstall, "base-packages",
			fmt.Errorf("安装后验证失败，jq不可用"))
	}

	a.logger.Info("基础软件包安装完成")
	return nil
}

// tailRemoteLog 读取远端日志尾部用于错误报告
func (a *Actions) tailRemoteLog(r ssh.Runner, path string) string {
	result, err := r.Execute(fmt.Sprintf("tail -n 20 %s", path))
	if err != nil || result.Stdout == "" {
		return "（无法读取远端日志）"
	}
	return result.Stdout
}
