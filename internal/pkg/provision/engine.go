package provision

import (
	"fmt"
	"io"
	"net/http"

	"relayhub-deploy-cli/internal/pkg/ssh"
	"relayhub-deploy-cli/pkg/utils"
)

const (
	dockerInstallURL  = "https://get.docker.com"
	dockerScriptPath  = "/tmp/relayhub-get-docker.sh"
	dockerInstallLog  = "/tmp/relayhub-docker-install.log"
	engineVersionCmd  = "docker version --format '{{.Server.Version}}'"
	composeVersionCmd = "docker compose version --short"
)

// InstallContainerEngine 安装容器引擎。引擎版本命令可用则跳过。
func (a *Actions) InstallContainerEngine(r ssh.Runner) error {
	// 幂等检查：机器可读的版本输出
	if result, err := r.Execute(engineVersionCmd); err == nil && result.ExitCode == 0 {
		a.logger.Infof("容器引擎已安装（版本 %s），跳过", result.Stdout)
		return nil
	}

	a.logger.Info("Step 1: 下载容器引擎安装脚本")
	script, err := a.fetchInstallScript()
	if err != nil {
		return utils.NewPhaseError(utils.CodeEngineInstall, "container-engine", err)
	}
	a.logger.Infof("脚本下载成功，大小: %d bytes", len(script))

	a.logger.Infof("Step 2: 上传安装脚本到 %s", dockerScriptPath)
	if err := r.Upload(string(script), dockerScriptPath); err != nil {
		return utils.NewPhaseError(utils.CodeEngineInstall, "container-engine",
			fmt.Errorf("上传安装脚本失败: %v", err))
	}

	a.logger.Info("Step 3: 执行安装脚本")
	cmd := fmt.Sprintf("sh %s > %s 2>&1", dockerScriptPath, dockerInstallLog)
	result, err := r.Execute(cmd)
	if err != nil {
		return utils.NewPhaseError(utils.CodeEngineInstall, "container-engine", err)
	}
	if result.ExitCode != 0 {
		return utils.NewPhaseError(utils.CodeEngineInstall, "container-engine",
			fmt.Errorf("安装脚本退出码 %d: %s", result.ExitCode, a.tailRemoteLog(r, dockerInstallLog)))
	}

	a.logger.Info("Step 4: 启用并启动引擎服务")
	result, err = r.Execute("systemctl enable --now docker")
	if err != nil {
		return utils.NewPhaseError(utils.CodeEngineInstall, "container-engine", err)
	}
	if result.ExitCode != 0 {
		return utils.NewPhaseError(utils.CodeEngineInstall, "container-engine",
			fmt.Errorf("启动docker服务失败: %s", result.Stderr))
	}

	// 自验证
	result, err = r.Execute(engineVersionCmd)
	if err != nil || result.ExitCode != 0 {
		return utils.NewPhaseError(utils.CodeEngineInstall, "container-engine",
			fmt.Errorf("安装后验证失败，docker不可用"))
	}

	a.logger.Infof("容器引擎安装完成，版本 %s", result.Stdout)
	return nil
}

// InstallComposePlugin 安装compose插件。插件版本命令可用则跳过。
func (a *Actions) InstallComposePlugin(r ssh.Runner) error {
	if result, err := r.Execute(composeVersionCmd); err == nil && result.ExitCode == 0 {
		a.logger.Infof("compose插件已安装（版本 %s），跳过", result.Stdout)
		return nil
	}

	a.logger.Info("安装docker-compose-plugin")
	cmd := fmt.Sprintf("export DEBIAN_FRONTEND=noninteractive && apt-get install -y docker-compose-plugin > %s 2>&1", dockerInstallLog)
	result, err := r.Execute(cmd)
	if err != nil {
		return utils.NewPhaseError(utils.CodeComposePlugin, "compose-plugin", err)
	}
	if result.ExitCode != 0 {
		return utils.NewPhaseError(utils.CodeComposePlugin, "compose-plugin",
			fmt.Errorf("安装退出码 %d: %s", result.ExitCode, a.tailRemoteLog(r, dockerInstallLog)))
	}

	result, err = r.Execute(composeVersionCmd)
	if err != nil || result.ExitCode != 0 {
		return utils.NewPhaseError(utils.CodeComposePlugin, "compose-plugin",
			fmt.Errorf("安装后验证失败，docker compose不可用"))
	}

	a.logger.Infof("compose插件安装完成，版本 %s", result.Stdout)
	return nil
}

func (a *Actions) fetchInstallScript() ([]byte, error) {
	resp, err := http.Get(dockerInstallURL)
	if err != nil {
		return nil, fmt.Errorf("下载安装脚本失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载脚本失败: HTTP %d", resp.StatusCode)
	}

	script, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取脚本内容失败: %v", err)
	}

	return script, nil
}
