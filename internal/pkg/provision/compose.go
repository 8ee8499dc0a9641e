package provision

import (
	"fmt"
	"strings"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/model"
	"relayhub-deploy-cli/internal/pkg/ssh"
	"relayhub-deploy-cli/pkg/utils"
)

// compose文件只含 ${VAR} 占位符，具体值放在旁边的环境文件里，
// 由容器引擎在启动时替换，compose文件本身与主机无关。
const composeTemplate = `services:
  relayhub:
    image: ${RELAYHUB_IMAGE}
    container_name: relayhub
    user: "${RELAYHUB_UID}:${RELAYHUB_GID}"
    restart: unless-stopped
    ports:
      - "${RELAYHUB_BIND}:${RELAYHUB_PORT}:8790"
    volumes:
      - ${RELAYHUB_CONFIG_DIR}:/app/config
      - ${RELAYHUB_DATA_DIR}:/app/data
      - ${RELAYHUB_LOG_DIR}:/app/logs
    environment:
      - RELAYHUB_HOME=/app/config
      - RELAYHUB_TOKEN=${RELAYHUB_TOKEN}
`

// RenderEnvFile 生成环境文件内容，包含所有占位符的具体值
func RenderEnvFile(cfg *config.Config, facts model.PrincipalFacts, image, token string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "RELAYHUB_IMAGE=%s\n", image)
	fmt.Fprintf(&b, "RELAYHUB_UID=%d\n", facts.UID)
	fmt.Fprintf(&b, "RELAYHUB_GID=%d\n", facts.GID)
	fmt.Fprintf(&b, "RELAYHUB_HOME=%s\n", facts.Home)
	fmt.Fprintf(&b, "RELAYHUB_CONFIG_DIR=%s\n", config.ConfigDir)
	fmt.Fprintf(&b, "RELAYHUB_DATA_DIR=%s\n", config.DataDir)
	fmt.Fprintf(&b, "RELAYHUB_LOG_DIR=%s\n", config.LogDir)
	fmt.Fprintf(&b, "RELAYHUB_BIND=%s\n", cfg.App.BindAddress)
	fmt.Fprintf(&b, "RELAYHUB_PORT=%d\n", config.GatewayPort)
	fmt.Fprintf(&b, "RELAYHUB_TOKEN=%s\n", token)
	return b.String()
}

// UploadCompose 上传compose文件和环境文件并交给运行账号
func (a *Actions) UploadCompose(r ssh.Runner, facts model.PrincipalFacts, image, token string) error {
	a.logger.Infof("上传compose配置到 %s", config.ComposePath)
	if err := r.Upload(composeTemplate, config.ComposePath); err != nil {
		return utils.NewPhaseError(utils.CodeComposeUpload, "compose-upload", err)
	}

	envContent := RenderEnvFile(a.cfg, facts, image, token)
	if err := r.Upload(envContent, config.EnvFilePath); err != nil {
		return utils.NewPhaseError(utils.CodeComposeUpload, "compose-upload", err)
	}

	cmd := fmt.Sprintf("chown %d:%d %s %s && chmod 600 %s",
		facts.UID, facts.GID, config.ComposePath, config.EnvFilePath, config.EnvFilePath)
	result, err := r.Execute(cmd)
	if err != nil {
		return utils.NewPhaseError(utils.CodeComposeUpload, "compose-upload", err)
	}
	if result.ExitCode != 0 {
		return utils.NewPhaseError(utils.CodeComposeUpload, "compose-upload",
			fmt.Errorf("设置compose文件属主失败: %s", result.Stderr))
	}

	a.logger.Info("compose配置上传完成")
	return nil
}
