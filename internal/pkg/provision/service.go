package provision

import (
	"fmt"
	"strings"
	"time"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/model"
	"relayhub-deploy-cli/internal/pkg/ssh"
	"relayhub-deploy-cli/pkg/utils"
)

// 服务就绪以日志证据为准：初始化完成前认证接口无意义，
// 不做带认证的探测。
const listeningMarker = "listening on"

// StartService 启动常驻容器并等待就绪。
// 总是强制重建，运行中的旧容器不代表最新配置。
func (a *Actions) StartService(r ssh.Runner, facts model.PrincipalFacts) error {
	a.logger.Info("启动应用服务（强制重建容器）")
	cmd := fmt.Sprintf("cd %s && sudo -u %s docker compose up -d --force-recreate relayhub",
		config.ConfigDir, facts.Username)
	sink := newLogWriter(a.logger, "compose-up")
	exitCode, err := r.ExecuteStream(cmd, sink)
	if err != nil {
		return utils.NewPhaseError(utils.CodeServiceStart, "service-start", err)
	}
	if exitCode != 0 {
		return utils.NewPhaseError(utils.CodeServiceStart, "service-start",
			fmt.Errorf("docker compose up 退出码 %d", exitCode))
	}

	a.logger.Infof("等待服务就绪（超时 %d 秒）", a.cfg.App.StartupTimeout)
	logsCmd := fmt.Sprintf("cd %s && docker compose logs --no-color --tail 100 relayhub", config.ConfigDir)

	outcome, err := pollUntil(2*time.Second, time.Duration(a.cfg.App.StartupTimeout)*time.Second,
		func() (bool, error) {
			result, err := r.Execute(logsCmd)
			if err != nil {
				return false, err
			}
			if result.ExitCode != 0 {
				return false, nil
			}
			return strings.Contains(result.Stdout, listeningMarker), nil
		})

	switch outcome {
	case pollSucceeded:
		a.logger.Info("服务已就绪")
		return nil
	case pollTimedOut:
		return utils.NewPhaseError(utils.CodeServiceStart, "service-start",
			fmt.Errorf("服务在 %d 秒内未输出就绪日志", a.cfg.App.StartupTimeout))
	default:
		return utils.NewPhaseError(utils.CodeServiceStart, "service-start", err)
	}
}
