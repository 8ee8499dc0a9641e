package provision

import (
	"fmt"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/pkg/ssh"
)

// CleanTarget 彻底清理目标主机上的部署痕迹：停删容器、删镜像、
// 删运行账号及home、删状态文件。不可逆，仅在操作员显式要求时执行。
func (a *Actions) CleanTarget(r ssh.Runner) error {
	a.logger.Warn("开始清理目标主机上的既有部署")

	steps := []struct {
		desc string
		cmd  string
	}{
		{"停止并删除compose服务", fmt.Sprintf("cd %s 2>/dev/null && docker compose down --remove-orphans || true", config.ConfigDir)},
		{"删除残留容器", "docker ps -aq --filter name=relayhub | xargs -r docker rm -f"},
		{"删除应用镜像", "docker images 'relayhub/relayhub' -q | sort -u | xargs -r docker rmi -f"},
		{"删除运行账号及home", fmt.Sprintf("id -u %s >/dev/null 2>&1 && userdel -r %s || true", config.PrincipalName, config.PrincipalName)},
		{"删除残留home目录", fmt.Sprintf("rm -rf %s", config.PrincipalHome)},
	}

	for _, step := range steps {
		a.logger.Infof("清理: %s", step.desc)
		result, err := r.Execute(step.cmd)
		if err != nil {
			return fmt.Errorf("%s失败: %v", step.desc, err)
		}
		if result.ExitCode != 0 {
			// docker未安装等情况不阻断清理
			a.logger.Warnf("%s返回退出码 %d: %s", step.desc, result.ExitCode, result.Stderr)
		}
	}

	a.logger.Warn("目标主机清理完成")
	return nil
}
