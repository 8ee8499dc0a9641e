package provision

import (
	"fmt"
	"strings"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/model"
	"relayhub-deploy-cli/internal/pkg/ssh"
	"relayhub-deploy-cli/pkg/utils"
)

// ImageRef 返回指定分支的镜像标签
func ImageRef(branch string) string {
	return fmt.Sprintf("relayhub/relayhub:%s", branch)
}

// BuildImage 同步源码并构建应用镜像。
// 已存在的镜像必须通过可运行性验证才被信任：上次构建中断可能留下损坏的已打标镜像。
func (a *Actions) BuildImage(r ssh.Runner, facts model.PrincipalFacts, branch string) (string, error) {
	image := ImageRef(branch)

	// 幂等检查：存在且能以目标uid运行才算满足
	result, err := r.Execute(fmt.Sprintf("docker image inspect %s --format '{{.Id}}'", image))
	if err != nil {
		return "", utils.NewPhaseError(utils.CodeImageBuild, "image-build", err)
	}
	if result.ExitCode == 0 {
		if a.verifyImageRunnable(r, facts, image) {
			a.logger.Infof("镜像 %s 已存在且验证通过，跳过构建", image)
			return image, nil
		}
		a.logger.Warnf("镜像 %s 存在但验证失败，删除后重建", image)
		if result, err = r.Execute(fmt.Sprintf("docker rmi -f %s", image)); err != nil {
			return "", utils.NewPhaseError(utils.CodeImageBuild, "image-build", err)
		}
		if result.ExitCode != 0 {
			return "", utils.NewPhaseError(utils.CodeImageBuild, "image-build",
				fmt.Errorf("删除损坏镜像失败，退出码 %d: %s", result.ExitCode, result.Stderr))
		}
	}

	if err := a.syncSource(r, branch); err != nil {
		return "", utils.NewPhaseError(utils.CodeImageBuild, "image-build", err)
	}

	a.logger.Infof("构建镜像 %s", image)
	sink := newLogWriter(a.logger, "docker-build")
	exitCode, err := r.ExecuteStream(fmt.Sprintf("docker build -t %s %s", image, config.SourceDir), sink)
	if err != nil {
		return "", utils.NewPhaseError(utils.CodeImageBuild, "image-build", err)
	}
	if exitCode != 0 {
		return "", utils.NewPhaseError(utils.CodeImageBuild, "image-build",
			fmt.Errorf("docker build 退出码 %d", exitCode))
	}

	// 自验证
	if !a.verifyImageRunnable(r, facts, image) {
		return "", utils.NewPhaseError(utils.CodeImageBuild, "image-build",
			fmt.Errorf("构建后的镜像无法以uid %d 运行", facts.UID))
	}

	a.logger.Infof("镜像 %s 构建完成", image)
	return image, nil
}

// syncSource 首次clone，之后fetch并硬重置到目标分支
func (a *Actions) syncSource(r ssh.Runner, branch string) error {
	result, err := r.Execute(fmt.Sprintf("test -d %s/.git", config.SourceDir))
	if err != nil {
		return err
	}

	if result.ExitCode != 0 {
		a.logger.Infof("克隆源码仓库 %s（分支 %s）", a.cfg.App.RepoURL, branch)
		sink := newLogWriter(a.logger, "git-clone")
		exitCode, err := r.ExecuteStream(fmt.Sprintf("git clone --branch %s %s %s",
			branch, a.cfg.App.RepoURL, config.SourceDir), sink)
		if err != nil {
			return err
		}
		if exitCode != 0 {
			return fmt.Errorf("git clone 退出码 %d", exitCode)
		}
		return nil
	}

	a.logger.Infof("更新源码到分支 %s", branch)
	cmd := fmt.Sprintf("cd %s && git fetch origin && git checkout %s && git reset --hard origin/%s",
		config.SourceDir, branch, branch)
	sink := newLogWriter(a.logger, "git-sync")
	exitCode, err := r.ExecuteStream(cmd, sink)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("git 同步退出码 %d", exitCode)
	}
	return nil
}

// verifyImageRunnable 以目标uid运行镜像执行id -u，输出一致才算可用
func (a *Actions) verifyImageRunnable(r ssh.Runner, facts model.PrincipalFacts, image string) bool {
	cmd := fmt.Sprintf("docker run --rm --user %d:%d %s id -u", facts.UID, facts.GID, image)
	result, err := r.Execute(cmd)
	if err != nil || result.ExitCode != 0 {
		return false
	}
	return strings.TrimSpace(result.Stdout) == fmt.Sprintf("%d", facts.UID)
}
