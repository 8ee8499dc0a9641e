package provision

import (
	"fmt"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/model"
	"relayhub-deploy-cli/internal/pkg/ssh"
	"relayhub-deploy-cli/pkg/utils"
)

// RunFirstTimeSetup 执行首次初始化向导。
// 返回初始化是否已完成。完成标记文件是唯一权威依据，
// 交互会话的退出码不作数（向导里Ctrl+C也会导致非零退出）。
func (a *Actions) RunFirstTimeSetup(r ssh.Runner, facts model.PrincipalFacts, proceed bool) (bool, error) {
	// 幂等检查：标记存在则整体跳过
	done, err := a.onboardingMarkerExists(r)
	if err != nil {
		return false, utils.NewPhaseError(utils.CodeFirstRunSetup, "first-run-setup", err)
	}
	if done {
		a.logger.Info("初始化向导已完成过，跳过")
		return true, nil
	}

	if !proceed {
		// 操作员选择跳过：打印手动操作说明，不算失败
		a.printManualInstructions(facts)
		return false, nil
	}

	a.logger.Info("启动交互式初始化向导")
	cmd := fmt.Sprintf("cd %s && sudo -u %s docker compose run --rm relayhub --onboarding",
		config.ConfigDir, facts.Username)
	if err := r.Interactive(cmd); err != nil && !ssh.IsExitError(err) {
		return false, utils.NewPhaseError(utils.CodeFirstRunSetup, "first-run-setup", err)
	}

	// 会话结束后以标记为准重新判断
	done, err = a.onboardingMarkerExists(r)
	if err != nil {
		return false, utils.NewPhaseError(utils.CodeFirstRunSetup, "first-run-setup", err)
	}
	if !done {
		return false, utils.NewPhaseError(utils.CodeFirstRunSetup, "first-run-setup",
			fmt.Errorf("向导结束但未生成完成标记 %s", config.OnboardingMarker))
	}

	a.logger.Info("初始化向导完成")
	return true, nil
}

func (a *Actions) onboardingMarkerExists(r ssh.Runner) (bool, error) {
	result, err := r.Execute(fmt.Sprintf("test -f %s", config.OnboardingMarker))
	if err != nil {
		return false, err
	}
	return result.ExitCode == 0, nil
}

func (a *Actions) printManualInstructions(facts model.PrincipalFacts) {
	fmt.Println()
	fmt.Println("已跳过初始化向导，稍后可在目标主机上手动执行:")
	fmt.Printf("  ssh root@<目标主机>\n")
	fmt.Printf("  cd %s\n", config.ConfigDir)
	fmt.Printf("  sudo -u %s docker compose run --rm relayhub --onboarding\n", facts.Username)
	fmt.Println()
}
