package service

import (
	"fmt"
	"strings"
	"time"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/model"
	"relayhub-deploy-cli/internal/pkg/artifact"
	"relayhub-deploy-cli/internal/pkg/logger"
	"relayhub-deploy-cli/internal/pkg/provision"
	sshpkg "relayhub-deploy-cli/internal/pkg/ssh"
	"relayhub-deploy-cli/internal/pkg/state"
	"relayhub-deploy-cli/pkg/utils"
)

type DeployService struct {
	cfg            *config.Config
	logger         *logger.Logger
	pairingService *PairingService
}

func NewDeployService(cfg *config.Config, pairingService *PairingService, log *logger.Logger) *DeployService {
	return &DeployService{
		cfg:            cfg,
		logger:         log,
		pairingService: pairingService,
	}
}

// Deploy 执行完整部署：校验输入、建立连接、驱动阶段状态机、
// 写入实例记录，最后视情况进入配对自动化。
// 连接在所有退出路径上都会关闭。
func (s *DeployService) Deploy(plan *model.DeployPlan) error {
	// 任何网络调用之前先做本地校验
	if err := s.validatePlan(plan); err != nil {
		return err
	}

	client := sshpkg.NewClient(sshpkg.Config{
		Host:           plan.Host,
		Port:           plan.Port,
		Username:       plan.Username,
		PrivateKeyPath: plan.PrivateKeyPath,
		ConnectTimeout: time.Duration(s.cfg.SSH.ConnectTimeout) * time.Second,
		MaxRetries:     uint64(s.cfg.SSH.MaxRetries),
	}, s.logger)

	if err := client.Connect(); err != nil {
		return utils.NewConnectionError(err)
	}
	defer client.Close()

	s.printConnectionDetails(client)

	// root校验是独立的失败类别，提示方向与连接失败完全不同
	if err := s.verifyPrivileged(client); err != nil {
		return err
	}

	s.checkSystemRequirements(client)

	actions := provision.NewActions(s.cfg, s.logger)
	store := state.NewStore(client, s.logger)
	machine := state.NewMachine(actions, store, s.logger)

	st, err := machine.Run(client, plan)
	if err != nil {
		s.printFailure(err)
		return err
	}

	path, err := artifact.Write(artifact.Build(plan, st))
	if err != nil {
		return err
	}
	s.logger.Infof("实例记录已写入 %s", path)

	token, tokenErr := actions.ExtractToken(client)
	if tokenErr != nil {
		token = ""
	}

	s.printSummary(plan, st)

	if !plan.SkipPairing {
		if err := s.pairingService.Run(client, plan, token); err != nil {
			// 配对失败不影响已完成的部署
			s.logger.Warnf("设备配对自动化未完成: %v", err)
		}
	}

	return nil
}

func (s *DeployService) validatePlan(plan *model.DeployPlan) error {
	if err := utils.ValidateHost(plan.Host); err != nil {
		return utils.NewValidationError("host", plan.Host)
	}
	if err := utils.ValidatePort(plan.Port); err != nil {
		return utils.NewValidationError("port", plan.Port)
	}
	if err := utils.ValidatePrivateKeyFile(plan.PrivateKeyPath); err != nil {
		return utils.NewValidationError("key", err.Error())
	}
	if err := utils.ValidateBranch(plan.Branch); err != nil {
		return utils.NewValidationError("branch", plan.Branch)
	}
	if err := utils.ValidateInstanceName(plan.Instance); err != nil {
		return utils.NewValidationError("instance", plan.Instance)
	}
	return nil
}

// printConnectionDetails 连接后的基本探测，帮助操作员确认连对了机器
func (s *DeployService) printConnectionDetails(r sshpkg.Runner) {
	details := []string{"✓ SSH连接成功"}

	if result, err := r.Execute("whoami"); err == nil && result.ExitCode == 0 {
		details = append(details, fmt.Sprintf("✓ 当前用户: %s", result.Stdout))
	}
	if result, err := r.Execute("uname -a"); err == nil && result.ExitCode == 0 {
		details = append(details, fmt.Sprintf("✓ 系统信息: %s", result.Stdout))
	}
	if result, err := r.Execute("free -m | awk 'NR==2{print $2}'"); err == nil && result.ExitCode == 0 {
		details = append(details, fmt.Sprintf("✓ 内存总量: %s MB", result.Stdout))
	}

	for _, line := range details {
		fmt.Println(line)
	}
}

func (s *DeployService) verifyPrivileged(r sshpkg.Runner) error {
	result, err := r.Execute("id -u")
	if err != nil {
		return utils.NewConnectionError(err)
	}
	if strings.TrimSpace(result.Stdout) != "0" {
		whoami := "(unknown)"
		if res, err := r.Execute("whoami"); err == nil {
			whoami = res.Stdout
		}
		return utils.NewPrivilegeError(whoami)
	}
	return nil
}

// checkSystemRequirements 只告警不阻断，不支持的系统由后续阶段明确报错
func (s *DeployService) checkSystemRequirements(r sshpkg.Runner) {
	result, err := r.Execute("cat /etc/os-release")
	if err != nil || result.ExitCode != 0 {
		s.logger.Warn("无法获取系统信息")
		return
	}

	content := strings.ToLower(result.Stdout)
	if !strings.Contains(content, "ubuntu") && !strings.Contains(content, "debian") {
		s.logger.Warn("目标操作系统可能不受支持，建议使用Ubuntu或Debian")
	}
}

func (s *DeployService) printSummary(plan *model.DeployPlan, st *model.DeploymentState) {
	fmt.Println()
	fmt.Println("========================================")
	fmt.Println("✓ 部署完成")
	fmt.Printf("  目标主机:   %s\n", plan.Address())
	fmt.Printf("  实例名称:   %s\n", st.Instance)
	fmt.Printf("  应用镜像:   %s\n", st.Facts.Image)
	fmt.Printf("  网关端口:   %d\n", config.GatewayPort)
	fmt.Printf("  控制台地址: http://127.0.0.1:%d （需要SSH隧道）\n", config.LocalTunnelPort)
	fmt.Printf("  隧道命令:   ssh -i %s -p %d -N -L %d:127.0.0.1:%d %s@%s\n",
		plan.PrivateKeyPath, plan.Port, config.LocalTunnelPort, config.GatewayPort,
		plan.Username, plan.Host)
	if !st.Facts.Onboarded {
		fmt.Println("  注意: 初始化向导尚未完成，部分功能在完成前不可用")
	}
	fmt.Println("========================================")
	fmt.Println()
}

func (s *DeployService) printFailure(err error) {
	fmt.Println()
	fmt.Printf("✗ 部署失败: %v\n", err)
	fmt.Println("  已完成的阶段已记录在目标主机上，重新执行相同命令即可从失败阶段续跑")
	fmt.Println()
}
