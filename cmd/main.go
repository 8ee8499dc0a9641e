package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/model"
	"relayhub-deploy-cli/internal/pkg/logger"
	"relayhub-deploy-cli/internal/service"
	"relayhub-deploy-cli/pkg/utils"
)

var plan model.DeployPlan

func main() {
	rootCmd := &cobra.Command{
		Use:   "relayhub-deploy",
		Short: "把一台裸的root SSH主机变成运行中的RelayHub实例",
		Long: `relayhub-deploy 通过SSH在目标主机上完成RelayHub的全部部署步骤：
安装基础软件包和容器引擎、创建运行账号、构建镜像、上传compose配置、
初始化向导、启动服务，最后可选地自动批准设备配对。

部署进度持久化在目标主机上，中途失败后重新执行相同命令即可
从失败的阶段续跑，已完成的阶段不会重复执行。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDeploy,
	}

	rootCmd.Flags().StringVar(&plan.Host, "host", "", "目标主机地址（必填）")
	rootCmd.Flags().IntVar(&plan.Port, "port", 22, "SSH端口")
	rootCmd.Flags().StringVar(&plan.Username, "user", "root", "SSH用户")
	rootCmd.Flags().StringVar(&plan.PrivateKeyPath, "key", defaultKeyPath(), "SSH私钥路径")
	rootCmd.Flags().StringVar(&plan.Branch, "branch", config.DefaultBranch, "要部署的git分支")
	rootCmd.Flags().StringVar(&plan.Instance, "instance", "", "实例名称，默认按目标地址生成")
	rootCmd.Flags().BoolVar(&plan.SkipInteractive, "skip-interactive", false, "跳过交互式初始化向导")
	rootCmd.Flags().BoolVar(&plan.SkipPairing, "skip-pairing", false, "跳过设备配对自动化")
	rootCmd.Flags().BoolVarP(&plan.AssumeYes, "yes", "y", false, "所有确认都按是处理")
	rootCmd.Flags().BoolVar(&plan.Force, "force", false, "丢弃目标主机上的历史部署状态，从头开始")
	rootCmd.Flags().BoolVar(&plan.Clean, "clean", false, "先彻底清理目标主机上的既有部署（不可逆）")
	rootCmd.Flags().BoolVarP(&plan.Verbose, "verbose", "v", false, "输出调试日志")
	rootCmd.MarkFlagRequired("host")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(utils.ExitCode(err))
	}
}

func runDeploy(cmd *cobra.Command, args []string) error {
	// 加载环境变量
	if err := godotenv.Load(); err == nil {
		fmt.Println("已加载 .env 配置")
	}

	log := logger.NewLogger(plan.Verbose)
	defer log.Sync()

	if plan.Instance == "" {
		plan.Instance = utils.InstanceNameForHost(plan.Host)
	}

	cfg := config.LoadConfig()
	pairingService := service.NewPairingService(cfg, log)
	deployService := service.NewDeployService(cfg, pairingService, log)

	return deployService.Deploy(&plan)
}

func defaultKeyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.ssh/id_ed25519"
}
