package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/browser"
	"golang.org/x/sync/errgroup"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/model"
	"relayhub-deploy-cli/internal/pkg/logger"
	sshpkg "relayhub-deploy-cli/internal/pkg/ssh"
)

var errPairingTimeout = errors.New("等待配对请求超时")

// pairingAPI 远端应用的配对接口
type pairingAPI interface {
	ListPending() ([]model.PairingRequest, error)
	Approve(id string) error
}

// remotePairingAPI 通过远端会话在目标主机本地回环上调用应用API
type remotePairingAPI struct {
	runner sshpkg.Runner
	token  string
}

func (c *remotePairingAPI) authHeader() string {
	if c.token == "" {
		return ""
	}
	return fmt.Sprintf("-H 'Authorization: Bearer %s' ", c.token)
}

func (c *remotePairingAPI) ListPending() ([]model.PairingRequest, error) {
	cmd := fmt.Sprintf("curl -sf -m 5 %shttp://127.0.0.1:%d/api/v1/pairing/requests",
		c.authHeader(), config.GatewayPort)
	result, err := c.runner.Execute(cmd)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("查询配对请求失败，退出码 %d", result.ExitCode)
	}

	var requests []model.PairingRequest
	if err := json.Unmarshal([]byte(result.Stdout), &requests); err != nil {
		return nil, fmt.Errorf("配对请求响应格式无效: %v", err)
	}
	return requests, nil
}

func (c *remotePairingAPI) Approve(id string) error {
	cmd := fmt.Sprintf("curl -sf -m 5 -X POST %shttp://127.0.0.1:%d/api/v1/pairing/requests/%s/approve",
		c.authHeader(), config.GatewayPort, id)
	result, err := c.runner.Execute(cmd)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("批准配对请求失败，退出码 %d", result.ExitCode)
	}
	return nil
}

type PairingService struct {
	cfg    *config.Config
	logger *logger.Logger
}

func NewPairingService(cfg *config.Config, log *logger.Logger) *PairingService {
	return &PairingService{
		cfg:    cfg,
		logger: log,
	}
}

// Run 配对自动化：建隧道、开浏览器、轮询新配对请求并自动批准，
// 之后保持隧道直到操作员中断。隧道失败只影响配对，不影响已完成的部署。
func (s *PairingService) Run(r sshpkg.Runner, plan *model.DeployPlan, token string) error {
	if !confirm("现在打开控制台并自动批准新设备配对吗?", plan.AssumeYes) {
		fmt.Println("已跳过设备配对")
		return nil
	}

	api := &remotePairingAPI{runner: r, token: token}

	// 基线快照：已有的请求不会被自动批准
	existing, err := api.ListPending()
	if err != nil {
		return fmt.Errorf("获取配对请求基线失败: %v", err)
	}
	baseline := make(map[string]struct{}, len(existing))
	for _, req := range existing {
		baseline[req.ID] = struct{}{}
	}
	s.logger.Infof("配对基线: %d 个已有请求", len(existing))

	tunnel, err := StartTunnel(plan, config.LocalTunnelPort, config.GatewayPort)
	if err != nil {
		return err
	}
	defer tunnel.Stop()

	dashboardURL := fmt.Sprintf("http://127.0.0.1:%d", config.LocalTunnelPort)
	if err := browser.OpenURL(dashboardURL); err != nil {
		// 打不开浏览器不致命，把地址给操作员
		s.logger.Warnf("无法打开浏览器: %v", err)
	}
	fmt.Printf("控制台地址: %s\n", dashboardURL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// 操作员中断统一走上下文取消：轮询期间和批准后都立即生效，
	// 两个工作协程都以取消作为正常退出路径
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sigCh:
			fmt.Println("收到中断，关闭隧道")
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	// 隧道进程监控，独立失败路径
	g.Go(func() error {
		select {
		case err := <-tunnel.Done():
			if gctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("隧道进程退出: %v", err)
		case <-gctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		interval := time.Duration(s.cfg.Pairing.PollInterval) * time.Second
		timeout := time.Duration(s.cfg.Pairing.Timeout) * time.Second

		req, timedOut, err := s.watchForNewRequest(gctx, api, baseline, interval, timeout)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if timedOut {
			s.printManualApprovalInstructions(dashboardURL)
			return errPairingTimeout
		}

		if err := api.Approve(req.ID); err != nil {
			fmt.Printf("✗ 自动批准失败: %v\n", err)
			return err
		}
		fmt.Printf("✓ 已批准设备配对请求 %s（设备 %s，来源 %s）\n", req.ID, req.DeviceID, req.Origin)

		fmt.Println("隧道保持中，按 Ctrl+C 结束")
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	tunnel.Stop()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchForNewRequest 轮询直到出现基线之外的新请求或超时。
// 超时是预期结果，不作为error返回。
func (s *PairingService) watchForNewRequest(ctx context.Context, api pairingAPI,
	baseline map[string]struct{}, interval, timeout time.Duration) (*model.PairingRequest, bool, error) {

	deadline := time.Now().Add(timeout)
	for {
		requests, err := api.ListPending()
		if err != nil {
			// 单次查询失败按瞬时故障处理，继续轮询
			s.logger.Debugf("查询配对请求失败: %v", err)
		} else {
			for _, req := range requests {
				if _, seen := baseline[req.ID]; !seen {
					return &req, false, nil
				}
			}
		}

		if time.Now().After(deadline) {
			return nil, true, nil
		}

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (s *PairingService) printManualApprovalInstructions(dashboardURL string) {
	fmt.Println()
	fmt.Printf("等待%d秒内没有出现新的配对请求，请手动操作:\n", s.cfg.Pairing.Timeout)
	fmt.Printf("  1. 打开控制台 %s\n", dashboardURL)
	fmt.Println("  2. 在设备上发起配对")
	fmt.Println("  3. 在控制台的配对页面批准请求")
	fmt.Println()
}

// confirm 征求操作员确认，默认为是。非终端环境下直接取默认值。
func confirm(question string, assumeYes bool) bool {
	if assumeYes {
		return true
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return true
	}

	fmt.Printf("%s [Y/n] ", question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return true
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "" || answer == "y" || answer == "yes"
}
