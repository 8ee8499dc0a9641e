package service

import (
	"fmt"
	"os/exec"
	"time"

	"relayhub-deploy-cli/internal/model"
)

// Tunnel 本地SSH端口转发进程
type Tunnel struct {
	cmd    *exec.Cmd
	waitCh chan error
}

// StartTunnel 启动本地隧道进程，把本地端口转发到远端应用端口。
// 进程启动后立即退出视为隧道失败。
func StartTunnel(plan *model.DeployPlan, localPort, remotePort int) (*Tunnel, error) {
	args := []string{
		"-i", plan.PrivateKeyPath,
		"-p", fmt.Sprintf("%d", plan.Port),
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "ExitOnForwardFailure=yes",
		"-N",
		"-L", fmt.Sprintf("%d:127.0.0.1:%d", localPort, remotePort),
		fmt.Sprintf("%s@%s", plan.Username, plan.Host),
	}

	cmd := exec.Command("ssh", args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("启动隧道进程失败: %v", err)
	}

	t := &Tunnel{
		cmd:    cmd,
		waitCh: make(chan error, 1),
	}
	go func() {
		t.waitCh <- cmd.Wait()
	}()

	// 立即退出说明端口转发没建起来
	select {
	case err := <-t.waitCh:
		return nil, fmt.Errorf("隧道进程提前退出: %v", err)
	case <-time.After(time.Second):
	}

	return t, nil
}

// Done 隧道进程退出时可读
func (t *Tunnel) Done() <-chan error {
	return t.waitCh
}

// Stop 终止隧道进程，可重复调用
func (t *Tunnel) Stop() {
	if t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}
}
