package ssh

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"relayhub-deploy-cli/internal/pkg/logger"
)

// Config SSH连接配置，仅支持密钥认证
type Config struct {
	Host           string
	Port           int
	Username       string
	PrivateKeyPath string
	ConnectTimeout time.Duration
	MaxRetries     uint64
}

// State 连接状态：未认证 -> 就绪 -> 已关闭
type State int

const (
	StateUnauthenticated State = iota
	StateReady
	StateClosed
)

type Client struct {
	config Config
	logger *logger.Logger
	conn   *ssh.Client
	state  State
}

type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func NewClient(config Config, log *logger.Logger) *Client {
	if config.Port == 0 {
		config.Port = 22
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	return &Client{
		config: config,
		logger: log,
		state:  StateUnauthenticated,
	}
}

// Connect 建立并认证SSH连接，带上限的指数退避重试
func (c *Client) Connect() error {
	if c.state != StateUnauthenticated {
		return fmt.Errorf("SSH连接状态无效，无法重复连接")
	}

	key, err := os.ReadFile(c.config.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("读取私钥失败: %v", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return fmt.Errorf("解析私钥失败: %v", err)
	}

	config := &ssh.ClientConfig{
		User:            c.config.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		Timeout:         c.config.ConnectTimeout,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // 注意：生产环境应该验证主机密钥
	}

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	attempt := 0

	operation := func() error {
		attempt++
		c.logger.SSHConnectionAttempt(attempt, addr)
		conn, err := ssh.Dial("tcp", addr, config)
		if err != nil {
			return err
		}
		c.conn = conn
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.config.MaxRetries)
	if err := backoff.Retry(operation, bo); err != nil {
		return fmt.Errorf("SSH连接失败（已重试%d次）: %v", attempt, err)
	}

	c.state = StateReady
	return nil
}

// Execute 执行一次性命令，缓冲收集输出。
// 非零退出码不视为错误，由调用方决定如何处理。
func (c *Client) Execute(cmd string) (*CommandResult, error) {
	if c.state != StateReady {
		return nil, fmt.Errorf("SSH连接未就绪")
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("创建SSH会话失败: %v", err)
	}
	defer session.Close()

	var stdoutBuf, stderrBuf strings.Builder
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	err = session.Run(cmd)

	result := &CommandResult{
		Stdout: strings.TrimSpace(stdoutBuf.String()),
		Stderr: strings.TrimSpace(stderrBuf.String()),
	}

	if err != nil {
		if exitError, ok := err.(*ssh.ExitError); ok {
			result.ExitCode = exitError.ExitStatus()
			return result, nil
		}
		return result, fmt.Errorf("命令执行失败: %v", err)
	}

	result.ExitCode = 0
	return result, nil
}

// ExecuteStream 执行长时间命令，输出边执行边写入sink，返回退出码
func (c *Client) ExecuteStream(cmd string, sink io.Writer) (int, error) {
	if c.state != StateReady {
		return -1, fmt.Errorf("SSH连接未就绪")
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return -1, fmt.Errorf("创建SSH会话失败: %v", err)
	}
	defer session.Close()

	session.Stdout = sink
	session.Stderr = sink

	if err := session.Run(cmd); err != nil {
		if exitError, ok := err.(*ssh.ExitError); ok {
			return exitError.ExitStatus(), nil
		}
		return -1, fmt.Errorf("命令执行失败: %v", err)
	}

	return 0, nil
}

// Upload 通过SFTP覆盖写入远端文件，属主和权限由调用方负责
func (c *Client) Upload(content, remotePath string) error {
	if c.state != StateReady {
		return fmt.Errorf("SSH连接未就绪")
	}

	sftpClient, err := sftp.NewClient(c.conn)
	if err != nil {
		return fmt.Errorf("创建SFTP会话失败: %v", err)
	}
	defer sftpClient.Close()

	f, err := sftpClient.Create(remotePath)
	if err != nil {
		return fmt.Errorf("创建远端文件失败: %v", err)
	}

	if _, err := f.Write([]byte(content)); err != nil {
		f.Close()
		return fmt.Errorf("写入远端文件失败: %v", err)
	}

	return f.Close()
}

// Interactive 分配远端PTY并绑定本地终端，窗口尺寸变化会同步到远端。
// 本地终端raw模式在所有退出路径上保证恢复。
func (c *Client) Interactive(cmd string) error {
	if c.state != StateReady {
		return fmt.Errorf("SSH连接未就绪")
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return fmt.Errorf("创建SSH会话失败: %v", err)
	}
	defer session.Close()

	fd := int(os.Stdin.Fd())
	width, height := 80, 24
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("设置终端raw模式失败: %v", err)
		}
		defer term.Restore(fd, oldState)

		if w, h, err := term.GetSize(fd); err == nil {
			width, height = w, h
		}
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}

	if err := session.RequestPty("xterm-256color", height, width, modes); err != nil {
		return fmt.Errorf("分配远端PTY失败: %v", err)
	}

	session.Stdin = os.Stdin
	session.Stdout = os.Stdout
	session.Stderr = os.Stderr

	// 同步窗口尺寸变化
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-winch:
				if w, h, err := term.GetSize(fd); err == nil {
					session.WindowChange(h, w)
				}
			case <-done:
				return
			}
		}
	}()

	if err := session.Start(cmd); err != nil {
		return fmt.Errorf("启动交互式命令失败: %v", err)
	}

	return session.Wait()
}

// Close 关闭连接，可重复调用
func (c *Client) Close() error {
	if c.state != StateReady {
		c.state = StateClosed
		return nil
	}
	c.state = StateClosed
	return c.conn.Close()
}

// IsExitError 判断错误是否为远端命令非零退出（而非传输层故障）
func IsExitError(err error) bool {
	_, ok := err.(*ssh.ExitError)
	return ok
}
