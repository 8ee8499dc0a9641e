package ssh

import "io"

// Runner 远端会话的操作接口，供各部署步骤和状态存储使用，便于测试替换
type Runner interface {
	// Execute 执行一次性命令，非零退出码不视为错误
	Execute(cmd string) (*CommandResult, error)
	// ExecuteStream 执行长时间命令，输出写入sink，返回退出码
	ExecuteStream(cmd string, sink io.Writer) (int, error)
	// Upload 覆盖写入远端文件
	Upload(content, remotePath string) error
	// Interactive 分配远端PTY并绑定本地终端
	Interactive(cmd string) error
}

var _ Runner = (*Client)(nil)
