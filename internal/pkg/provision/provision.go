// Package provision 实现各个幂等的远端部署步骤。
// 统一约定：先检查是否已满足，未满足才执行，执行后自行验证，
// 任何步骤都不直接读写部署状态文件。
package provision

import (
	"strings"
	"time"

	"relayhub-deploy-cli/internal/config"
	"relayhub-deploy-cli/internal/pkg/logger"
)

type Actions struct {
	cfg    *config.Config
	logger *logger.Logger
}

func NewActions(cfg *config.Config, log *logger.Logger) *Actions {
	return &Actions{
		cfg:    cfg,
		logger: log,
	}
}

// pollOutcome 轮询结果三态：成功、超时、硬错误。
// 超时是预期内的结果，不作为error抛出。
type pollOutcome int

const (
	pollSucceeded pollOutcome = iota
	pollTimedOut
	pollFailed
)

func pollUntil(interval, timeout time.Duration, check func() (bool, error)) (pollOutcome, error) {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := check()
		if err != nil {
			return pollFailed, err
		}
		if ok {
			return pollSucceeded, nil
		}
		if time.Now().After(deadline) {
			return pollTimedOut, nil
		}
		time.Sleep(interval)
	}
}

// logWriter 把流式命令输出按行转发到日志
type logWriter struct {
	logger *logger.Logger
	prefix string
	buf    strings.Builder
}

func newLogWriter(log *logger.Logger, prefix string) *logWriter {
	return &logWriter{logger: log, prefix: prefix}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		content := w.buf.String()
		idx := strings.IndexByte(content, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimRight(content[:idx], "\r")
		if line != "" {
			w.logger.Debugf("[%s] %s", w.prefix, line)
		}
		w.buf.Reset()
		w.buf.WriteString(content[idx+1:])
	}
	return len(p), nil
}
