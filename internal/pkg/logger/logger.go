package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.SugaredLogger
}

func NewLogger(verbose bool) *Logger {
	// 控制台友好的输出格式
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}

	return &Logger{SugaredLogger: logger.Sugar()}
}

// NewNopLogger 测试用的空日志器
func NewNopLogger() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) SSHConnectionAttempt(attempt int, target string) {
	l.Infow("尝试SSH连接",
		"type", "ssh_connection",
		"attempt", attempt,
		"target", target,
	)
}

func (l *Logger) PhaseStart(ordinal int, name string) {
	l.Infow("执行部署阶段",
		"type", "deployment",
		"phase", ordinal,
		"name", name,
	)
}

func (l *Logger) PhaseSkipped(ordinal int, name string) {
	l.Infow("部署阶段已完成，跳过",
		"type", "deployment",
		"phase", ordinal,
		"name", name,
	)
}

func (l *Logger) PhaseError(ordinal int, name string, err error) {
	l.Errorw("部署阶段失败",
		"type", "deployment",
		"phase", ordinal,
		"name", name,
		"error", err.Error(),
	)
}

func (l *Logger) PhaseSuccess(ordinal int, name string) {
	l.Infow("部署阶段成功",
		"type", "deployment",
		"phase", ordinal,
		"name", name,
	)
}
