package broker

import (
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/yanun0323/logs"
)

// kgoLogger forwards franz-go client logs to the process logger.
type kgoLogger struct {
	level kgo.LogLevel
}

func newKgoLogger(level kgo.LogLevel) kgo.Logger {
	return &kgoLogger{level: level}
}

func (l *kgoLogger) Level() kgo.LogLevel { return l.level }

func (l *kgoLogger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	logger := logs.With(keyvals...).With("component", "kafka")
	switch level {
	case kgo.LogLevelError:
		logger.Error(msg)
	case kgo.LogLevelWarn:
		logger.Warn(msg)
	case kgo.LogLevelInfo:
		logger.Info(msg)
	case kgo.LogLevelDebug:
		logger.Debug(msg)
	}
}
