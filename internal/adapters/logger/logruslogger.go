package logger

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// LogrusLogger implements the ports.Logger interface using logrus with a
// JSON formatter. Selected via LOG_FORMAT=json for deployments that ship
// logs to a collector.
type LogrusLogger struct {
	logger *logrus.Logger
}

// NewLogrusLogger creates a JSON-formatted logrus logger at the given level.
func NewLogrusLogger(level LogLevel) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{})
	switch level {
	case LevelDebug:
		l.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		l.SetLevel(logrus.WarnLevel)
	case LevelError:
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}
	return &LogrusLogger{logger: l}
}

func (l *LogrusLogger) entry(fields ...map[string]interface{}) *logrus.Entry {
	if len(fields) > 0 && fields[0] != nil {
		return l.logger.WithFields(logrus.Fields(fields[0]))
	}
	return logrus.NewEntry(l.logger)
}

// Debug logs a message at Debug level.
func (l *LogrusLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.entry(fields...).Debug(msg)
}

// Info logs a message at Info level.
func (l *LogrusLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.entry(fields...).Info(msg)
}

// Warn logs a message at Warning level.
func (l *LogrusLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.entry(fields...).Warn(msg)
}

// Error logs an error message at Error level.
func (l *LogrusLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	e := l.entry(fields...)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}
