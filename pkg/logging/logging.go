package logging

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel defines the logging level
type LogLevel zapcore.Level

const (
	DEBUG LogLevel = LogLevel(zapcore.DebugLevel)
	INFO  LogLevel = LogLevel(zapcore.InfoLevel)
	WARN  LogLevel = LogLevel(zapcore.WarnLevel)
	ERROR LogLevel = LogLevel(zapcore.ErrorLevel)
)

// contextKey defines a type for context keys
type contextKey string

const messageIDKey contextKey = "message_id"

// ParseLevel maps a config value such as "debug" to a LogLevel. Unknown
// values fall back to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	}
	return INFO
}

// NewLogger builds a production JSON logger with ISO8601 timestamps and
// installs it as the zap global logger.
func NewLogger(level LogLevel, service string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.Level(level))
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	if service != "" {
		logger = logger.With(zap.String("service", service))
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// WithMessageID adds the id of the command being processed to context
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, messageIDKey, messageID)
}

// MessageID retrieves the command message id from context
func MessageID(ctx context.Context) string {
	if id, ok := ctx.Value(messageIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns base annotated with the message id carried by ctx, if any
func FromContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if id := MessageID(ctx); id != "" {
		return base.With(zap.String("message_id", id))
	}
	return base
}
