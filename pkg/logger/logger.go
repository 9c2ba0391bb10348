package logger

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Log   = zap.NewNop()
	Sugar = Log.Sugar()
)

type requestIDKey struct{}

// New builds a logger without touching the package globals.
func New(level string, development bool) (*zap.Logger, error) {
	var config zap.Config

	if development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
	}

	switch level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return config.Build()
}

func Init(level string, development bool) error {
	l, err := New(level, development)
	if err != nil {
		return err
	}

	Log = l
	Sugar = Log.Sugar()

	return nil
}

func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func WithContext(ctx context.Context) *zap.Logger {
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return Log.With(zap.String("request_id", requestID))
	}
	return Log
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Once emits each keyed warning a single time. The caller owns its lifetime,
// typically one per reconciliation run.
type Once struct {
	log  *zap.Logger
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewOnce(l *zap.Logger) *Once {
	return &Once{log: OrNop(l), seen: make(map[string]struct{})}
}

// Warn logs msg unless key was already warned about. It reports whether the line was written.
func (o *Once) Warn(key, msg string, fields ...zap.Field) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.seen[key]; ok {
		return false
	}
	o.seen[key] = struct{}{}
	o.log.Warn(msg, fields...)
	return true
}

func Close() {
	if Log != nil {
		_ = Log.Sync()
	}
}

func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
	os.Exit(1)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}
