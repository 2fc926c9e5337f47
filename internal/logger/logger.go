package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var (
	mu   sync.RWMutex
	base = zap.NewNop().Sugar()
)

// Log is a structured logger. The zero value is not usable; get one from New.
type Log struct {
	sugar *zap.SugaredLogger
}

// Init builds the process-wide logger. mode "prod" selects JSON output,
// anything else the console encoder.
func Init(level LogLevel, mode string) error {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	z, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	base = z.Sugar()
	mu.Unlock()
	return nil
}

func parseLevel(level LogLevel) zapcore.Level {
	switch LogLevel(strings.ToLower(string(level))) {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New returns a logger backed by the process-wide configuration.
func New() *Log {
	mu.RLock()
	defer mu.RUnlock()
	return &Log{sugar: base}
}

// Nop returns a logger that discards everything.
func Nop() *Log {
	return &Log{sugar: zap.NewNop().Sugar()}
}

// Sync flushes buffered entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

func (l *Log) With(keysAndValues ...interface{}) *Log {
	return &Log{sugar: l.sugar.With(keysAndValues...)}
}

func (l *Log) WithError(err error) *Log {
	return &Log{sugar: l.sugar.With(zap.Error(err))}
}

func (l *Log) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *Log) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Log) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Log) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *Log) Fatal(msg string, keysAndValues ...interface{}) {
	l.sugar.Fatalw(msg, keysAndValues...)
}
