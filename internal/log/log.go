package log

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a context aware logger, hooks may derive extra fields from the context.
type Logger struct {
	zl *zap.Logger

	mu    sync.RWMutex
	hooks []Hook
}

func New(cfg Config) *Logger {
	return newWithCore(newCore(cfg), cfg.Name)
}

func newWithCore(core zapcore.Core, name string) *Logger {
	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(2)}
	if name != "" {
		opts = append(opts, zap.Fields(zap.String("logger", name)))
	}

	return &Logger{zl: zap.New(core, opts...)}
}

func newCore(cfg Config) zapcore.Core {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	var ws zapcore.WriteSyncer
	if cfg.Output == "file" && cfg.File.Path != "" {
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxAge:     cfg.File.MaxAge,
			MaxBackups: cfg.File.MaxBackups,
			LocalTime:  cfg.File.LocalTime,
			Compress:   cfg.File.Compress,
		})
	} else {
		ws = zapcore.Lock(os.Stdout)
	}

	return zapcore.NewCore(encoder, ws, zapLevel(cfg))
}

func zapLevel(cfg Config) zapcore.Level {
	if cfg.Debug {
		return zapcore.DebugLevel
	}

	switch cfg.Level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) AddHook(hook Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hooks = append(l.hooks, hook)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *Logger) DebugEnabled() bool {
	return l.zl.Core().Enabled(zapcore.DebugLevel)
}

func (l *Logger) Sync() error {
	return l.zl.Sync()
}

func (l *Logger) log(ctx context.Context, level zapcore.Level, msg string, fields []Field) {
	ce := l.zl.Check(level, msg)
	if ce == nil {
		return
	}

	l.mu.RLock()
	for _, hook := range l.hooks {
		fields = hook.Apply(ctx, msg, fields...)
	}
	l.mu.RUnlock()

	ce.Write(fields...)
}

var global atomic.Pointer[Logger]

//nolint:gochecknoinits // default logger before config is loaded.
func init() {
	global.Store(New(Config{Name: "auditflow", Level: InfoLevel}))
}

// SetGlobalConfig replaces the global logger, hooks of the previous one are kept.
func SetGlobalConfig(cfg Config) {
	next := New(cfg)

	prev := global.Load()
	prev.mu.RLock()
	next.hooks = append(next.hooks, prev.hooks...)
	prev.mu.RUnlock()

	global.Store(next)
}

func GetGlobalLogger() *Logger {
	return global.Load()
}

func Debug(ctx context.Context, msg string, fields ...Field) {
	global.Load().log(ctx, zapcore.DebugLevel, msg, fields)
}

func Info(ctx context.Context, msg string, fields ...Field) {
	global.Load().log(ctx, zapcore.InfoLevel, msg, fields)
}

func Warn(ctx context.Context, msg string, fields ...Field) {
	global.Load().log(ctx, zapcore.WarnLevel, msg, fields)
}

func Error(ctx context.Context, msg string, fields ...Field) {
	global.Load().log(ctx, zapcore.ErrorLevel, msg, fields)
}

// DebugEnabled reports whether debug entries are written, use it to guard expensive fields.
func DebugEnabled(ctx context.Context) bool {
	return global.Load().DebugEnabled()
}
