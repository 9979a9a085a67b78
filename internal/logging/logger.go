package logging

import (
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel uint8

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
)

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelCritical:
		return zapcore.DPanicLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a config string to a LogLevel, defaulting to info.
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "critical", "fatal":
		return LevelCritical
	default:
		return LevelInfo
	}
}

type Logger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
	file  *os.File
}

// NewLogger writes JSON lines to path and human readable lines to stderr.
// An empty path logs to stderr only.
func NewLogger(level LogLevel, path string) (*Logger, error) {
	lvl := zap.NewAtomicLevelAt(level.zapLevel())

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), lvl),
	}

	var file *os.File
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		file = f
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(f),
			lvl,
		))
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(2))
	return &Logger{base: base, sugar: base.Sugar(), file: file}, nil
}

// FromZap wraps an existing zap logger, mainly for tests (zaptest).
func FromZap(z *zap.Logger) *Logger {
	return &Logger{base: z, sugar: z.Sugar()}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Critical logs at DPanic: fatal in development builds, an error otherwise.
func (l *Logger) Critical(format string, args ...interface{}) {
	l.sugar.DPanicf(format, args...)
}

func (l *Logger) Zap() *zap.Logger {
	return l.base
}

func (l *Logger) Close() error {
	_ = l.base.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

var global atomic.Pointer[Logger]

func InitGlobalLogger(level LogLevel, path string) error {
	logger, err := NewLogger(level, path)
	if err != nil {
		return err
	}
	SetGlobal(logger)
	return nil
}

func SetGlobal(l *Logger) {
	global.Store(l)
}

func get() *Logger {
	return global.Load()
}

func Debug(format string, args ...interface{}) {
	if l := get(); l != nil {
		l.Debug(format, args...)
	}
}

func Info(format string, args ...interface{}) {
	if l := get(); l != nil {
		l.Info(format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	if l := get(); l != nil {
		l.Warn(format, args...)
	}
}

func Error(format string, args ...interface{}) {
	if l := get(); l != nil {
		l.Error(format, args...)
	}
}

func Critical(format string, args ...interface{}) {
	if l := get(); l != nil {
		l.Critical(format, args...)
	}
}

// L returns the structured logger, or a no-op logger before initialisation.
func L() *zap.Logger {
	if l := get(); l != nil {
		return l.base.WithOptions(zap.AddCallerSkip(-2))
	}
	return zap.NewNop()
}

// Close flushes and closes the global logger.
func Close() error {
	if l := get(); l != nil {
		return l.Close()
	}
	return nil
}
