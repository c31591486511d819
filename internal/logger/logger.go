// Package logger is the process-wide leveled logger.
//
// The API is printf style (Debug/Info/Warn/Error) so call sites stay terse;
// records are emitted through a zap core so output can be switched between
// human-readable text and JSON without touching callers.
package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config selects level, encoding and destination.
type Config struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string

	// Format is "text" (console encoder) or "json".
	Format string

	// Output is "stdout", "stderr" or a file path.
	Output string
}

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar = newSugar("text", "stdout")
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zap() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel converts a level name. Unknown names report ok=false.
func ParseLevel(name string) (Level, bool) {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// Init rebuilds the global logger from cfg.
func Init(cfg Config) error {
	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	output := cfg.Output
	if output == "" {
		output = "stdout"
	}

	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.Encoding = "json"
	zc.EncoderConfig = encoderConfig(format)
	zc.OutputPaths = []string{output}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.Sampling = nil
	if format == "text" {
		zc.Encoding = "console"
	}

	built, err := zc.Build(zap.AddCallerSkip(2))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	mu.Lock()
	sugar = built.Sugar()
	mu.Unlock()

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	return nil
}

// SetLevel changes the minimum level at runtime. Unknown names are ignored.
func SetLevel(name string) {
	if l, ok := ParseLevel(name); ok {
		level.SetLevel(l.zap())
	}
}

// CurrentLevel reports the active minimum level.
func CurrentLevel() Level {
	switch level.Level() {
	case zapcore.DebugLevel:
		return LevelDebug
	case zapcore.WarnLevel:
		return LevelWarn
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return LevelError
	default:
		return LevelInfo
	}
}

// Enabled reports whether records at l would be written.
func Enabled(l Level) bool {
	return level.Enabled(l.zap())
}

// Sync flushes buffered records.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return sugar.Sync()
}

func log(l Level, format string, v ...any) {
	if !Enabled(l) {
		return
	}

	mu.RLock()
	s := sugar
	mu.RUnlock()

	msg := fmt.Sprintf(format, v...)
	switch l {
	case LevelDebug:
		s.Debug(msg)
	case LevelInfo:
		s.Info(msg)
	case LevelWarn:
		s.Warn(msg)
	default:
		s.Error(msg)
	}
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}

func newSugar(format, output string) *zap.SugaredLogger {
	enc := zapcore.NewConsoleEncoder(encoderConfig(format))
	ws, _, err := zap.Open(output)
	if err != nil {
		return zap.NewNop().Sugar()
	}
	core := zapcore.NewCore(enc, ws, level)
	return zap.New(core, zap.AddCallerSkip(2)).Sugar()
}

func encoderConfig(format string) zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	ec.EncodeDuration = zapcore.StringDurationEncoder
	if format == "text" {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		ec.EncodeCaller = zapcore.ShortCallerEncoder
	}
	return ec
}
