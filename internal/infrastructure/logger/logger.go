// Package logger builds the zap loggers used across the engine and bridges
// them into gin and GORM.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, or file path
	TimeFormat string // layout passed to zapcore.TimeEncoderOfLayout
}

const defaultTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DefaultConfig returns a default configuration suitable for development
func DefaultConfig() *Config {
	return &Config{Level: "info", Format: "console", Output: "stdout", TimeFormat: defaultTimeFormat}
}

// ProductionConfig returns a configuration suitable for production
func ProductionConfig() *Config {
	return &Config{Level: "info", Format: "json", Output: "stdout", TimeFormat: defaultTimeFormat}
}

// New creates a new zap logger with the given configuration
func New(cfg *Config) (*zap.Logger, error) {
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = defaultTimeFormat
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(timeFormat),
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, openSink(cfg.Output), parseLevel(cfg.Level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// NewForEnvironment creates a logger appropriate for the given environment
func NewForEnvironment(env string) (*zap.Logger, error) {
	if env == "production" {
		return New(ProductionConfig())
	}
	return New(DefaultConfig())
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// openSink resolves the output target. An unopenable file path falls back to
// stdout rather than failing startup over a log destination.
func openSink(output string) zapcore.WriteSyncer {
	switch strings.ToLower(output) {
	case "", "stdout":
		return zapcore.AddSync(os.Stdout)
	case "stderr":
		return zapcore.AddSync(os.Stderr)
	default:
		file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return zapcore.AddSync(os.Stdout)
		}
		return zapcore.AddSync(file)
	}
}

// Sync flushes any buffered log entries
func Sync(logger *zap.Logger) error {
	return logger.Sync()
}
