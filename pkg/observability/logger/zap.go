package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is the minimum level written.
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// LogFormat selects the encoder.
type LogFormat string

const (
	// JSONFormat writes one JSON object per entry.
	JSONFormat LogFormat = "json"
	// TextFormat writes zap's console encoding.
	TextFormat LogFormat = "text"
)

type Config struct {
	Level  LogLevel
	Format LogFormat
	// Service, when set, is attached to every entry as the "service" field.
	Service string
	// Output defaults to stdout.
	Output io.Writer
}

// DefaultConfig logs info and above as JSON on stdout.
func DefaultConfig() Config {
	return Config{Level: InfoLevel, Format: JSONFormat}
}

// ZapLogger implements Logger over a sugared zap logger.
type ZapLogger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a logger from cfg. An unknown level logs at info and an
// unknown format uses the console encoder.
func NewZapLogger(cfg Config) (*ZapLogger, error) {
	level := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(string(cfg.Level)); err == nil {
		level = parsed
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(outputOf(cfg)), level)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	if cfg.Service != "" {
		base = base.With(zap.String("service", cfg.Service))
	}
	return &ZapLogger{base: base, sugar: base.Sugar()}, nil
}

func newEncoder(format LogFormat) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == JSONFormat {
		return zapcore.NewJSONEncoder(ec)
	}
	return zapcore.NewConsoleEncoder(ec)
}

func outputOf(cfg Config) io.Writer {
	if cfg.Output == nil {
		return os.Stdout
	}
	return cfg.Output
}

func (l *ZapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

func (l *ZapLogger) With(args ...any) Logger {
	return &ZapLogger{base: l.base, sugar: l.sugar.With(args...)}
}

// WithContext adds the "request_id" field when ctx carries one.
func (l *ZapLogger) WithContext(ctx context.Context) Logger {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return l
	}
	return l.With("request_id", id)
}

func (l *ZapLogger) Sync() error { return l.base.Sync() }

// ParseLogLevel accepts debug, info, warn (or warning) and error in any case.
func ParseLogLevel(level string) (LogLevel, error) {
	normalized := LogLevel(strings.ToLower(strings.TrimSpace(level)))
	if normalized == "warning" {
		normalized = WarnLevel
	}
	switch normalized {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
		return normalized, nil
	}
	return "", fmt.Errorf("invalid log level: %s", level)
}

// ParseLogFormat accepts json, text and console.
func ParseLogFormat(format string) (LogFormat, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "json":
		return JSONFormat, nil
	case "text", "console":
		return TextFormat, nil
	}
	return "", fmt.Errorf("invalid log format: %s", format)
}
