// Package logger is the structured logging facade of the service. Every
// method takes a message followed by alternating key/value pairs.
package logger

import "context"

// Logger is implemented by ZapLogger, the async wrapper and the no-op logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a child logger that adds args to every entry.
	With(args ...any) Logger

	// WithContext returns a child logger tagged with the request ID in ctx, if any.
	WithContext(ctx context.Context) Logger
}
