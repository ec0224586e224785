// Package logging writes one structured entry per HTTP request.
package logging

import (
	"net/http"
	"strings"
	"time"

	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/server/router"
)

// Log field names.
const (
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldRemoteAddr = "remote_addr"
	FieldError      = "error"
)

// Config configures request logging.
type Config struct {
	Enabled bool
	// LogStart adds a debug entry before the handler runs.
	LogStart             bool
	ExcludedPathPrefixes []string
}

// DefaultConfig logs every request except probes and scrapes.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		ExcludedPathPrefixes: []string{"/health", "/ready", "/metrics"},
	}
}

// Logging creates middleware with DefaultConfig.
func Logging(log logger.Logger) router.MiddlewareFunc {
	return WithConfig(log, DefaultConfig())
}

// WithConfig creates middleware that logs the outcome of every request. Server
// errors log at error level, client errors at warn and the rest at info. The
// request ID is picked up from the request context.
func WithConfig(log logger.Logger, cfg Config) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if cfg.skip(req.URL.Path) {
				return next(c)
			}

			start := time.Now()
			reqLog := log.WithContext(req.Context())
			if cfg.LogStart {
				reqLog.Debug("request started", FieldMethod, req.Method, FieldPath, req.URL.Path)
			}

			err := next(c)
			status := c.Response().Status()
			if err != nil && !c.Response().Written() {
				status = http.StatusInternalServerError
			}

			fields := []any{
				FieldMethod, req.Method,
				FieldPath, req.URL.Path,
				FieldStatus, status,
				FieldDurationMS, time.Since(start).Milliseconds(),
				FieldRemoteAddr, req.RemoteAddr,
			}
			if req.URL.RawQuery != "" {
				fields = append(fields, FieldQuery, req.URL.RawQuery)
			}
			if err != nil {
				fields = append(fields, FieldError, err.Error())
			}

			switch {
			case err != nil || status >= http.StatusInternalServerError:
				reqLog.Error("request failed", fields...)
			case status >= http.StatusBadRequest:
				reqLog.Warn("request rejected", fields...)
			default:
				reqLog.Info("request completed", fields...)
			}
			return err
		}
	}
}

func (c Config) skip(path string) bool {
	if !c.Enabled {
		return true
	}
	for _, prefix := range c.ExcludedPathPrefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
