// Package timeout bounds the time a request may spend in its handler.
package timeout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nimburion/taskmanager/pkg/controller"
	"github.com/nimburion/taskmanager/pkg/server/router"
)

// Config configures request timeout middleware behavior.
type Config struct {
	Enabled              bool
	Default              time.Duration
	ExcludedPathPrefixes []string
}

// DefaultConfig returns default timeout middleware behavior.
func DefaultConfig() Config {
	return Config{
		Enabled: false,
		Default: 15 * time.Second,
	}
}

// Middleware puts a deadline on the request context. The store operations
// started by the handler inherit it, and a handler that runs out of time is
// answered with 504 unless it already wrote a response.
func Middleware(cfg Config) router.MiddlewareFunc {
	if cfg.Default <= 0 {
		cfg.Default = DefaultConfig().Default
	}
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if !cfg.applies(c.Request().URL.Path) {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), cfg.Default)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))
			err := next(c)
			if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return err
			}
			if c.Response().Written() {
				return nil
			}
			return c.JSON(http.StatusGatewayTimeout, controller.ErrorResponse{
				Code:    controller.CodeTimeout,
				Message: "the request did not complete within " + cfg.Default.String(),
			})
		}
	}
}

func (cfg Config) applies(path string) bool {
	if !cfg.Enabled {
		return false
	}
	for _, prefix := range cfg.ExcludedPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}
