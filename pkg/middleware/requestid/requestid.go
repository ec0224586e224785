// Package requestid tags every request with an identifier shared by logs, responses and stores.
package requestid

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/server/router"
)

// Header carries the request ID in both directions.
const Header = "X-Request-ID"

// maxLength bounds identifiers accepted from callers.
const maxLength = 128

// ContextKey is the router context key holding the request ID.
const ContextKey = "request_id"

// RequestID reuses a well formed X-Request-ID from the caller or generates a UUID.
// The ID is echoed in the response and stored in the request context, where
// logger.WithContext and FromContext find it.
func RequestID() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			requestID := strings.TrimSpace(c.Request().Header.Get(Header))
			if requestID == "" || len(requestID) > maxLength {
				requestID = uuid.NewString()
			}

			c.Set(ContextKey, requestID)
			c.Response().Header().Set(Header, requestID)
			ctx := logger.ContextWithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// FromContext returns the request ID, or "" outside a request.
func FromContext(ctx context.Context) string {
	return logger.RequestIDFromContext(ctx)
}
