// Package requestsize limits the size of request bodies.
package requestsize

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/nimburion/taskmanager/pkg/controller"
	"github.com/nimburion/taskmanager/pkg/server/router"
)

// Middleware enforces a maximum request body size in bytes.
// A non-positive maxBytes disables the middleware.
func Middleware(maxBytes int64) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if maxBytes <= 0 || req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			if req.ContentLength > maxBytes {
				return TooLarge(c, maxBytes)
			}

			req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBytes)
			c.SetRequest(req)

			err := next(c)
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) && !c.Response().Written() {
				return TooLarge(c, maxBytesErr.Limit)
			}
			return err
		}
	}
}

// TooLarge answers 413 for a body over limit bytes.
func TooLarge(c router.Context, limit int64) error {
	return c.JSON(http.StatusRequestEntityTooLarge, controller.ErrorResponse{
		Code:    controller.CodeTooLarge,
		Message: fmt.Sprintf("the request body exceeds %d bytes", limit),
	})
}
