// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/nimburion/taskmanager/pkg/controller"
	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/server/router"
)

// Recovery logs a recovered panic with its stack and answers internal_error when
// nothing was written yet. The panic is returned as an error to outer middleware.
func Recovery(log logger.Logger) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				err = fmt.Errorf("panic: %v", r)
				log.WithContext(c.Request().Context()).Error("panic recovered",
					"panic", r,
					"path", c.Request().URL.Path,
					"stack", string(debug.Stack()),
				)
				if c.Response().Written() {
					return
				}
				body := controller.ErrorResponse{Code: controller.CodeInternal, Message: "an unexpected error occurred"}
				if writeErr := c.JSON(http.StatusInternalServerError, body); writeErr != nil {
					log.Error("failed to send panic response", "error", writeErr)
				}
			}()

			return next(c)
		}
	}
}
