// Package metrics records Prometheus series for every HTTP request.
package metrics

import (
	"net/http"
	"time"

	"github.com/nimburion/taskmanager/pkg/observability/metrics"
	"github.com/nimburion/taskmanager/pkg/server/router"
)

// Metrics tracks the in-flight gauge and records duration and count per method,
// route and status. A handler error without a written response counts as 500.
func Metrics() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			metrics.IncrementInFlight()
			defer metrics.DecrementInFlight()

			start := time.Now()
			err := next(c)

			status := c.Response().Status()
			if err != nil && !c.Response().Written() {
				status = http.StatusInternalServerError
			}
			metrics.RecordHTTPMetrics(c.Request().Method, c.Request().URL.Path, status, time.Since(start))
			return err
		}
	}
}
