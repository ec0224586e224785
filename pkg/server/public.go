package server

import (
	"context"
	"strings"

	"github.com/nimburion/taskmanager/pkg/config"
	"github.com/nimburion/taskmanager/pkg/middleware/cors"
	"github.com/nimburion/taskmanager/pkg/middleware/logging"
	"github.com/nimburion/taskmanager/pkg/middleware/metrics"
	"github.com/nimburion/taskmanager/pkg/middleware/recovery"
	"github.com/nimburion/taskmanager/pkg/middleware/requestid"
	"github.com/nimburion/taskmanager/pkg/middleware/requestsize"
	timeoutmiddleware "github.com/nimburion/taskmanager/pkg/middleware/timeout"
	"github.com/nimburion/taskmanager/pkg/middleware/tracing"
	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/server/router"
)

// PublicAPIServer wraps Server for application traffic.
type PublicAPIServer struct {
	*Server
	logger logger.Logger
}

// NewPublicAPIServer installs the task API middleware chain on r: request id,
// CORS, request logging, panic recovery, metrics, tracing (when enabled),
// request deadline and body size limit. extra runs last, innermost, so OpenAPI
// validation sees requests that already carry an id and a deadline.
func NewPublicAPIServer(cfg *config.Config, r router.Router, log logger.Logger, extra ...router.MiddlewareFunc) *PublicAPIServer {
	obsCfg := cfg.Observability
	effectiveLogger := logger.WrapAsync(log, logger.AsyncConfig{
		Enabled:      obsCfg.AsyncLogging.Enabled,
		QueueSize:    obsCfg.AsyncLogging.QueueSize,
		WorkerCount:  obsCfg.AsyncLogging.WorkerCount,
		DropWhenFull: obsCfg.AsyncLogging.DropWhenFull,
	})

	corsCfg := cors.Config{
		Enabled:          cfg.CORS.Enabled,
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     cfg.CORS.AllowMethods,
		AllowHeaders:     cfg.CORS.AllowHeaders,
		ExposeHeaders:    cfg.CORS.ExposeHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}
	loggingCfg := logging.Config{
		Enabled:              obsCfg.RequestLogging.Enabled,
		LogStart:             obsCfg.RequestLogging.LogStart,
		ExcludedPathPrefixes: obsCfg.RequestLogging.ExcludedPathPrefixes,
	}
	tracingCfg := tracing.Config{
		TracerName:           "http-server",
		ExcludedPathPrefixes: obsCfg.RequestTracing.ExcludedPathPrefixes,
	}
	timeoutCfg := timeoutmiddleware.Config{
		Enabled:              obsCfg.RequestTimeout.Enabled,
		Default:              obsCfg.RequestTimeout.Default,
		ExcludedPathPrefixes: obsCfg.RequestTimeout.ExcludedPathPrefixes,
	}

	stack := []namedMiddleware{
		{"request_id", requestid.RequestID()},
		{"cors", cors.Middleware(corsCfg)},
		{"logging", logging.WithConfig(effectiveLogger, loggingCfg)},
		{"recovery", recovery.Recovery(effectiveLogger)},
		{"metrics", metrics.Metrics()},
	}
	if obsCfg.TracingEnabled && obsCfg.RequestTracing.Enabled {
		stack = append(stack, namedMiddleware{"tracing", tracing.Tracing(tracingCfg)})
	}
	stack = append(stack,
		namedMiddleware{"timeout", timeoutmiddleware.Middleware(timeoutCfg)},
		namedMiddleware{"request_size", requestsize.Middleware(cfg.HTTP.MaxRequestSize)},
	)
	for _, fn := range extra {
		if fn != nil {
			stack = append(stack, namedMiddleware{"extra", fn})
		}
	}
	applyStack(r, stack, effectiveLogger)

	serverCfg := Config{
		Name:            "public",
		Port:            cfg.HTTP.Port,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}

	return &PublicAPIServer{
		Server: NewServer(serverCfg, r, effectiveLogger),
		logger: effectiveLogger,
	}
}

// Start starts the public API server. The async logger, if any, is drained once
// the server stops.
func (s *PublicAPIServer) Start(ctx context.Context) error {
	err := s.Server.Start(ctx)
	s.closeLogger()
	return err
}

// Shutdown stops the server and drains the async logger, if any.
func (s *PublicAPIServer) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.closeLogger()
	return err
}

func (s *PublicAPIServer) closeLogger() {
	if async, ok := s.logger.(*logger.AsyncLogger); ok {
		async.Close()
	}
}

func (s *PublicAPIServer) Router() router.Router {
	return s.router
}

type namedMiddleware struct {
	name string
	fn   router.MiddlewareFunc
}

func applyStack(r router.Router, stack []namedMiddleware, log logger.Logger) {
	fns := make([]router.MiddlewareFunc, len(stack))
	names := make([]string, len(stack))
	for i, m := range stack {
		fns[i] = m.fn
		names[i] = m.name
	}
	log.Debug("active middleware stack", "middlewares", strings.Join(names, ", "))
	r.Use(fns...)
}
