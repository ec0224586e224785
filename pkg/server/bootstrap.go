package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimburion/taskmanager/pkg/config"
	"github.com/nimburion/taskmanager/pkg/health"
	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/observability/metrics"
	"github.com/nimburion/taskmanager/pkg/observability/tracing"
	"github.com/nimburion/taskmanager/pkg/server/router"
	ginadapter "github.com/nimburion/taskmanager/pkg/server/router/gin"
	"github.com/nimburion/taskmanager/pkg/version"
)

// LifecycleHook is a named step run before the servers start or after they stop.
type LifecycleHook struct {
	Name string
	Fn   func(context.Context) error
}

// RunHTTPServersOptions wires the servers. Nil routers, logger and registries
// are replaced with defaults by BuildHTTPServers.
type RunHTTPServersOptions struct {
	Config *config.Config
	Logger logger.Logger

	PublicRouter     router.Router
	ManagementRouter router.Router
	RegisterRoutes   func(router.Router)
	PublicMiddleware []router.MiddlewareFunc

	HealthRegistry  *health.Registry
	MetricsRegistry *metrics.Registry

	StartupHooks        []LifecycleHook
	ShutdownHooks       []LifecycleHook
	ShutdownHookTimeout time.Duration
}

// HTTPServers holds the public server and, when enabled, the management one.
type HTTPServers struct {
	Public     *PublicAPIServer
	Management *ManagementServer
}

func BuildHTTPServers(opts *RunHTTPServersOptions) (*HTTPServers, error) {
	if err := opts.fillDefaults(); err != nil {
		return nil, err
	}

	servers := &HTTPServers{
		Public: NewPublicAPIServer(opts.Config, opts.PublicRouter, opts.Logger, opts.PublicMiddleware...),
	}
	if opts.RegisterRoutes != nil {
		opts.RegisterRoutes(opts.PublicRouter)
	}
	if !opts.Config.Management.Enabled {
		return servers, nil
	}

	mgmt, err := NewManagementServer(
		opts.Config.Management,
		opts.Config.Swagger,
		opts.ManagementRouter,
		opts.Logger,
		opts.HealthRegistry,
		opts.MetricsRegistry,
	)
	if err != nil {
		return nil, fmt.Errorf("create management server: %w", err)
	}
	registerVersionEndpoint(opts.ManagementRouter, version.Current(resolveServiceName(opts)))
	servers.Management = mgmt
	return servers, nil
}

func (o *RunHTTPServersOptions) fillDefaults() error {
	if o.Config == nil {
		o.Config = config.DefaultConfig()
	}
	if o.Logger == nil {
		log, err := logger.NewZapLogger(logger.DefaultConfig())
		if err != nil {
			return err
		}
		o.Logger = log
	}
	if o.PublicRouter == nil {
		o.PublicRouter = ginadapter.NewRouter()
	}
	if !o.Config.Management.Enabled {
		return nil
	}
	if o.ManagementRouter == nil {
		o.ManagementRouter = ginadapter.NewRouter()
	}
	if o.HealthRegistry == nil {
		o.HealthRegistry = health.NewRegistry()
	}
	if o.MetricsRegistry == nil {
		o.MetricsRegistry = metrics.NewRegistry()
	}
	return nil
}

// RunHTTPServers runs startup hooks, starts every server and blocks until
// ctx is cancelled or one server fails. Shutdown hooks run only when startup
// hooks succeeded.
func RunHTTPServers(ctx context.Context, servers *HTTPServers, opts *RunHTTPServersOptions) error {
	switch {
	case servers == nil || servers.Public == nil:
		return errors.New("servers and public server are required")
	case opts.Logger == nil:
		return errors.New("logger is required")
	case opts.Config == nil:
		return errors.New("config is required")
	}
	log := opts.Logger

	info := version.Current(resolveServiceName(opts))
	log.Info("starting service",
		"service", info.Service,
		"version", info.Version,
		"commit", info.Commit,
		"build_time", info.BuildTime,
		"environment", resolveEnvironment(opts),
	)

	provider, err := tracing.NewTracerProvider(ctx, tracerConfig(opts, info))
	if err != nil {
		return fmt.Errorf("initialize tracing provider: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), tracerFlushTimeout)
		defer cancel()
		if err := provider.Shutdown(flushCtx); err != nil {
			log.Error("tracer provider shutdown failed", "error", err)
		}
	}()

	if err := runStartupHooks(ctx, opts); err != nil {
		return err
	}
	defer func() {
		if err := runShutdownHooks(opts); err != nil {
			log.Error("shutdown hooks completed with errors", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	starters := []func(context.Context) error{servers.Public.Start}
	if servers.Management != nil {
		starters = append(starters, servers.Management.Start)
	}
	errCh := make(chan error, len(starters))
	for _, start := range starters {
		go func() { errCh <- start(runCtx) }()
	}

	var firstErr error
	for range starters {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	return firstErr
}

// RunHTTPServersWithSignals runs the servers until SIGINT or SIGTERM (or the
// given signals) arrive.
func RunHTTPServersWithSignals(servers *HTTPServers, opts *RunHTTPServersOptions, signals ...os.Signal) error {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()
	return RunHTTPServers(ctx, servers, opts)
}

const (
	tracerFlushTimeout         = 10 * time.Second
	defaultShutdownHookTimeout = 10 * time.Second
)

func registerVersionEndpoint(r router.Router, info version.Info) {
	r.GET("/version", func(c router.Context) error {
		return c.JSON(http.StatusOK, info)
	})
}

func tracerConfig(opts *RunHTTPServersOptions, info version.Info) tracing.TracerConfig {
	obs := opts.Config.Observability
	return tracing.TracerConfig{
		ServiceName:    info.Service,
		ServiceVersion: info.Version,
		Environment:    resolveEnvironment(opts),
		Endpoint:       obs.TracingEndpoint,
		SampleRate:     obs.TracingSampleRate,
		Enabled:        obs.TracingEnabled,
	}
}

func resolveServiceName(opts *RunHTTPServersOptions) string {
	if opts.Config == nil {
		return version.Unknown
	}
	return orUnknown(opts.Config.Service.Name)
}

func resolveEnvironment(opts *RunHTTPServersOptions) string {
	if opts.Config == nil {
		return version.Unknown
	}
	return orUnknown(opts.Config.Service.Environment)
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return version.Unknown
	}
	return s
}

func hookName(h LifecycleHook) string {
	if name := strings.TrimSpace(h.Name); name != "" {
		return name
	}
	return "unnamed"
}

// runStartupHooks stops at the first failing hook.
func runStartupHooks(ctx context.Context, opts *RunHTTPServersOptions) error {
	for _, hook := range opts.StartupHooks {
		if hook.Fn == nil {
			continue
		}
		name := hookName(hook)
		if err := hook.Fn(ctx); err != nil {
			opts.Logger.Error("startup hook failed", "hook", name, "error", err)
			return fmt.Errorf("startup hook %q failed: %w", name, err)
		}
		opts.Logger.Info("startup hook done", "hook", name)
	}
	return nil
}

// runShutdownHooks runs every hook, each under its own timeout, and joins the
// failures.
func runShutdownHooks(opts *RunHTTPServersOptions) error {
	timeout := opts.ShutdownHookTimeout
	if timeout <= 0 {
		timeout = defaultShutdownHookTimeout
	}

	var errs []error
	for _, hook := range opts.ShutdownHooks {
		if hook.Fn == nil {
			continue
		}
		name := hookName(hook)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := hook.Fn(ctx)
		cancel()
		if err != nil {
			opts.Logger.Error("shutdown hook failed", "hook", name, "error", err)
			errs = append(errs, fmt.Errorf("shutdown hook %q failed: %w", name, err))
			continue
		}
		opts.Logger.Info("shutdown hook done", "hook", name)
	}
	return errors.Join(errs...)
}
