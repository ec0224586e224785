// Package app wires the document store, the task and task type stores, the HTTP
// API and the public and management servers into the task manager service.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimburion/taskmanager/pkg/api"
	"github.com/nimburion/taskmanager/pkg/config"
	"github.com/nimburion/taskmanager/pkg/health"
	"github.com/nimburion/taskmanager/pkg/middleware/openapivalidation"
	"github.com/nimburion/taskmanager/pkg/migrate"
	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/observability/metrics"
	"github.com/nimburion/taskmanager/pkg/repository/document"
	"github.com/nimburion/taskmanager/pkg/resilience"
	"github.com/nimburion/taskmanager/pkg/server"
	"github.com/nimburion/taskmanager/pkg/server/openapi"
	"github.com/nimburion/taskmanager/pkg/server/router"
	"github.com/nimburion/taskmanager/pkg/store/mongodb"
	"github.com/nimburion/taskmanager/pkg/tasks"
	"github.com/nimburion/taskmanager/pkg/tasktypes"
	"github.com/nimburion/taskmanager/pkg/version"
)

const (
	mongoCheckName   = "mongodb"
	circuitCheckName = "mongodb_circuit"
	schemaCheckName  = "task_type_schema"
)

// Service holds the wired components of a running task manager.
type Service struct {
	cfg      *config.Config
	log      logger.Logger
	migrator *tasktypes.Migrator
	handler  *api.Handler
	health   *health.Registry
	closers  []server.LifecycleHook
}

// Connect opens the MongoDB adapter described by cfg.Database and builds the
// service over it. Close releases the connection.
func Connect(cfg *config.Config, log logger.Logger) (*Service, error) {
	adapter, err := mongodb.NewAdapter(mongodb.Config{
		URL:              cfg.Database.URL,
		Database:         cfg.Database.DatabaseName,
		AppName:          cfg.Service.Name,
		ConnectTimeout:   cfg.Database.ConnectTimeout,
		OperationTimeout: cfg.Database.QueryTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	exec, err := document.NewMongoDBExecutor(adapter)
	if err != nil {
		_ = adapter.Close()
		return nil, err
	}

	svc, err := New(cfg, log, exec)
	if err != nil {
		_ = adapter.Close()
		return nil, err
	}
	svc.health.Register(health.NewAdapterChecker(mongoCheckName, adapter, cfg.Database.QueryTimeout))
	svc.closers = append(svc.closers, server.LifecycleHook{
		Name: "close-mongodb",
		Fn:   func(context.Context) error { return adapter.Close() },
	})
	return svc, nil
}

// New builds the service over exec. Transactions are enabled only when
// cfg.Database.Transactions is set and exec can run them.
func New(cfg *config.Config, log logger.Logger, exec document.Executor) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if exec == nil {
		return nil, errors.New("document executor is required")
	}

	registry := health.NewRegistry()
	if cb := cfg.Database.CircuitBreaker; cb.Enabled {
		breaker := newCircuitBreaker(cb, log)
		exec = document.NewGuardedExecutor(exec, breaker)
		registry.Register(health.NewCircuitChecker(circuitCheckName, breaker))
	}

	taskOpts := []tasks.Option{tasks.WithLogger(log)}
	if cfg.Database.Transactions {
		tx, ok := exec.(document.TransactionalExecutor)
		if !ok {
			return nil, fmt.Errorf("database.transactions is set but the executor %T cannot run transactions", exec)
		}
		taskOpts = append(taskOpts, tasks.WithTransactions(tx))
	}
	taskStore, err := tasks.NewStore(exec, taskOpts...)
	if err != nil {
		return nil, fmt.Errorf("create task store: %w", err)
	}
	taskTypeStore, err := tasktypes.NewStore(exec, tasktypes.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("create task type store: %w", err)
	}
	migrator, err := tasktypes.NewMigrator(exec, log)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	handler, err := api.New(taskStore, taskTypeStore, version.Current(cfg.Service.Name), api.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("create api: %w", err)
	}

	registry.Register(health.NewSchemaChecker(schemaCheckName, migrator.Status))

	return &Service{
		cfg:      cfg,
		log:      log,
		migrator: migrator,
		handler:  handler,
		health:   registry,
	}, nil
}

func newCircuitBreaker(cfg config.CircuitBreakerConfig, log logger.Logger) *resilience.CircuitBreaker {
	metrics.SetStoreCircuitState(int(resilience.StateClosed))
	return resilience.NewCircuitBreaker(resilience.Config{
		MaxFailures:  cfg.MaxFailures,
		ResetTimeout: cfg.ResetTimeout,
		IsFailure:    document.IsStoreFailure,
		OnStateChange: func(from, to resilience.State) {
			metrics.SetStoreCircuitState(int(to))
			log.Warn("mongodb circuit breaker changed state", "from", from.String(), "to", to.String())
		},
	})
}

// MigrationOperations exposes the task type schema migration to the migrate command.
func (s *Service) MigrationOperations() migrate.Operations {
	return s.migrator.Operations()
}

// Health returns the readiness checks of the service.
func (s *Service) Health() *health.Registry {
	return s.health
}

// AutoMigrate upgrades stored task types within cfg.Migration.Timeout. It does
// nothing when migration.auto_migrate is off.
func (s *Service) AutoMigrate(ctx context.Context) error {
	if !s.cfg.Migration.AutoMigrate {
		s.log.Info("automatic task type migration disabled")
		return nil
	}
	if timeout := s.cfg.Migration.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	converted, err := s.migrator.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate task types: %w", err)
	}
	s.log.Info("task type schema up to date",
		"schema_version", tasktypes.SchemaVersion,
		"converted", converted,
		"duration", time.Since(start),
	)
	return nil
}

// RegisterRoutes mounts the API and the OpenAPI document on r.
func (s *Service) RegisterRoutes(r router.Router) {
	s.handler.Register(r)
	openapi.RegisterRoutes(r)
}

// HTTPOptions assembles the server options: the API routes, the optional
// OpenAPI request validation, the readiness checks and the shutdown hooks.
// Routes missing from the OpenAPI document are logged.
func (s *Service) HTTPOptions(ctx context.Context) (*server.RunHTTPServersOptions, error) {
	doc, err := openapi.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, route := range openapi.Undocumented(doc, openapi.CollectRoutes(s.handler.Register)) {
		s.log.Warn("route missing from the OpenAPI document", "method", route.Method, "path", route.Path)
	}

	opts := &server.RunHTTPServersOptions{
		Config:          s.cfg,
		Logger:          s.log,
		RegisterRoutes:  s.RegisterRoutes,
		HealthRegistry:  s.health,
		MetricsRegistry: metrics.NewRegistry(),
		ShutdownHooks:   s.closers,
	}

	validation := s.cfg.OpenAPIValidation
	if validation.Enabled {
		mw, err := openapivalidation.Middleware(doc, openapivalidation.Config{
			Mode:                 validation.Mode,
			ValidateBodies:       validation.ValidateBodies,
			ExcludedPathPrefixes: []string{openapi.SpecPath},
		}, s.log)
		if err != nil {
			return nil, fmt.Errorf("create openapi validation: %w", err)
		}
		opts.PublicMiddleware = append(opts.PublicMiddleware, mw)
	}
	return opts, nil
}

// Close runs the shutdown hooks directly, for commands that never start the servers.
func (s *Service) Close() error {
	var errs []error
	for _, hook := range s.closers {
		if err := hook.Fn(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hook.Name, err))
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Run connects to MongoDB, upgrades the task type schema and serves the API
// until SIGINT or SIGTERM.
func Run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc, err := Connect(cfg, log)
	if err != nil {
		return err
	}
	if err := svc.AutoMigrate(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	opts, err := svc.HTTPOptions(ctx)
	if err != nil {
		_ = svc.Close()
		return err
	}
	servers, err := server.BuildHTTPServers(opts)
	if err != nil {
		_ = svc.Close()
		return err
	}
	return server.RunHTTPServersWithSignals(servers, opts)
}

// CheckDependencies pings MongoDB and reports the schema status, for the
// healthcheck command. A degraded schema is reported but is not an error.
func CheckDependencies(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc, err := Connect(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	result := svc.health.Check(ctx)
	for _, check := range result.Checks {
		log.Info("dependency check",
			"name", check.Name,
			"status", check.Status,
			"message", check.Message,
			"error", check.Error,
			"duration", check.Duration,
		)
	}
	if !result.IsReady() {
		return fmt.Errorf("service is not ready: %s", result.Status)
	}
	return nil
}

// Migrate runs one migrate subcommand (up, down or status) against the task
// type collection.
func Migrate(ctx context.Context, cfg *config.Config, log logger.Logger, subcommand string, steps int) error {
	svc, err := Connect(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	return migrate.RunParsed(ctx, subcommand, steps, migrate.Options{
		ServiceName: cfg.Service.Name,
		Target:      tasktypes.Collection,
		Timeout:     cfg.Migration.Timeout,
		Logger:      log,
	}, svc.MigrationOperations())
}
