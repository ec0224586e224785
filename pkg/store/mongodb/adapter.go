// Package mongodb owns the MongoDB client used by the document executor.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultConnectTimeout   = 5 * time.Second
	defaultOperationTimeout = 5 * time.Second
	healthCheckTimeout      = 2 * time.Second
	disconnectTimeout       = 5 * time.Second
)

// ErrClosed is returned by every call made after Close.
var ErrClosed = errors.New("mongodb adapter is closed")

// Config describes one database on one deployment.
type Config struct {
	URL      string
	Database string
	// AppName is reported to the server and shows up in its logs.
	AppName          string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
}

// Adapter is a connected client bound to a single database. Calls without a
// deadline get OperationTimeout.
type Adapter struct {
	client   *mongo.Client
	database string
	logger   logger.Logger
	timeout  time.Duration
	closed   atomic.Bool
}

// NewAdapter connects and pings the primary before returning.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	switch {
	case cfg.URL == "":
		return nil, errors.New("mongodb URL is required")
	case cfg.Database == "":
		return nil, errors.New("mongodb database is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaultOperationTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.URL).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout)
	if cfg.AppName != "" {
		clientOpts.SetAppName(cfg.AppName)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	log.Info("mongodb connected", "database", cfg.Database, "operation_timeout", cfg.OperationTimeout.String())
	return &Adapter{
		client:   client,
		database: cfg.Database,
		logger:   log,
		timeout:  cfg.OperationTimeout,
	}, nil
}

// Collection returns a handle on name in the configured database.
func (a *Adapter) Collection(name string) *mongo.Collection {
	return a.client.Database(a.database).Collection(name)
}

func (a *Adapter) Ping(ctx context.Context) error {
	if a.closed.Load() {
		return ErrClosed
	}
	return a.client.Ping(ctx, readpref.Primary())
}

// HealthCheck pings within a short fixed budget for the readiness probe.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := a.Ping(ctx); err != nil {
		a.logger.Warn("mongodb health check failed", "error", err)
		return fmt.Errorf("mongodb health check: %w", err)
	}
	return nil
}

// Close disconnects once; later calls return nil.
func (a *Adapter) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	a.logger.Info("mongodb disconnected", "database", a.database)
	return nil
}

// opContext applies the operation timeout unless ctx already has a deadline.
func (a *Adapter) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
