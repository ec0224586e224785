package document

import (
	"context"
	"errors"

	"github.com/nimburion/taskmanager/pkg/observability/metrics"
	"github.com/nimburion/taskmanager/pkg/repository"
	"github.com/nimburion/taskmanager/pkg/resilience"
	"go.mongodb.org/mongo-driver/bson"
)

// IsStoreFailure reports whether err says the document store is unavailable.
// Caller mistakes and missing documents are answers, not failures, and neither
// is a cancelled request.
func IsStoreFailure(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrValidation),
		errors.Is(err, repository.ErrSerialization),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// GuardedExecutor runs every call of the wrapped executor through a circuit
// breaker. While the circuit is open calls fail with resilience.ErrCircuitOpen.
type GuardedExecutor struct {
	next    Executor
	breaker *resilience.CircuitBreaker
}

type guardedTransactionalExecutor struct {
	*GuardedExecutor
	tx repository.TransactionManager
}

// NewGuardedExecutor wraps next. The result implements TransactionalExecutor
// exactly when next does.
func NewGuardedExecutor(next Executor, breaker *resilience.CircuitBreaker) Executor {
	g := &GuardedExecutor{next: next, breaker: breaker}
	if tx, ok := next.(TransactionalExecutor); ok {
		return &guardedTransactionalExecutor{GuardedExecutor: g, tx: tx}
	}
	return g
}

func (g *GuardedExecutor) run(ctx context.Context, fn func(context.Context) error) error {
	err := g.breaker.Execute(ctx, fn)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		metrics.RecordStoreCircuitRejection()
	}
	return err
}

// InsertOne inserts a document through the breaker.
func (g *GuardedExecutor) InsertOne(ctx context.Context, collection string, document bson.M) (id interface{}, err error) {
	err = g.run(ctx, func(ctx context.Context) error {
		id, err = g.next.InsertOne(ctx, collection, document)
		return err
	})
	return id, err
}

// FindOne finds a single document through the breaker.
func (g *GuardedExecutor) FindOne(ctx context.Context, collection string, filter Filter, projection bson.M) (doc bson.M, err error) {
	err = g.run(ctx, func(ctx context.Context) error {
		doc, err = g.next.FindOne(ctx, collection, filter, projection)
		return err
	})
	return doc, err
}

// Find returns matching documents through the breaker.
func (g *GuardedExecutor) Find(ctx context.Context, collection string, filter Filter, opts FindOptions) (docs []bson.M, err error) {
	err = g.run(ctx, func(ctx context.Context) error {
		docs, err = g.next.Find(ctx, collection, filter, opts)
		return err
	})
	return docs, err
}

// CountDocuments counts matching documents through the breaker.
func (g *GuardedExecutor) CountDocuments(ctx context.Context, collection string, filter Filter) (n int64, err error) {
	err = g.run(ctx, func(ctx context.Context) error {
		n, err = g.next.CountDocuments(ctx, collection, filter)
		return err
	})
	return n, err
}

// UpdateOne updates a document through the breaker.
func (g *GuardedExecutor) UpdateOne(ctx context.Context, collection string, filter Filter, update bson.M, upsert bool) (res UpdateResult, err error) {
	err = g.run(ctx, func(ctx context.Context) error {
		res, err = g.next.UpdateOne(ctx, collection, filter, update, upsert)
		return err
	})
	return res, err
}

// DeleteOne deletes a document through the breaker.
func (g *GuardedExecutor) DeleteOne(ctx context.Context, collection string, filter Filter) (n int64, err error) {
	err = g.run(ctx, func(ctx context.Context) error {
		n, err = g.next.DeleteOne(ctx, collection, filter)
		return err
	})
	return n, err
}

// Aggregate runs a pipeline through the breaker.
func (g *GuardedExecutor) Aggregate(ctx context.Context, collection string, pipeline []bson.M) (docs []bson.M, err error) {
	err = g.run(ctx, func(ctx context.Context) error {
		docs, err = g.next.Aggregate(ctx, collection, pipeline)
		return err
	})
	return docs, err
}

// WithTransaction is not guarded itself; the calls fn makes are.
func (g *guardedTransactionalExecutor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return g.tx.WithTransaction(ctx, fn)
}
