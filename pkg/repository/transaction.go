package repository

import "context"

// TransactionManager provides transaction management capabilities
type TransactionManager interface {
	// WithTransaction executes the given function within a transaction
	// If the function returns an error, the transaction is rolled back
	// Otherwise, the transaction is committed
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionFunc adapts a plain function to TransactionManager.
type TransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error

func (f TransactionFunc) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// NoTransaction runs fn directly without any transactional guarantees.
var NoTransaction TransactionManager = TransactionFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})
