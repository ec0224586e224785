package document

import (
	"context"

	"github.com/nimburion/taskmanager/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
)

// FindOptions narrows a multi-document read.
type FindOptions struct {
	Sort       SortSpec
	Skip       int64
	Limit      int64
	Projection bson.M
}

// UpdateResult reports how many documents an update matched and changed.
type UpdateResult struct {
	Matched  int64
	Modified int64
	Upserted interface{}
}

// Executor is the document-store contract the stores are written against.
//
// FindOne returns an error matching repository.ErrNotFound when nothing matches.
// InsertOne assigns a generated string _id when the document carries none and
// returns an error matching repository.ErrConflict on a duplicate _id.
type Executor interface {
	InsertOne(ctx context.Context, collection string, document bson.M) (interface{}, error)
	FindOne(ctx context.Context, collection string, filter Filter, projection bson.M) (bson.M, error)
	Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]bson.M, error)
	CountDocuments(ctx context.Context, collection string, filter Filter) (int64, error)
	UpdateOne(ctx context.Context, collection string, filter Filter, update bson.M, upsert bool) (UpdateResult, error)
	DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error)
	Aggregate(ctx context.Context, collection string, pipeline []bson.M) ([]bson.M, error)
}

// TransactionalExecutor is an Executor able to run several calls atomically.
type TransactionalExecutor interface {
	Executor
	repository.TransactionManager
}
