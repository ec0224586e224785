package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimburion/taskmanager/pkg/observability/metrics"
	"github.com/nimburion/taskmanager/pkg/observability/tracing"
	"github.com/nimburion/taskmanager/pkg/repository"
	mongostore "github.com/nimburion/taskmanager/pkg/store/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoDBExecutor adapts store/mongodb adapter to the repository/document executor contract.
type MongoDBExecutor struct {
	adapter *mongostore.Adapter
}

var _ TransactionalExecutor = (*MongoDBExecutor)(nil)

// NewMongoDBExecutor creates a new MongoDBExecutor instance.
func NewMongoDBExecutor(adapter *mongostore.Adapter) (*MongoDBExecutor, error) {
	if adapter == nil {
		return nil, fmt.Errorf("mongodb adapter is required")
	}
	return &MongoDBExecutor{adapter: adapter}, nil
}

// InsertOne inserts a document into the collection.
func (e *MongoDBExecutor) InsertOne(ctx context.Context, collection string, document bson.M) (id interface{}, err error) {
	ctx, done := e.observe(ctx, tracing.SpanOperationDBInsert, collection, "insertOne")
	defer func() { done(err) }()

	if _, ok := document["_id"]; !ok {
		document["_id"] = primitive.NewObjectID().Hex()
	}
	result, err := e.adapter.InsertOne(ctx, collection, document)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, repository.Conflict("%s: duplicate id %v", collection, document["_id"])
		}
		return nil, err
	}
	return result.InsertedID, nil
}

// FindOne finds a single document matching the filter.
func (e *MongoDBExecutor) FindOne(ctx context.Context, collection string, filter Filter, projection bson.M) (doc bson.M, err error) {
	ctx, done := e.observe(ctx, tracing.SpanOperationDBQuery, collection, "findOne")
	defer func() { done(err) }()

	out := bson.M{}
	var proj interface{}
	if projection != nil {
		proj = projection
	}
	if err := e.adapter.FindOne(ctx, collection, filter.bson(), proj, &out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.NotFound("%s: no document matches", collection)
		}
		return nil, err
	}
	return out, nil
}

// Find returns every document matching the filter.
func (e *MongoDBExecutor) Find(ctx context.Context, collection string, filter Filter, opts FindOptions) (docs []bson.M, err error) {
	ctx, done := e.observe(ctx, tracing.SpanOperationDBQuery, collection, "find")
	defer func() { done(err) }()

	return e.adapter.Find(ctx, collection, filter.bson(), mongostore.FindOptions{
		Sort:       opts.Sort.Document(),
		Skip:       opts.Skip,
		Limit:      opts.Limit,
		Projection: opts.Projection,
	})
}

// CountDocuments counts the documents matching the filter.
func (e *MongoDBExecutor) CountDocuments(ctx context.Context, collection string, filter Filter) (total int64, err error) {
	ctx, done := e.observe(ctx, tracing.SpanOperationDBQuery, collection, "countDocuments")
	defer func() { done(err) }()

	return e.adapter.CountDocuments(ctx, collection, filter.bson())
}

// UpdateOne updates a single document matching the filter.
func (e *MongoDBExecutor) UpdateOne(ctx context.Context, collection string, filter Filter, update bson.M, upsert bool) (res UpdateResult, err error) {
	ctx, done := e.observe(ctx, tracing.SpanOperationDBUpdate, collection, "updateOne")
	defer func() { done(err) }()

	result, err := e.adapter.UpdateOne(ctx, collection, filter.bson(), update, upsert)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{
		Matched:  result.MatchedCount,
		Modified: result.ModifiedCount,
		Upserted: result.UpsertedID,
	}, nil
}

// DeleteOne deletes a single document matching the filter.
func (e *MongoDBExecutor) DeleteOne(ctx context.Context, collection string, filter Filter) (deleted int64, err error) {
	ctx, done := e.observe(ctx, tracing.SpanOperationDBDelete, collection, "deleteOne")
	defer func() { done(err) }()

	result, err := e.adapter.DeleteOne(ctx, collection, filter.bson())
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// Aggregate runs an aggregation pipeline.
func (e *MongoDBExecutor) Aggregate(ctx context.Context, collection string, pipeline []bson.M) (docs []bson.M, err error) {
	ctx, done := e.observe(ctx, tracing.SpanOperationDBQuery, collection, "aggregate")
	defer func() { done(err) }()

	return e.adapter.Aggregate(ctx, collection, pipeline)
}

// WithTransaction runs fn inside a MongoDB multi-document transaction.
func (e *MongoDBExecutor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	ctx, done := e.observe(ctx, tracing.SpanOperationDBTx, "", "transaction")
	defer func() { done(err) }()

	return e.adapter.WithTransaction(ctx, fn)
}

func (e *MongoDBExecutor) observe(ctx context.Context, op tracing.SpanOperation, collection, command string) (context.Context, func(error)) {
	ctx, span := tracing.StartStoreSpan(ctx, tracing.StoreCall{
		Operation:  op,
		System:     "mongodb",
		Collection: collection,
		Command:    command,
	})
	start := time.Now()
	return ctx, func(err error) {
		tracing.EndSpan(span, err, repository.ErrNotFound)
		metrics.RecordStoreOperation(collection, command, time.Since(start), err)
	}
}

func (f Filter) bson() bson.M {
	if f == nil {
		return bson.M{}
	}
	return bson.M(f)
}
