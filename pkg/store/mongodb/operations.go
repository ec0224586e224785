package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FindOptions narrows a multi-document read. Zero values mean no limit.
type FindOptions struct {
	Sort       bson.D
	Skip       int64
	Limit      int64
	Projection bson.M
}

func (o FindOptions) driver() *options.FindOptions {
	opts := options.Find()
	if len(o.Sort) > 0 {
		opts.SetSort(o.Sort)
	}
	if o.Skip > 0 {
		opts.SetSkip(o.Skip)
	}
	if o.Limit > 0 {
		opts.SetLimit(o.Limit)
	}
	if o.Projection != nil {
		opts.SetProjection(o.Projection)
	}
	return opts
}

func (a *Adapter) InsertOne(ctx context.Context, collection string, doc interface{}) (*mongo.InsertOneResult, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	ctx, cancel := a.opContext(ctx)
	defer cancel()
	return a.Collection(collection).InsertOne(ctx, doc)
}

// FindOne decodes the first match into result. mongo.ErrNoDocuments is
// returned unwrapped.
func (a *Adapter) FindOne(ctx context.Context, collection string, filter, projection, result interface{}) error {
	if a.closed.Load() {
		return ErrClosed
	}
	ctx, cancel := a.opContext(ctx)
	defer cancel()
	opts := options.FindOne()
	if projection != nil {
		opts.SetProjection(projection)
	}
	return a.Collection(collection).FindOne(ctx, filter, opts).Decode(result)
}

func (a *Adapter) Find(ctx context.Context, collection string, filter interface{}, opts FindOptions) ([]bson.M, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	ctx, cancel := a.opContext(ctx)
	defer cancel()
	cursor, err := a.Collection(collection).Find(ctx, filter, opts.driver())
	if err != nil {
		return nil, err
	}
	return drain(ctx, cursor)
}

func (a *Adapter) CountDocuments(ctx context.Context, collection string, filter interface{}) (int64, error) {
	if a.closed.Load() {
		return 0, ErrClosed
	}
	ctx, cancel := a.opContext(ctx)
	defer cancel()
	return a.Collection(collection).CountDocuments(ctx, filter)
}

// UpdateOne applies update to the first match, inserting when upsert is set
// and nothing matches.
func (a *Adapter) UpdateOne(ctx context.Context, collection string, filter, update interface{}, upsert bool) (*mongo.UpdateResult, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	ctx, cancel := a.opContext(ctx)
	defer cancel()
	return a.Collection(collection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(upsert))
}

func (a *Adapter) DeleteOne(ctx context.Context, collection string, filter interface{}) (*mongo.DeleteResult, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	ctx, cancel := a.opContext(ctx)
	defer cancel()
	return a.Collection(collection).DeleteOne(ctx, filter)
}

func (a *Adapter) Aggregate(ctx context.Context, collection string, pipeline interface{}) ([]bson.M, error) {
	if a.closed.Load() {
		return nil, ErrClosed
	}
	ctx, cancel := a.opContext(ctx)
	defer cancel()
	cursor, err := a.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return drain(ctx, cursor)
}

// WithTransaction runs fn in a multi-document transaction on a new session.
// The deployment must be a replica set or a sharded cluster.
func (a *Adapter) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if a.closed.Load() {
		return ErrClosed
	}
	session, err := a.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongodb session: %w", err)
	}
	defer session.EndSession(context.Background())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func drain(ctx context.Context, cursor *mongo.Cursor) ([]bson.M, error) {
	var out []bson.M
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
