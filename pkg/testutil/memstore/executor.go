// Package memstore is an in-memory document.Executor for tests. It understands the
// subset of the MongoDB query, update and aggregation language the stores emit.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/nimburion/taskmanager/pkg/repository"
	"github.com/nimburion/taskmanager/pkg/repository/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Executor keeps collections as ordered slices of documents.
type Executor struct {
	mu          sync.Mutex
	txMu        sync.Mutex
	collections map[string][]map[string]interface{}
	failures    map[string]error
	calls       map[string]int
}

var _ document.TransactionalExecutor = (*Executor)(nil)

// New creates an empty Executor.
func New() *Executor {
	return &Executor{
		collections: map[string][]map[string]interface{}{},
		failures:    map[string]error{},
		calls:       map[string]int{},
	}
}

// FailOn makes every later call of op (for example "Find") return err. A nil err clears it.
func (e *Executor) FailOn(op string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.failures, op)
		return
	}
	e.failures[op] = err
}

// Calls returns how many times op has been invoked.
func (e *Executor) Calls(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[op]
}

// Documents returns a copy of every document stored in collection.
func (e *Executor) Documents(collection string) []bson.M {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]bson.M, 0, len(e.collections[collection]))
	for _, doc := range e.collections[collection] {
		out = append(out, bson.M(cloneMap(doc)))
	}
	return out
}

// Seed stores documents verbatim, bypassing id generation.
func (e *Executor) Seed(collection string, docs ...bson.M) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, doc := range docs {
		e.collections[collection] = append(e.collections[collection], normalize(doc).(map[string]interface{}))
	}
}

func (e *Executor) enter(op string) error {
	e.calls[op]++
	return e.failures[op]
}

func (e *Executor) InsertOne(_ context.Context, collection string, doc bson.M) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("InsertOne"); err != nil {
		return nil, err
	}

	stored := normalize(doc).(map[string]interface{})
	if _, ok := stored["_id"]; !ok {
		stored["_id"] = primitive.NewObjectID().Hex()
	}
	for _, existing := range e.collections[collection] {
		if equal(existing["_id"], stored["_id"]) {
			return nil, repository.Conflict("%s: duplicate id %v", collection, stored["_id"])
		}
	}
	e.collections[collection] = append(e.collections[collection], stored)
	return stored["_id"], nil
}

func (e *Executor) FindOne(_ context.Context, collection string, filter document.Filter, _ bson.M) (bson.M, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("FindOne"); err != nil {
		return nil, err
	}

	cond := normalize(map[string]interface{}(filter))
	for _, doc := range e.collections[collection] {
		if matches(doc, asMap(cond)) {
			return bson.M(cloneMap(doc)), nil
		}
	}
	return nil, repository.NotFound("%s: no document matches", collection)
}

func (e *Executor) Find(_ context.Context, collection string, filter document.Filter, opts document.FindOptions) ([]bson.M, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("Find"); err != nil {
		return nil, err
	}

	cond := asMap(normalize(map[string]interface{}(filter)))
	var docs []map[string]interface{}
	for _, doc := range e.collections[collection] {
		if matches(doc, cond) {
			docs = append(docs, cloneMap(doc))
		}
	}
	docs = sortDocs(docs, opts.Sort.Document())
	docs = window(docs, opts.Skip, opts.Limit)
	return toBSON(docs), nil
}

func (e *Executor) CountDocuments(_ context.Context, collection string, filter document.Filter) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("CountDocuments"); err != nil {
		return 0, err
	}

	cond := asMap(normalize(map[string]interface{}(filter)))
	var n int64
	for _, doc := range e.collections[collection] {
		if matches(doc, cond) {
			n++
		}
	}
	return n, nil
}

func (e *Executor) UpdateOne(_ context.Context, collection string, filter document.Filter, update bson.M, upsert bool) (document.UpdateResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("UpdateOne"); err != nil {
		return document.UpdateResult{}, err
	}

	cond := asMap(normalize(map[string]interface{}(filter)))
	ops := asMap(normalize(map[string]interface{}(update)))
	for i, doc := range e.collections[collection] {
		if !matches(doc, cond) {
			continue
		}
		updated := cloneMap(doc)
		if err := applyUpdate(updated, cond, ops); err != nil {
			return document.UpdateResult{}, err
		}
		result := document.UpdateResult{Matched: 1}
		if !equal(doc, updated) {
			e.collections[collection][i] = updated
			result.Modified = 1
		}
		return result, nil
	}

	if !upsert {
		return document.UpdateResult{}, nil
	}
	created := map[string]interface{}{}
	for key, value := range cond {
		if _, isOp := value.(map[string]interface{}); !isOp && key[0] != '$' {
			created[key] = value
		}
	}
	if err := applyUpdate(created, cond, ops); err != nil {
		return document.UpdateResult{}, err
	}
	if _, ok := created["_id"]; !ok {
		created["_id"] = primitive.NewObjectID().Hex()
	}
	e.collections[collection] = append(e.collections[collection], created)
	return document.UpdateResult{Upserted: created["_id"]}, nil
}

func (e *Executor) DeleteOne(_ context.Context, collection string, filter document.Filter) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("DeleteOne"); err != nil {
		return 0, err
	}

	cond := asMap(normalize(map[string]interface{}(filter)))
	docs := e.collections[collection]
	for i, doc := range docs {
		if matches(doc, cond) {
			e.collections[collection] = append(docs[:i:i], docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (e *Executor) Aggregate(_ context.Context, collection string, pipeline []bson.M) ([]bson.M, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("Aggregate"); err != nil {
		return nil, err
	}

	docs := make([]map[string]interface{}, 0, len(e.collections[collection]))
	for _, doc := range e.collections[collection] {
		docs = append(docs, cloneMap(doc))
	}
	for _, stage := range pipeline {
		var err error
		if docs, err = runStage(docs, stage); err != nil {
			return nil, err
		}
	}
	return toBSON(docs), nil
}

// WithTransaction serialises fn against every other transactional call.
func (e *Executor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	e.txMu.Lock()
	defer e.txMu.Unlock()
	return fn(ctx)
}

func runStage(docs []map[string]interface{}, stage bson.M) ([]map[string]interface{}, error) {
	for name, arg := range stage {
		switch name {
		case "$unwind":
			spec := asMap(normalize(arg))
			path, _ := spec["path"].(string)
			index, _ := spec["includeArrayIndex"].(string)
			return unwind(docs, path[1:], index), nil
		case "$match":
			cond := asMap(normalize(arg))
			var out []map[string]interface{}
			for _, doc := range docs {
				if matches(doc, cond) {
					out = append(out, doc)
				}
			}
			return out, nil
		case "$sort":
			order, ok := arg.(bson.D)
			if !ok {
				return nil, fmt.Errorf("memstore: $sort requires an ordered document, got %T", arg)
			}
			return sortDocs(docs, order), nil
		case "$skip":
			return window(docs, toInt64(arg), 0), nil
		case "$limit":
			return window(docs, 0, toInt64(arg)), nil
		case "$count":
			field, _ := arg.(string)
			if len(docs) == 0 {
				return nil, nil
			}
			return []map[string]interface{}{{field: int32(len(docs))}}, nil
		default:
			return nil, fmt.Errorf("memstore: unsupported stage %s", name)
		}
	}
	return docs, nil
}

func unwind(docs []map[string]interface{}, path, indexField string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, doc := range docs {
		values := lookup(doc, path)
		if len(values) != 1 {
			continue
		}
		items, ok := values[0].([]interface{})
		if !ok {
			continue
		}
		for i, item := range items {
			row := cloneMap(doc)
			setPath(row, splitPath(path), clone(item))
			if indexField != "" {
				row[indexField] = int64(i)
			}
			out = append(out, row)
		}
	}
	return out
}

func window(docs []map[string]interface{}, skip, limit int64) []map[string]interface{} {
	if skip > 0 {
		if skip >= int64(len(docs)) {
			return nil
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < int64(len(docs)) {
		docs = docs[:limit]
	}
	return docs
}

func toBSON(docs []map[string]interface{}) []bson.M {
	if len(docs) == 0 {
		return nil
	}
	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		out = append(out, bson.M(doc))
	}
	return out
}
