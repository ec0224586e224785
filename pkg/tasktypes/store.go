package tasktypes

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/repository"
	"github.com/nimburion/taskmanager/pkg/repository/document"
	"go.mongodb.org/mongo-driver/bson"
)

// Store persists task types in the taskTypes collection.
type Store struct {
	exec   document.Executor
	pager  *document.Pager
	codec  document.Codec
	logger logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCodec replaces the model conversion.
func WithCodec(codec document.Codec) Option {
	return func(s *Store) { s.codec = codec }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) { s.logger = log }
}

// NewStore creates a Store over exec.
func NewStore(exec document.Executor, opts ...Option) (*Store, error) {
	if exec == nil {
		return nil, fmt.Errorf("document executor is required")
	}
	s := &Store{
		exec:   exec,
		pager:  document.NewPager(exec),
		codec:  document.BSONCodec{},
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search returns the task type with id.
func (s *Store) Search(ctx context.Context, id string) (*TaskType, error) {
	doc, err := s.exec.FindOne(ctx, Collection, document.Filter{"_id": id}, nil)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.NotFound("task type %q does not exist", id)
		}
		return nil, err
	}
	return s.decode(doc)
}

// Store inserts taskType as given, timestamps included. Callers that want server
// time must set CreationTs and LastUpdateTs before calling.
func (s *Store) Store(ctx context.Context, taskType *TaskType) (*TaskType, error) {
	if taskType == nil {
		return nil, repository.Serialization(nil, "no task type to store")
	}
	stored := *taskType
	doc, err := s.encode(stored)
	if err != nil {
		return nil, err
	}
	id, err := s.exec.InsertOne(ctx, Collection, doc)
	if err != nil {
		return nil, err
	}
	stored.ID = fmt.Sprint(id)
	s.logger.WithContext(ctx).Debug("task type stored", "task_type_id", stored.ID)
	return &stored, nil
}

// Update replaces every field of the stored task type except its ID and creation time.
func (s *Store) Update(ctx context.Context, taskType *TaskType) error {
	if taskType == nil {
		return repository.Serialization(nil, "no task type to update")
	}
	doc, err := s.encode(*taskType)
	if err != nil {
		return err
	}
	delete(doc, "_id")
	delete(doc, "_creationTs")

	update := bson.M{"$set": doc}
	unset := bson.M{}
	for _, field := range optionalFields {
		if _, ok := doc[field]; !ok {
			unset[field] = ""
		}
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	res, err := s.exec.UpdateOne(ctx, Collection, document.Filter{"_id": taskType.ID}, update, false)
	if err != nil {
		return err
	}
	if res.Matched == 0 {
		return repository.NotFound("task type %q does not exist", taskType.ID)
	}
	s.logger.WithContext(ctx).Debug("task type updated", "task_type_id", taskType.ID)
	return nil
}

// Delete removes the task type with id.
func (s *Store) Delete(ctx context.Context, id string) error {
	deleted, err := s.exec.DeleteOne(ctx, Collection, document.Filter{"_id": id})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return repository.NotFound("task type %q does not exist", id)
	}
	s.logger.WithContext(ctx).Debug("task type deleted", "task_type_id", id)
	return nil
}

// RetrieveTaskTypesPage returns the task types matching filter inside the [offset, offset+limit) window.
func (s *Store) RetrieveTaskTypesPage(ctx context.Context, filter document.Filter, sort document.SortSpec, offset, limit int) (*TaskTypesPage, error) {
	raw, err := s.pager.Page(ctx, Collection, filter, sort, offset, limit)
	if err != nil {
		return nil, err
	}
	page := &TaskTypesPage{Offset: raw.Offset, Total: raw.Total}
	for _, doc := range raw.Docs {
		taskType, err := s.decode(doc)
		if err != nil {
			return nil, err
		}
		page.TaskTypes = append(page.TaskTypes, *taskType)
	}
	return page, nil
}

// encode converts taskType and tags it with the schema version it was written in.
func (s *Store) encode(taskType TaskType) (bson.M, error) {
	doc, err := s.codec.Encode(taskType)
	if err != nil {
		return nil, repository.Serialization(err, "can not convert the task type")
	}
	if doc == nil {
		return nil, repository.Serialization(nil, "the task type converts to nothing")
	}
	doc[SchemaVersionField] = SchemaVersion
	return doc, nil
}

func (s *Store) decode(doc bson.M) (*TaskType, error) {
	var taskType TaskType
	if err := s.codec.Decode(doc, &taskType); err != nil {
		return nil, repository.Serialization(err, "task type %v", doc["_id"])
	}
	return &taskType, nil
}
