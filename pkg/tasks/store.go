package tasks

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/repository"
	"github.com/nimburion/taskmanager/pkg/repository/document"
	"go.mongodb.org/mongo-driver/bson"
)

// Store persists tasks in the tasks collection.
type Store struct {
	exec   document.Executor
	pager  *document.Pager
	codec  document.Codec
	clock  repository.Clock
	ids    repository.IDSource
	tx     repository.TransactionManager
	logger logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCodec replaces the model conversion.
func WithCodec(codec document.Codec) Option {
	return func(s *Store) { s.codec = codec }
}

// WithClock replaces the time source used for timestamps.
func WithClock(clock repository.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

// WithIDSource replaces the generator of temporary transaction markers.
func WithIDSource(ids repository.IDSource) Option {
	return func(s *Store) { s.ids = ids }
}

// WithTransactions makes AddTransactionIntoTask read the next position and push the
// final element inside one transaction instead of the marker protocol.
func WithTransactions(tm repository.TransactionManager) Option {
	return func(s *Store) { s.tx = tm }
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
		clock:  repository.SystemClock,
		ids:    repository.UUIDSource,
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search returns the task with id.
func (s *Store) Search(ctx context.Context, id string) (*Task, error) {
	doc, err := s.exec.FindOne(ctx, Collection, document.Filter{"_id": id}, nil)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.NotFound("task %q does not exist", id)
		}
		return nil, err
	}
	return s.decodeTask(doc)
}

// Store inserts task. Both timestamps are set to now whatever the caller supplied.
// An empty ID is generated by the executor.
func (s *Store) Store(ctx context.Context, task *Task) (*Task, error) {
	if task == nil {
		return nil, repository.Serialization(nil, "no task to store")
	}
	now := s.clock.Now()
	stored := *task
	stored.CreationTs = now
	stored.LastUpdateTs = now

	doc, err := s.encode(stored, "task")
	if err != nil {
		return nil, err
	}
	id, err := s.exec.InsertOne(ctx, Collection, doc)
	if err != nil {
		return nil, err
	}
	stored.ID = fmt.Sprint(id)
	for i := range stored.Transactions {
		stored.Transactions[i].TaskID = stored.ID
	}
	s.logger.WithContext(ctx).Debug("task stored", "task_id", stored.ID)
	return &stored, nil
}

// Update replaces every field of the stored task except its ID and creation time.
// Unlike a whole-document replace it leaves the transactions untouched as well:
// they only grow through AddTransactionIntoTask and AddMessageIntoTransaction,
// and their ids are array positions. The caller is responsible for LastUpdateTs.
func (s *Store) Update(ctx context.Context, task *Task) error {
	if task == nil {
		return repository.Serialization(nil, "no task to update")
	}
	doc, err := s.encode(*task, "task")
	if err != nil {
		return err
	}
	delete(doc, "_id")
	delete(doc, "_creationTs")
	delete(doc, "transactions")

	update := bson.M{"$set": doc}
	if unset := missing(doc, optionalFields); len(unset) > 0 {
		update["$unset"] = unset
	}
	res, err := s.exec.UpdateOne(ctx, Collection, document.Filter{"_id": task.ID}, update, false)
	if err != nil {
		return err
	}
	if res.Matched == 0 {
		return repository.NotFound("task %q does not exist", task.ID)
	}
	s.logger.WithContext(ctx).Debug("task updated", "task_id", task.ID)
	return nil
}

// Delete removes the task with id.
func (s *Store) Delete(ctx context.Context, id string) error {
	deleted, err := s.exec.DeleteOne(ctx, Collection, document.Filter{"_id": id})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return repository.NotFound("task %q does not exist", id)
	}
	s.logger.WithContext(ctx).Debug("task deleted", "task_id", id)
	return nil
}

// RetrieveTasksPage returns the tasks matching filter inside the [offset, offset+limit) window.
// Tasks is nil when the window is empty.
func (s *Store) RetrieveTasksPage(ctx context.Context, filter document.Filter, sort document.SortSpec, offset, limit int) (*TasksPage, error) {
	raw, err := s.pager.Page(ctx, Collection, filter, sort, offset, limit)
	if err != nil {
		return nil, err
	}
	page := &TasksPage{Offset: raw.Offset, Total: raw.Total}
	for _, doc := range raw.Docs {
		task, err := s.decodeTask(doc)
		if err != nil {
			return nil, err
		}
		page.Tasks = append(page.Tasks, *task)
	}
	return page, nil
}

// AddTransactionIntoTask appends transaction to the task and returns it with its assigned ID,
// the decimal position it occupies in the task's transaction list.
func (s *Store) AddTransactionIntoTask(ctx context.Context, taskID string, transaction *TaskTransaction) (*TaskTransaction, error) {
	if transaction == nil {
		return nil, repository.Serialization(nil, "no transaction to add")
	}
	now := s.clock.Now()
	added := *transaction
	added.TaskID = ""
	added.CreationTs = now
	added.LastUpdateTs = now

	var err error
	if s.tx != nil {
		err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
			return s.appendAtNextPosition(ctx, taskID, &added, now)
		})
	} else {
		err = s.appendWithMarker(ctx, taskID, &added, now)
	}
	if err != nil {
		return nil, err
	}
	added.TaskID = taskID
	s.logger.WithContext(ctx).Debug("transaction added", "task_id", taskID, "transaction_id", added.ID)
	return &added, nil
}

// appendWithMarker pushes the element under a unique marker, reads back where it landed
// and rewrites the marker into the final position.
func (s *Store) appendWithMarker(ctx context.Context, taskID string, added *TaskTransaction, now int64) error {
	marker := s.ids.NewID()
	added.ID = marker
	doc, err := s.encode(*added, "transaction")
	if err != nil {
		return err
	}

	res, err := s.exec.UpdateOne(ctx, Collection, document.Filter{"_id": taskID}, bson.M{
		"$push": bson.M{"transactions": doc},
		"$set":  bson.M{"_lastUpdateTs": now},
	}, false)
	if err != nil {
		return err
	}
	if res.Matched == 0 {
		return repository.NotFound("task %q does not exist", taskID)
	}

	found, err := s.exec.FindOne(ctx, Collection, document.Filter{"_id": taskID}, bson.M{"transactions.id": 1})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.WithContext(ctx).Warn("task disappeared while adding a transaction", "task_id", taskID)
			return repository.NotFound("task %q does not exist", taskID)
		}
		return err
	}
	position := indexOf(transactionIDs(found), marker)
	if position < 0 {
		s.logger.WithContext(ctx).Warn("transaction disappeared while being added", "task_id", taskID)
		return repository.NotFound("task %q does not exist", taskID)
	}

	id := strconv.Itoa(position)
	res, err = s.exec.UpdateOne(ctx, Collection, document.Filter{"_id": taskID, "transactions.id": marker}, bson.M{
		"$set": bson.M{"transactions.$.id": id},
	}, false)
	if err != nil {
		return err
	}
	if res.Matched == 0 {
		s.logger.WithContext(ctx).Warn("task disappeared while adding a transaction", "task_id", taskID)
		return repository.NotFound("task %q does not exist", taskID)
	}
	added.ID = id
	return nil
}

// appendAtNextPosition must run inside a transaction.
func (s *Store) appendAtNextPosition(ctx context.Context, taskID string, added *TaskTransaction, now int64) error {
	found, err := s.exec.FindOne(ctx, Collection, document.Filter{"_id": taskID}, bson.M{"transactions.id": 1})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.NotFound("task %q does not exist", taskID)
		}
		return err
	}
	added.ID = strconv.Itoa(len(transactionIDs(found)))
	doc, err := s.encode(*added, "transaction")
	if err != nil {
		return err
	}
	res, err := s.exec.UpdateOne(ctx, Collection, document.Filter{"_id": taskID}, bson.M{
		"$push": bson.M{"transactions": doc},
		"$set":  bson.M{"_lastUpdateTs": now},
	}, false)
	if err != nil {
		return err
	}
	if res.Matched == 0 {
		return repository.NotFound("task %q does not exist", taskID)
	}
	return nil
}

// AddMessageIntoTransaction appends message to the transaction and bumps the update time of
// both the task and the transaction.
func (s *Store) AddMessageIntoTransaction(ctx context.Context, taskID, transactionID string, message *Message) (*Message, error) {
	if message == nil {
		return nil, repository.Serialization(nil, "no message to add")
	}
	doc, err := s.encode(*message, "message")
	if err != nil {
		return nil, err
	}

	// A concurrent writer may have initialised the list first, in which case nothing matches.
	_, err = s.exec.UpdateOne(ctx, Collection, document.Filter{
		"_id":          taskID,
		"transactions": bson.M{"$elemMatch": bson.M{"id": transactionID, "messages": nil}},
	}, bson.M{"$set": bson.M{"transactions.$.messages": bson.A{}}}, false)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	res, err := s.exec.UpdateOne(ctx, Collection, document.Filter{"_id": taskID, "transactions.id": transactionID}, bson.M{
		"$push": bson.M{"transactions.$.messages": doc},
		"$set": bson.M{
			"_lastUpdateTs":                now,
			"transactions.$._lastUpdateTs": now,
		},
	}, false)
	if err != nil {
		return nil, err
	}
	if res.Matched == 0 {
		return nil, repository.NotFound("task %q or transaction %q does not exist", taskID, transactionID)
	}
	s.logger.WithContext(ctx).Debug("message added", "task_id", taskID, "transaction_id", transactionID)
	added := *message
	return &added, nil
}

// RetrieveTaskTransactionsPage pages over the transactions of every task, one row per transaction.
// filter and sort address task fields directly and transaction fields under "transactions.".
func (s *Store) RetrieveTaskTransactionsPage(ctx context.Context, filter document.Filter, sort document.SortSpec, offset, limit int) (*TaskTransactionsPage, error) {
	raw, err := s.pager.Flattened(ctx, Collection, transactionRows, filter, sort, offset, limit)
	if err != nil {
		return nil, err
	}
	page := &TaskTransactionsPage{Offset: raw.Offset, Total: raw.Total}
	for _, row := range raw.Docs {
		transaction, err := s.decodeTransactionRow(row)
		if err != nil {
			return nil, err
		}
		page.Transactions = append(page.Transactions, *transaction)
	}
	return page, nil
}

// RetrieveMessagesPage pages over every message of every transaction, one row per message.
// Message fields are addressed under "transactions.messages.".
func (s *Store) RetrieveMessagesPage(ctx context.Context, filter document.Filter, sort document.SortSpec, offset, limit int) (*MessagesPage, error) {
	raw, err := s.pager.Flattened(ctx, Collection, messageRows, filter, sort, offset, limit)
	if err != nil {
		return nil, err
	}
	page := &MessagesPage{Offset: raw.Offset, Total: raw.Total}
	for _, row := range raw.Docs {
		transaction, _ := document.AsM(row["transactions"])
		doc, ok := document.AsM(transaction["messages"])
		if !ok {
			return nil, repository.Serialization(nil, "message row of task %v has no message", row["_id"])
		}
		var message Message
		if err := s.codec.Decode(doc, &message); err != nil {
			return nil, repository.Serialization(err, "message of task %v", row["_id"])
		}
		page.Messages = append(page.Messages, message)
	}
	return page, nil
}

var (
	transactionRows = document.FlattenSpec{{Path: "transactions", IndexField: TransactionsIndex}}
	messageRows     = document.FlattenSpec{
		{Path: "transactions", IndexField: TransactionsIndex},
		{Path: "transactions.messages", IndexField: MessagesIndex},
	}
)

func (s *Store) encode(v interface{}, what string) (bson.M, error) {
	doc, err := s.codec.Encode(v)
	if err != nil {
		return nil, repository.Serialization(err, "can not convert the %s", what)
	}
	if doc == nil {
		return nil, repository.Serialization(nil, "the %s converts to nothing", what)
	}
	return doc, nil
}

func (s *Store) decodeTask(doc bson.M) (*Task, error) {
	var task Task
	if err := s.codec.Decode(doc, &task); err != nil {
		return nil, repository.Serialization(err, "task %v", doc["_id"])
	}
	for i := range task.Transactions {
		task.Transactions[i].TaskID = task.ID
	}
	return &task, nil
}

func (s *Store) decodeTransactionRow(row bson.M) (*TaskTransaction, error) {
	doc, ok := document.AsM(row["transactions"])
	if !ok {
		return nil, repository.Serialization(nil, "transaction row of task %v has no transaction", row["_id"])
	}
	var transaction TaskTransaction
	if err := s.codec.Decode(doc, &transaction); err != nil {
		return nil, repository.Serialization(err, "transaction of task %v", row["_id"])
	}
	transaction.TaskID = fmt.Sprint(row["_id"])
	return &transaction, nil
}

func transactionIDs(doc bson.M) []string {
	items, _ := document.AsSlice(doc["transactions"])
	ids := make([]string, 0, len(items))
	for _, item := range items {
		element, _ := document.AsM(item)
		id, _ := element["id"].(string)
		ids = append(ids, id)
	}
	return ids
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}

func missing(doc bson.M, fields []string) bson.M {
	out := bson.M{}
	for _, field := range fields {
		if _, ok := doc[field]; !ok {
			out[field] = ""
		}
	}
	return out
}
