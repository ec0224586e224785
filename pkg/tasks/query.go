package tasks

import "github.com/nimburion/taskmanager/pkg/repository/document"

// TasksPageParams are the optional filters of the tasks page. String values may be
// written as /pattern/ to match by regular expression.
type TasksPageParams struct {
	AppID           *string
	RequesterID     *string
	TaskTypeID      *string
	GoalName        *string
	GoalDescription *string
	GoalKeywords    []string
	CreationFrom    *int64
	CreationTo      *int64
	UpdateFrom      *int64
	UpdateTo        *int64
	HasCloseTs      *bool
	CloseFrom       *int64
	CloseTo         *int64
}

// TransactionsPageParams filter flattened transactions. Task holds the filters on the
// owning task; its creation and update ranges apply to the task.
type TransactionsPageParams struct {
	Task         TasksPageParams
	TaskID       *string
	ID           *string
	Label        *string
	ActioneerID  *string
	CreationFrom *int64
	CreationTo   *int64
	UpdateFrom   *int64
	UpdateTo     *int64
}

// MessagesPageParams filter flattened messages. Transaction holds the filters on the
// owning task and transaction.
type MessagesPageParams struct {
	Transaction TransactionsPageParams
	ReceiverID  *string
	Label       *string
}

// TasksPageQuery builds the filter of the tasks page.
func TasksPageQuery(p TasksPageParams) (document.Filter, error) {
	b := document.NewQueryBuilder()
	withTask(b, p)
	b.WithRange("_creationTs", p.CreationFrom, p.CreationTo).
		WithRange("_lastUpdateTs", p.UpdateFrom, p.UpdateTo)
	return b.Build(), b.Err()
}

// TransactionsPageQuery builds the filter applied to every flattened transaction row.
func TransactionsPageQuery(p TransactionsPageParams) (document.Filter, error) {
	b := document.NewQueryBuilder()
	withTransaction(b, p)
	return b.Build(), b.Err()
}

// MessagesPageQuery builds the filter applied to every flattened message row.
func MessagesPageQuery(p MessagesPageParams) (document.Filter, error) {
	b := document.NewQueryBuilder()
	withTransaction(b, p.Transaction)
	b.WithEqOrRegex("transactions.messages.receiverId", p.ReceiverID).
		WithEqOrRegex("transactions.messages.label", p.Label)
	return b.Build(), b.Err()
}

func withTask(b *document.QueryBuilder, p TasksPageParams) {
	b.WithEqOrRegex("appId", p.AppID).
		WithEqOrRegex("requesterId", p.RequesterID).
		WithEqOrRegex("taskTypeId", p.TaskTypeID).
		WithEqOrRegex("goal.name", p.GoalName).
		WithEqOrRegex("goal.description", p.GoalDescription).
		WithEqOrRegexAll("goal.keywords", p.GoalKeywords).
		WithExist("closeTs", p.HasCloseTs).
		WithRange("closeTs", p.CloseFrom, p.CloseTo)
}

func withTransaction(b *document.QueryBuilder, p TransactionsPageParams) {
	withTask(b, p.Task)
	b.WithRange("_creationTs", p.Task.CreationFrom, p.Task.CreationTo).
		WithRange("_lastUpdateTs", p.Task.UpdateFrom, p.Task.UpdateTo).
		WithEqOrRegex("_id", p.TaskID).
		WithEqOrRegex("transactions.id", p.ID).
		WithEqOrRegex("transactions.label", p.Label).
		WithEqOrRegex("transactions.actioneerId", p.ActioneerID).
		WithRange("transactions._creationTs", p.CreationFrom, p.CreationTo).
		WithRange("transactions._lastUpdateTs", p.UpdateFrom, p.UpdateTo)
}
