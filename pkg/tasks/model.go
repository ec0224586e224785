// Package tasks stores tasks together with their nested transactions and messages.
package tasks

// Collection holds one document per task.
const Collection = "tasks"

// Goal describes what the requester wants to achieve.
type Goal struct {
	Name        string   `json:"name,omitempty" bson:"name,omitempty"`
	Description string   `json:"description,omitempty" bson:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty" bson:"keywords,omitempty"`
}

// Task is a unit of work requested by a user inside an application.
type Task struct {
	ID           string                 `json:"id,omitempty" bson:"_id,omitempty"`
	TaskTypeID   string                 `json:"taskTypeId,omitempty" bson:"taskTypeId,omitempty"`
	RequesterID  string                 `json:"requesterId,omitempty" bson:"requesterId,omitempty"`
	AppID        string                 `json:"appId,omitempty" bson:"appId,omitempty"`
	CommunityID  string                 `json:"communityId,omitempty" bson:"communityId,omitempty"`
	Goal         *Goal                  `json:"goal,omitempty" bson:"goal,omitempty"`
	Attributes   map[string]interface{} `json:"attributes,omitempty" bson:"attributes,omitempty"`
	CloseTs      *int64                 `json:"closeTs,omitempty" bson:"closeTs,omitempty"`
	Transactions []TaskTransaction      `json:"transactions,omitempty" bson:"transactions,omitempty"`
	CreationTs   int64                  `json:"_creationTs" bson:"_creationTs"`
	LastUpdateTs int64                  `json:"_lastUpdateTs" bson:"_lastUpdateTs"`
}

// optionalFields are the top level fields an update removes when the new version omits them.
var optionalFields = []string{
	"taskTypeId", "requesterId", "appId", "communityId", "goal", "attributes", "closeTs",
}

// TaskTransaction is an action performed over a task. Its ID is the decimal position
// it was appended at and never changes afterwards.
type TaskTransaction struct {
	ID           string                 `json:"id,omitempty" bson:"id,omitempty"`
	TaskID       string                 `json:"taskId,omitempty" bson:"-"`
	Label        string                 `json:"label,omitempty" bson:"label,omitempty"`
	ActioneerID  string                 `json:"actioneerId,omitempty" bson:"actioneerId,omitempty"`
	Attributes   map[string]interface{} `json:"attributes,omitempty" bson:"attributes,omitempty"`
	Messages     []Message              `json:"messages,omitempty" bson:"messages,omitempty"`
	CreationTs   int64                  `json:"_creationTs" bson:"_creationTs"`
	LastUpdateTs int64                  `json:"_lastUpdateTs" bson:"_lastUpdateTs"`
}

// Message is a notification sent to a user as a consequence of a transaction.
type Message struct {
	AppID      string                 `json:"appId,omitempty" bson:"appId,omitempty"`
	ReceiverID string                 `json:"receiverId,omitempty" bson:"receiverId,omitempty"`
	Label      string                 `json:"label,omitempty" bson:"label,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty" bson:"attributes,omitempty"`
}

// TasksPage is one window of tasks.
type TasksPage struct {
	Offset int    `json:"offset"`
	Total  int64  `json:"total"`
	Tasks  []Task `json:"tasks"`
}

// TaskTransactionsPage is one window of transactions flattened across tasks.
type TaskTransactionsPage struct {
	Offset       int               `json:"offset"`
	Total        int64             `json:"total"`
	Transactions []TaskTransaction `json:"transactions"`
}

// MessagesPage is one window of messages flattened across tasks and transactions.
type MessagesPage struct {
	Offset   int       `json:"offset"`
	Total    int64     `json:"total"`
	Messages []Message `json:"messages"`
}
