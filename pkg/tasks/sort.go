package tasks

import "github.com/nimburion/taskmanager/pkg/repository/document"

// Index fields added to flattened rows.
const (
	TransactionsIndex = "transactionsIndex"
	MessagesIndex     = "messagesIndex"
)

// TaskSortPaths maps the sort keys accepted on the tasks page to document paths.
var TaskSortPaths = map[string]string{
	"id":               "_id",
	"_id":              "_id",
	"appId":            "appId",
	"requesterId":      "requesterId",
	"communityId":      "communityId",
	"taskTypeId":       "taskTypeId",
	"goalName":         "goal.name",
	"goal.name":        "goal.name",
	"goalDescription":  "goal.description",
	"goal.description": "goal.description",
	"goalKeywords":     "goal.keywords",
	"goal.keywords":    "goal.keywords",
	"creationTs":       "_creationTs",
	"creation":         "_creationTs",
	"_creationTs":      "_creationTs",
	"updateTs":         "_lastUpdateTs",
	"update":           "_lastUpdateTs",
	"_lastUpdateTs":    "_lastUpdateTs",
	"closeTs":          "closeTs",
	"close":            "closeTs",
}

// parentTaskSortPaths are the task keys usable on the flattened pages, where bare
// id and timestamp names refer to the nested element instead.
var parentTaskSortPaths = map[string]string{
	"taskId":           "_id",
	"_id":              "_id",
	"appId":            "appId",
	"requesterId":      "requesterId",
	"communityId":      "communityId",
	"taskTypeId":       "taskTypeId",
	"goalName":         "goal.name",
	"goal.name":        "goal.name",
	"goalDescription":  "goal.description",
	"goal.description": "goal.description",
	"goalKeywords":     "goal.keywords",
	"goal.keywords":    "goal.keywords",
	"taskCreationTs":   "_creationTs",
	"taskUpdateTs":     "_lastUpdateTs",
	"taskCloseTs":      "closeTs",
	"closeTs":          "closeTs",
}

// TransactionSortPaths maps the sort keys accepted on the transactions page to document paths.
var TransactionSortPaths = merge(parentTaskSortPaths, map[string]string{
	"id":                         "transactions.id",
	"transactionId":              "transactions.id",
	"transactions.id":            "transactions.id",
	"label":                      "transactions.label",
	"transactions.label":         "transactions.label",
	"actioneerId":                "transactions.actioneerId",
	"transactions.actioneerId":   "transactions.actioneerId",
	"creationTs":                 "transactions._creationTs",
	"_creationTs":                "transactions._creationTs",
	"transactions._creationTs":   "transactions._creationTs",
	"updateTs":                   "transactions._lastUpdateTs",
	"_lastUpdateTs":              "transactions._lastUpdateTs",
	"transactions._lastUpdateTs": "transactions._lastUpdateTs",
	TransactionsIndex:            TransactionsIndex,
	"index":                      TransactionsIndex,
})

// MessageSortPaths maps the sort keys accepted on the messages page to document paths.
var MessageSortPaths = merge(parentTaskSortPaths, map[string]string{
	"transactionId":                    "transactions.id",
	"transactions.id":                  "transactions.id",
	"transactionLabel":                 "transactions.label",
	"transactions.label":               "transactions.label",
	"transactionActioneerId":           "transactions.actioneerId",
	"transactions.actioneerId":         "transactions.actioneerId",
	"transactionCreationTs":            "transactions._creationTs",
	"transactions._creationTs":         "transactions._creationTs",
	"transactionUpdateTs":              "transactions._lastUpdateTs",
	"transactions._lastUpdateTs":       "transactions._lastUpdateTs",
	TransactionsIndex:                  TransactionsIndex,
	"receiverId":                       "transactions.messages.receiverId",
	"transactions.messages.receiverId": "transactions.messages.receiverId",
	"label":                            "transactions.messages.label",
	"transactions.messages.label":      "transactions.messages.label",
	"messageAppId":                     "transactions.messages.appId",
	"transactions.messages.appId":      "transactions.messages.appId",
	MessagesIndex:                      MessagesIndex,
	"index":                            MessagesIndex,
})

var (
	taskSorter        = document.NewSortSpecBuilder(TaskSortPaths)
	transactionSorter = document.NewSortSpecBuilder(TransactionSortPaths)
	messageSorter     = document.NewSortSpecBuilder(MessageSortPaths)
)

// DefaultTransactionSort orders flattened transactions by creation, then task, then position.
var DefaultTransactionSort = document.SortSpec{
	{Field: "transactions._creationTs", Order: document.SortAsc},
	{Field: "_id", Order: document.SortAsc},
	{Field: TransactionsIndex, Order: document.SortAsc},
}

// DefaultMessageSort extends DefaultTransactionSort with the message position.
var DefaultMessageSort = document.SortSpec{
	{Field: "transactions._creationTs", Order: document.SortAsc},
	{Field: "_id", Order: document.SortAsc},
	{Field: TransactionsIndex, Order: document.SortAsc},
	{Field: MessagesIndex, Order: document.SortAsc},
}

// TasksSort resolves the order tokens of the tasks page. No tokens means natural order.
func TasksSort(tokens []string) (document.SortSpec, error) {
	return taskSorter.Build(tokens)
}

// TransactionsSort resolves the order tokens of the transactions page, falling back to
// DefaultTransactionSort and always ending with the task id and position tiebreakers.
func TransactionsSort(tokens []string) (document.SortSpec, error) {
	return transactionSorter.BuildWithDefault(tokens, DefaultTransactionSort, "_id", TransactionsIndex)
}

// MessagesSort resolves the order tokens of the messages page.
func MessagesSort(tokens []string) (document.SortSpec, error) {
	return messageSorter.BuildWithDefault(tokens, DefaultMessageSort, "_id", TransactionsIndex, MessagesIndex)
}

func merge(maps ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
