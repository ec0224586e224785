// Package tasktypes stores the task type catalogue and migrates its documents between schema versions.
package tasktypes

// Collection holds one document per task type.
const Collection = "taskTypes"

// TransactionType describes one transaction label a task of this type accepts.
type TransactionType struct {
	Description string                 `json:"description,omitempty" bson:"description,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty" bson:"properties,omitempty"`
}

// TaskType is the template tasks are created from.
type TaskType struct {
	ID           string                     `json:"id,omitempty" bson:"_id,omitempty"`
	Name         string                     `json:"name,omitempty" bson:"name,omitempty"`
	Description  string                     `json:"description,omitempty" bson:"description,omitempty"`
	Keywords     []string                   `json:"keywords,omitempty" bson:"keywords,omitempty"`
	Norms        []interface{}              `json:"norms,omitempty" bson:"norms,omitempty"`
	Attributes   map[string]interface{}     `json:"attributes,omitempty" bson:"attributes,omitempty"`
	Transactions map[string]TransactionType `json:"transactions,omitempty" bson:"transactions,omitempty"`
	Callbacks    map[string]interface{}     `json:"callbacks,omitempty" bson:"callbacks,omitempty"`
	CreationTs   int64                      `json:"_creationTs" bson:"_creationTs"`
	LastUpdateTs int64                      `json:"_lastUpdateTs" bson:"_lastUpdateTs"`
}

var optionalFields = []string{
	"name", "description", "keywords", "norms", "attributes", "transactions", "callbacks",
}

// TaskTypesPage is one window of task types.
type TaskTypesPage struct {
	Offset    int        `json:"offset"`
	Total     int64      `json:"total"`
	TaskTypes []TaskType `json:"taskTypes"`
}
