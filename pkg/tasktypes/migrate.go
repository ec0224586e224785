package tasktypes

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimburion/taskmanager/pkg/migrate"
	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/repository"
	"github.com/nimburion/taskmanager/pkg/repository/document"
	"github.com/nimburion/taskmanager/pkg/version"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	// SchemaVersionField tags every task type document with the schema it was written in.
	SchemaVersionField = "schema_version"
	// SchemaVersion is the schema written by this code. From it on transactions are a map keyed by label.
	SchemaVersion = "0.6.0"
	// SchemaVersionsCollection records the schema version reached by each collection.
	SchemaVersionsCollection = "schemaVersions"
)

var current = version.MustParse(SchemaVersion)

// pending selects every document not tagged with SchemaVersion, newer ones included;
// Up leaves those untouched.
var pending = document.Filter{SchemaVersionField: bson.M{"$ne": SchemaVersion}}

// Migrator rewrites task type documents written before SchemaVersion.
type Migrator struct {
	exec   document.Executor
	logger logger.Logger
}

// NewMigrator creates a Migrator over exec.
func NewMigrator(exec document.Executor, log logger.Logger) (*Migrator, error) {
	if exec == nil {
		return nil, fmt.Errorf("document executor is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Migrator{exec: exec, logger: log}, nil
}

// Up converts outstanding documents one at a time until none is left, then records
// SchemaVersion for the collection. It returns how many documents were rewritten.
// Running it again once everything is converted changes nothing.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	log := m.logger.WithContext(ctx)
	migrated := 0
	var skip int64
	for {
		docs, err := m.exec.Find(ctx, Collection, pending, document.FindOptions{
			Sort:  document.SortSpec{{Field: "_id", Order: document.SortAsc}},
			Skip:  skip,
			Limit: 1,
		})
		if err != nil {
			return migrated, err
		}
		if len(docs) == 0 {
			break
		}
		doc := docs[0]

		if tag, newer := isNewer(doc); newer {
			log.Warn("task type written by a newer schema left untouched", "task_type_id", doc["_id"], "schema_version", tag)
			skip++
			continue
		}

		transactions, err := convertTransactions(doc["transactions"], log)
		if err != nil {
			return migrated, repository.Serialization(err, "task type %v", doc["_id"])
		}
		res, err := m.exec.UpdateOne(ctx, Collection, document.Filter{"_id": doc["_id"]}, bson.M{
			"$set": bson.M{
				"transactions":     transactions,
				SchemaVersionField: SchemaVersion,
			},
		}, false)
		if err != nil {
			return migrated, err
		}
		if res.Matched > 0 {
			migrated++
			log.Debug("task type migrated", "task_type_id", doc["_id"])
		}
	}

	_, err := m.exec.UpdateOne(ctx, SchemaVersionsCollection, document.Filter{"_id": Collection}, bson.M{
		"$set": bson.M{"version": SchemaVersion},
	}, true)
	if err != nil {
		return migrated, err
	}
	log.Info("task types schema up to date", "schema_version", SchemaVersion, "migrated", migrated)
	return migrated, nil
}

// Status reports the recorded schema version and how many documents still need converting.
func (m *Migrator) Status(ctx context.Context) (*migrate.Status, error) {
	status := &migrate.Status{}
	doc, err := m.exec.FindOne(ctx, SchemaVersionsCollection, document.Filter{"_id": Collection}, nil)
	switch {
	case err == nil:
		if v, ok := doc["version"].(string); ok {
			status.AppliedVersions = append(status.AppliedVersions, v)
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	outstanding, err := m.exec.CountDocuments(ctx, Collection, pending)
	if err != nil {
		return nil, err
	}
	if outstanding > 0 {
		status.Pending = append(status.Pending, migrate.PendingMigration{
			Version: SchemaVersion,
			Name:    fmt.Sprintf("%d task types with transactions as a list", outstanding),
		})
	}
	return status, nil
}

// Operations exposes the Migrator to the migrate command. Going back to a list is not supported.
func (m *Migrator) Operations() migrate.Operations {
	return migrate.Operations{
		Up: m.Up,
		Down: func(context.Context, int) (int, error) {
			return 0, fmt.Errorf("task types can not be migrated below %s", SchemaVersion)
		},
		Status: m.Status,
	}
}

// isNewer reports whether doc carries a valid version tag at or above SchemaVersion.
func isNewer(doc bson.M) (string, bool) {
	tag, ok := doc[SchemaVersionField].(string)
	if !ok {
		return "", false
	}
	v, err := version.Parse(tag)
	if err != nil {
		return tag, false
	}
	return tag, v.Compare(current) >= 0
}

// convertTransactions turns [{label, description, attributes: [{name, ...}]}] into
// {label: {description, properties: {name: {...}}}}. A missing list becomes an empty map
// and a map is kept as it is.
func convertTransactions(raw interface{}, log logger.Logger) (bson.M, error) {
	if raw == nil {
		return bson.M{}, nil
	}
	if m, ok := document.AsM(raw); ok {
		return m, nil
	}
	items, ok := document.AsSlice(raw)
	if !ok {
		return nil, fmt.Errorf("transactions is a %T, neither a list nor a map", raw)
	}

	out := bson.M{}
	for i, item := range items {
		element, ok := document.AsM(item)
		if !ok {
			return nil, fmt.Errorf("transaction %d is a %T", i, item)
		}
		label, _ := element["label"].(string)
		if label == "" {
			log.Warn("transaction type without label dropped", "position", i)
			continue
		}

		converted := bson.M{}
		if description, ok := element["description"]; ok && description != nil {
			converted["description"] = description
		}
		if attributes, ok := document.AsSlice(element["attributes"]); ok {
			properties := bson.M{}
			for _, attribute := range attributes {
				fields, ok := document.AsM(attribute)
				if !ok {
					continue
				}
				name, _ := fields["name"].(string)
				if name == "" {
					continue
				}
				property := bson.M{}
				for key, value := range fields {
					if key != "name" {
						property[key] = value
					}
				}
				properties[name] = property
			}
			converted["properties"] = properties
		}
		out[label] = converted
	}
	return out, nil
}
