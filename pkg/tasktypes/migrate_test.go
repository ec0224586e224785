package tasktypes

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/nimburion/taskmanager/pkg/migrate"
	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/testutil/memstore"
	"go.mongodb.org/mongo-driver/bson"
)

func newMigrator(t *testing.T, exec *memstore.Executor) *Migrator {
	t.Helper()
	m, err := NewMigrator(exec, logger.NewNop())
	if err != nil {
		t.Fatalf("NewMigrator failed: %v", err)
	}
	return m
}

func documentsByID(exec *memstore.Executor, collection string) map[string]bson.M {
	out := map[string]bson.M{}
	for _, doc := range exec.Documents(collection) {
		out[fmt.Sprint(doc["_id"])] = doc
	}
	return out
}

func TestMigrator_ConvertsTransactionList(t *testing.T) {
	exec := memstore.New()
	exec.Seed(Collection,
		bson.M{"_id": "fixture", "name": "cancelable", "transactions": bson.A{bson.M{"label": "cancel"}}},
		bson.M{"_id": "full", "schema_version": "0.5.0", "transactions": bson.A{
			bson.M{"label": "accept", "description": "Accept", "attributes": bson.A{
				bson.M{"name": "volunteerId", "description": "Who", "type": "string"},
			}},
			bson.M{"label": "refuse"},
		}},
		bson.M{"_id": "none"},
		bson.M{"_id": "garbage", "schema_version": "not-a-version", "transactions": bson.A{}},
	)

	migrated, err := newMigrator(t, exec).Up(context.Background())
	if err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	if migrated != 4 {
		t.Fatalf("expected 4 migrated documents, got %d", migrated)
	}

	docs := documentsByID(exec, Collection)
	tests := []struct {
		id   string
		want string
	}{
		{id: "fixture", want: "map[cancel:map[]]"},
		{id: "full", want: "map[accept:map[description:Accept properties:map[volunteerId:map[description:Who type:string]]] refuse:map[]]"},
		{id: "none", want: "map[]"},
		{id: "garbage", want: "map[]"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			doc := docs[tt.id]
			if got := fmt.Sprint(doc["transactions"]); got != tt.want {
				t.Fatalf("transactions = %s, want %s", got, tt.want)
			}
			if doc[SchemaVersionField] != SchemaVersion {
				t.Fatalf("schema version = %v", doc[SchemaVersionField])
			}
		})
	}
	if docs["fixture"]["name"] != "cancelable" {
		t.Fatal("other fields must be kept")
	}

	versions := exec.Documents(SchemaVersionsCollection)
	if len(versions) != 1 || versions[0]["_id"] != Collection || versions[0]["version"] != SchemaVersion {
		t.Fatalf("unexpected schema versions %v", versions)
	}
}

func TestMigrator_LeavesNewerDocumentsAlone(t *testing.T) {
	exec := memstore.New()
	exec.Seed(Collection,
		bson.M{"_id": "a", "schema_version": "1.0.0", "transactions": bson.A{bson.M{"label": "x"}}},
		bson.M{"_id": "b", "schema_version": "0.6.1", "transactions": bson.M{"y": bson.M{}}},
		bson.M{"_id": "c", "transactions": bson.A{bson.M{"label": "z"}}},
	)

	migrated, err := newMigrator(t, exec).Up(context.Background())
	if err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	if migrated != 1 {
		t.Fatalf("expected 1 migrated document, got %d", migrated)
	}
	docs := documentsByID(exec, Collection)
	if docs["a"]["schema_version"] != "1.0.0" || fmt.Sprint(docs["a"]["transactions"]) != "[map[label:x]]" {
		t.Fatalf("newer document changed: %v", docs["a"])
	}
	if fmt.Sprint(docs["c"]["transactions"]) != "map[z:map[]]" {
		t.Fatalf("older document not converted: %v", docs["c"])
	}
}

func TestMigrator_Status(t *testing.T) {
	exec := memstore.New()
	exec.Seed(Collection, bson.M{"_id": "a", "transactions": bson.A{}})
	m := newMigrator(t, exec)
	ctx := context.Background()

	status, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(status.AppliedVersions) != 0 || len(status.Pending) != 1 {
		t.Fatalf("unexpected status before migrating %+v", status)
	}

	if _, err := m.Up(ctx); err != nil {
		t.Fatalf("Up failed: %v", err)
	}
	status, err = m.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if fmt.Sprint(status.AppliedVersions) != "[0.6.0]" || len(status.Pending) != 0 {
		t.Fatalf("unexpected status after migrating %+v", status)
	}
}

func TestMigrator_Operations(t *testing.T) {
	exec := memstore.New()
	exec.Seed(Collection, bson.M{"_id": "a", "transactions": bson.A{bson.M{"label": "cancel"}}})
	ops := newMigrator(t, exec).Operations()
	opts := migrate.Options{ServiceName: "taskmanager", Target: Collection, Logger: logger.NewNop()}

	if err := migrate.RunParsed(context.Background(), "up", 1, opts, ops); err != nil {
		t.Fatalf("up failed: %v", err)
	}
	if err := migrate.RunParsed(context.Background(), "status", 1, opts, ops); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if err := migrate.RunParsed(context.Background(), "down", 1, opts, ops); err == nil {
		t.Fatal("expected down to be refused")
	}
}

func TestMigrator_FindFailure(t *testing.T) {
	exec := memstore.New()
	exec.FailOn("Find", fmt.Errorf("connection reset"))
	if _, err := newMigrator(t, exec).Up(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestProperty_MigrationIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("running Up twice equals running it once", prop.ForAll(
		func(labels [][]string) bool {
			exec := memstore.New()
			for i, list := range labels {
				transactions := bson.A{}
				for _, label := range list {
					transactions = append(transactions, bson.M{"label": label, "description": "d " + label})
				}
				exec.Seed(Collection, bson.M{"_id": fmt.Sprintf("%03d", i), "transactions": transactions})
			}
			m, err := NewMigrator(exec, nil)
			if err != nil {
				return false
			}
			if _, err := m.Up(context.Background()); err != nil {
				return false
			}
			once := fmt.Sprint(exec.Documents(Collection))
			again, err := m.Up(context.Background())
			if err != nil || again != 0 {
				return false
			}
			return fmt.Sprint(exec.Documents(Collection)) == once
		},
		gen.SliceOfN(5, gen.SliceOf(gen.Identifier())),
	))

	properties.TestingRun(t)
}
