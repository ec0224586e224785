package document_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/nimburion/taskmanager/pkg/repository/document"
	"github.com/nimburion/taskmanager/pkg/testutil/memstore"
	"go.mongodb.org/mongo-driver/bson"
)

func seedNumbers(exec *memstore.Executor, n int) {
	for i := 0; i < n; i++ {
		exec.Seed("numbers", bson.M{"_id": i, "v": int64(i), "parity": i % 2})
	}
}

func TestPager_Page(t *testing.T) {
	ctx := context.Background()
	exec := memstore.New()
	seedNumbers(exec, 7)
	pager := document.NewPager(exec)

	tests := []struct {
		name      string
		filter    document.Filter
		offset    int
		limit     int
		wantTotal int64
		wantItems int
		wantFirst int64
	}{
		{name: "first page", offset: 0, limit: 3, wantTotal: 7, wantItems: 3, wantFirst: 6},
		{name: "last partial page", offset: 6, limit: 3, wantTotal: 7, wantItems: 1, wantFirst: 0},
		{name: "offset past total", offset: 7, limit: 3, wantTotal: 7},
		{name: "huge offset", offset: math.MaxInt32, limit: 10, wantTotal: 7},
		{name: "zero limit", offset: 0, limit: 0, wantTotal: 7},
		{name: "filtered", filter: document.Filter{"parity": 1}, offset: 0, limit: 10, wantTotal: 3, wantItems: 3, wantFirst: 5},
		{name: "no match", filter: document.Filter{"parity": 3}, offset: 0, limit: 10, wantTotal: 0},
	}

	sort := document.SortSpec{{Field: "v", Order: document.SortDesc}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := pager.Page(ctx, "numbers", tt.filter, sort, tt.offset, tt.limit)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if page.Total != tt.wantTotal || page.Offset != tt.offset {
				t.Fatalf("unexpected page header %+v", page)
			}
			if len(page.Docs) != tt.wantItems {
				t.Fatalf("expected %d docs, got %d", tt.wantItems, len(page.Docs))
			}
			if tt.wantItems == 0 {
				if page.Docs != nil {
					t.Fatal("empty window must have nil docs")
				}
				return
			}
			if page.Docs[0]["v"] != tt.wantFirst {
				t.Fatalf("expected first v=%d, got %v", tt.wantFirst, page.Docs[0]["v"])
			}
		})
	}
}

func TestPager_PageSkipsFindWhenEmpty(t *testing.T) {
	exec := memstore.New()
	seedNumbers(exec, 2)
	pager := document.NewPager(exec)

	if _, err := pager.Page(context.Background(), "numbers", nil, nil, 5, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exec.Calls("Find") != 0 {
		t.Fatalf("expected no Find call, got %d", exec.Calls("Find"))
	}
}

func TestPager_PagePropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	exec := memstore.New()
	exec.FailOn("CountDocuments", boom)

	_, err := document.NewPager(exec).Page(context.Background(), "numbers", nil, nil, 0, 10)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func seedTasks(exec *memstore.Executor) {
	exec.Seed("tasks",
		bson.M{"_id": "t1", "_creationTs": int64(1), "transactions": bson.A{
			bson.M{"id": "0", "label": "a", "_creationTs": int64(5), "messages": bson.A{
				bson.M{"label": "m1"}, bson.M{"label": "m2"},
			}},
			bson.M{"id": "1", "label": "b", "_creationTs": int64(5)},
		}},
		bson.M{"_id": "t2", "_creationTs": int64(2), "transactions": bson.A{
			bson.M{"id": "0", "label": "a", "_creationTs": int64(3), "messages": bson.A{
				bson.M{"label": "m3"},
			}},
		}},
		bson.M{"_id": "t3", "_creationTs": int64(3)},
	)
}

func TestPager_FlattenedTransactions(t *testing.T) {
	exec := memstore.New()
	seedTasks(exec)
	pager := document.NewPager(exec)
	spec := document.FlattenSpec{{Path: "transactions", IndexField: "transactionsIndex"}}
	sort := document.SortSpec{
		{Field: "transactions._creationTs", Order: document.SortAsc},
		{Field: "_id", Order: document.SortAsc},
		{Field: "transactionsIndex", Order: document.SortAsc},
	}

	page, err := pager.Flattened(context.Background(), "tasks", spec, nil, sort, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 3 || len(page.Docs) != 3 {
		t.Fatalf("expected 3 flattened transactions, got total=%d docs=%d", page.Total, len(page.Docs))
	}
	order := []string{"t2", "t1", "t1"}
	for i, doc := range page.Docs {
		if doc["_id"] != order[i] {
			t.Fatalf("row %d: expected task %s, got %v", i, order[i], doc["_id"])
		}
	}
	if page.Docs[2]["transactionsIndex"] != int64(1) {
		t.Fatalf("expected index 1 on last row, got %v", page.Docs[2]["transactionsIndex"])
	}

	filtered, err := pager.Flattened(context.Background(), "tasks", spec, document.Filter{"transactions.label": "a"}, sort, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filtered.Total != 2 || len(filtered.Docs) != 1 || filtered.Docs[0]["_id"] != "t1" {
		t.Fatalf("unexpected filtered page %+v", filtered)
	}
}

func TestPager_FlattenedMessages(t *testing.T) {
	exec := memstore.New()
	seedTasks(exec)
	spec := document.FlattenSpec{
		{Path: "transactions", IndexField: "transactionsIndex"},
		{Path: "transactions.messages", IndexField: "messagesIndex"},
	}
	sort := document.SortSpec{
		{Field: "transactions._creationTs", Order: document.SortAsc},
		{Field: "_id", Order: document.SortAsc},
		{Field: "transactionsIndex", Order: document.SortAsc},
		{Field: "messagesIndex", Order: document.SortAsc},
	}

	page, err := document.NewPager(exec).Flattened(context.Background(), "tasks", spec, nil, sort, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("expected 3 messages, got %d", page.Total)
	}
	labels := []string{"m3", "m1", "m2"}
	for i, doc := range page.Docs {
		msg := doc["transactions"].(map[string]interface{})["messages"].(map[string]interface{})
		if msg["label"] != labels[i] {
			t.Fatalf("row %d: expected %s, got %v", i, labels[i], msg["label"])
		}
	}

	empty, err := document.NewPager(exec).Flattened(context.Background(), "tasks", spec, document.Filter{"transactions.messages.label": "none"}, sort, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if empty.Total != 0 || empty.Docs != nil {
		t.Fatalf("expected empty page, got %+v", empty)
	}
}

func TestProperty_PageItemCountMatchesWindow(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("len(items) == min(limit, max(0, total-offset))", prop.ForAll(
		func(n, offset, limit int) bool {
			exec := memstore.New()
			seedNumbers(exec, n)
			page, err := document.NewPager(exec).Page(context.Background(), "numbers", nil, nil, offset, limit)
			if err != nil {
				return false
			}
			want := min(limit, max(0, n-offset))
			if want == 0 {
				return page.Docs == nil && page.Total == int64(n)
			}
			return len(page.Docs) == want && page.Total == int64(n)
		},
		gen.IntRange(0, 30),
		gen.IntRange(0, 40),
		gen.IntRange(0, 15),
	))

	properties.TestingRun(t)
}
