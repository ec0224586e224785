package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"go.mongodb.org/mongo-driver/bson"
)

func closedAdapter() *Adapter {
	a := &Adapter{logger: logger.NewNop()}
	a.closed.Store(true)
	return a
}

func TestNewAdapter_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty", Config{}},
		{"no database", Config{URL: "mongodb://localhost:27017"}},
		{"no url", Config{Database: "tasks"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAdapter(tt.cfg, logger.NewNop()); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestAdapter_ClosedRefusesCalls(t *testing.T) {
	a := closedAdapter()
	ctx := context.Background()

	calls := map[string]func() error{
		"Ping": func() error { return a.Ping(ctx) },
		"InsertOne": func() error {
			_, err := a.InsertOne(ctx, "tasks", bson.M{})
			return err
		},
		"FindOne": func() error { return a.FindOne(ctx, "tasks", bson.M{}, nil, &bson.M{}) },
		"Find": func() error {
			_, err := a.Find(ctx, "tasks", bson.M{}, FindOptions{})
			return err
		},
		"CountDocuments": func() error {
			_, err := a.CountDocuments(ctx, "tasks", bson.M{})
			return err
		},
		"UpdateOne": func() error {
			_, err := a.UpdateOne(ctx, "tasks", bson.M{}, bson.M{}, false)
			return err
		},
		"DeleteOne": func() error {
			_, err := a.DeleteOne(ctx, "tasks", bson.M{})
			return err
		},
		"Aggregate": func() error {
			_, err := a.Aggregate(ctx, "tasks", bson.A{})
			return err
		},
		"WithTransaction": func() error {
			return a.WithTransaction(ctx, func(context.Context) error { return nil })
		},
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrClosed) {
			t.Errorf("%s after Close: %v", name, err)
		}
	}
	if err := a.HealthCheck(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("HealthCheck after Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestAdapter_OpContext(t *testing.T) {
	short, cancelShort := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancelShort()
	callerDeadline, _ := short.Deadline()

	tests := []struct {
		name         string
		timeout      time.Duration
		ctx          context.Context
		wantDeadline bool
		check        func(t *testing.T, deadline time.Time)
	}{
		{"applies adapter timeout", 2 * time.Second, context.Background(), true, func(t *testing.T, d time.Time) {
			if left := time.Until(d); left <= 0 || left > 2*time.Second {
				t.Errorf("remaining = %v", left)
			}
		}},
		{"keeps caller deadline", 2 * time.Second, short, true, func(t *testing.T, d time.Time) {
			if !d.Equal(callerDeadline) {
				t.Errorf("deadline = %v, want %v", d, callerDeadline)
			}
		}},
		{"disabled", 0, context.Background(), false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Adapter{timeout: tt.timeout}
			ctx, cancel := a.opContext(tt.ctx)
			defer cancel()
			deadline, ok := ctx.Deadline()
			if ok != tt.wantDeadline {
				t.Fatalf("has deadline = %v", ok)
			}
			if tt.check != nil {
				tt.check(t, deadline)
			}
		})
	}
}

func TestFindOptions_Driver(t *testing.T) {
	opts := FindOptions{Sort: bson.D{{Key: "name", Value: 1}}, Skip: 20, Limit: 10, Projection: bson.M{"_id": 0}}.driver()
	if opts.Skip == nil || *opts.Skip != 20 || opts.Limit == nil || *opts.Limit != 10 {
		t.Errorf("skip/limit not applied: %+v", opts)
	}
	if opts.Sort == nil || opts.Projection == nil {
		t.Error("sort/projection not applied")
	}

	empty := FindOptions{}.driver()
	if empty.Skip != nil || empty.Limit != nil || empty.Sort != nil || empty.Projection != nil {
		t.Errorf("zero FindOptions must not set driver options: %+v", empty)
	}
}
