package migrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimburion/taskmanager/pkg/middleware/testutil"
)

func testOptions() Options {
	return Options{ServiceName: "taskmanager", Target: "taskTypes", Logger: testutil.NewRecordingLogger()}
}

func testOperations() Operations {
	return Operations{
		Up:   func(context.Context) (int, error) { return 2, nil },
		Down: func(_ context.Context, steps int) (int, error) { return steps, nil },
		Status: func(context.Context) (*Status, error) {
			return &Status{
				AppliedVersions: []string{"0.5.0"},
				Pending:         []PendingMigration{{Version: "0.6.0", Name: "labelled transactions"}},
			}, nil
		},
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		args      []string
		wantCmd   string
		wantSteps int
		wantErr   bool
	}{
		{nil, CommandUp, 1, false},
		{[]string{"status"}, CommandStatus, 1, false},
		{[]string{"down", "3"}, CommandDown, 3, false},
		{[]string{"down", "three"}, "", 0, true},
	}
	for _, tt := range tests {
		cmd, steps, err := ParseArgs(tt.args)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseArgs(%v) err = %v", tt.args, err)
		}
		if tt.wantErr {
			if !errors.Is(err, ErrUsage) {
				t.Errorf("ParseArgs(%v) err = %v, want ErrUsage", tt.args, err)
			}
			continue
		}
		if cmd != tt.wantCmd || steps != tt.wantSteps {
			t.Errorf("ParseArgs(%v) = %q, %d", tt.args, cmd, steps)
		}
	}
}

func TestRunParsed_Commands(t *testing.T) {
	tests := []struct {
		command string
		steps   int
		wantLog string
		wantErr error
	}{
		{CommandUp, 1, "migrations applied", nil},
		{CommandDown, 2, "migrations reverted", nil},
		{CommandStatus, 1, "migration pending", nil},
		{CommandDown, 0, "", ErrUsage},
		{"sideways", 1, "", ErrUsage},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			opts := testOptions()
			log := opts.Logger.(*testutil.RecordingLogger)

			err := RunParsed(context.Background(), tt.command, tt.steps, opts, testOperations())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("RunParsed: %v", err)
			}
			if _, ok := log.Find(tt.wantLog); !ok {
				t.Errorf("missing %q log entry", tt.wantLog)
			}
		})
	}
}

func TestRunParsed_Validation(t *testing.T) {
	noLogger := testOptions()
	noLogger.Logger = nil
	noTarget := testOptions()
	noTarget.Target = ""
	partial := testOperations()
	partial.Status = nil

	tests := []struct {
		name string
		opts Options
		ops  Operations
	}{
		{"no logger", noLogger, testOperations()},
		{"no target", noTarget, testOperations()},
		{"incomplete operations", testOptions(), partial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := RunParsed(context.Background(), CommandUp, 1, tt.opts, tt.ops); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRunParsed_PropagatesErrors(t *testing.T) {
	ops := testOperations()
	boom := errors.New("boom")
	ops.Up = func(context.Context) (int, error) { return 0, boom }

	if err := Run(context.Background(), nil, testOptions(), ops); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}

func TestRunParsed_AppliesTimeout(t *testing.T) {
	opts := testOptions()
	opts.Timeout = 50 * time.Millisecond
	ops := testOperations()
	ops.Up = func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	if err := RunParsed(context.Background(), CommandUp, 1, opts, ops); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
