package logger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type countingLogger struct {
	mu   sync.Mutex
	logs []string
}

func (l *countingLogger) Debug(msg string, args ...any)          { l.append(msg) }
func (l *countingLogger) Info(msg string, args ...any)           { l.append(msg) }
func (l *countingLogger) Warn(msg string, args ...any)           { l.append(msg) }
func (l *countingLogger) Error(msg string, args ...any)          { l.append(msg) }
func (l *countingLogger) With(args ...any) Logger                { return l }
func (l *countingLogger) WithContext(ctx context.Context) Logger { return l }

func (l *countingLogger) append(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, msg)
}

func (l *countingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.logs)
}

func TestWrapAsync_DisabledReturnsBase(t *testing.T) {
	base := &countingLogger{}
	if wrapped := WrapAsync(base, AsyncConfig{}); wrapped != base {
		t.Fatal("expected the base logger when disabled")
	}
}

func TestWrapAsync_EmitsLogs(t *testing.T) {
	base := &countingLogger{}
	wrapped := WrapAsync(base, AsyncConfig{Enabled: true, QueueSize: 16, WorkerCount: 2})
	async := wrapped.(*AsyncLogger)

	wrapped.Info("first")
	wrapped.With("k", "v").Warn("second")
	wrapped.WithContext(context.Background()).Error("third")
	async.Close()

	if n := base.count(); n != 3 {
		t.Fatalf("expected 3 logs, got %d", n)
	}
}

func TestWrapAsync_DropWhenFull(t *testing.T) {
	base := &countingLogger{}
	wrapped := WrapAsync(base, AsyncConfig{Enabled: true, QueueSize: 1, WorkerCount: 1, DropWhenFull: true})
	async := wrapped.(*AsyncLogger)

	for i := 0; i < 200; i++ {
		wrapped.Info("line")
	}
	time.Sleep(20 * time.Millisecond)
	async.Close()

	written := base.count()
	if written == 0 {
		t.Fatal("expected at least one log to be processed")
	}
	if int64(written)+async.Dropped() != 200 {
		t.Fatalf("written %d plus dropped %d must account for every entry", written, async.Dropped())
	}
}

func TestAsyncLogger_LogsAfterCloseAreSynchronous(t *testing.T) {
	base := &countingLogger{}
	async := WrapAsync(base, AsyncConfig{Enabled: true}).(*AsyncLogger)
	async.Close()
	async.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			async.Debug("late")
		}()
	}
	wg.Wait()
	if n := base.count(); n != 10 {
		t.Fatalf("expected 10 synchronous logs, got %d", n)
	}
}
