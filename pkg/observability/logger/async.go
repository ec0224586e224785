package logger

import (
	"context"
	"sync"
	"sync/atomic"
)

const (
	defaultAsyncQueueSize   = 1024
	defaultAsyncWorkerCount = 1
)

// AsyncConfig moves log writes off the request path onto worker goroutines.
type AsyncConfig struct {
	Enabled      bool
	QueueSize    int
	WorkerCount  int
	DropWhenFull bool
}

type record struct {
	target Logger
	level  LogLevel
	msg    string
	args   []any
}

func (r record) write() {
	switch r.level {
	case DebugLevel:
		r.target.Debug(r.msg, r.args...)
	case WarnLevel:
		r.target.Warn(r.msg, r.args...)
	case ErrorLevel:
		r.target.Error(r.msg, r.args...)
	default:
		r.target.Info(r.msg, r.args...)
	}
}

// queue is shared by an AsyncLogger and every child derived from it.
type queue struct {
	records chan record
	lossy   bool
	workers sync.WaitGroup
	dropped atomic.Int64

	// closing is held for writing only while the channel is closed, so
	// producers never send on a closed channel.
	closing sync.RWMutex
	closed  bool
}

func (q *queue) run() {
	defer q.workers.Done()
	for r := range q.records {
		r.write()
	}
}

func (q *queue) push(r record) {
	q.closing.RLock()
	defer q.closing.RUnlock()
	if q.closed {
		r.write()
		return
	}
	if !q.lossy {
		q.records <- r
		return
	}
	select {
	case q.records <- r:
	default:
		q.dropped.Add(1)
	}
}

func (q *queue) shutdown() {
	q.closing.Lock()
	if !q.closed {
		q.closed = true
		close(q.records)
	}
	q.closing.Unlock()
	q.workers.Wait()
}

// AsyncLogger writes entries through a bounded queue. With DropWhenFull set a
// full queue discards entries instead of blocking the caller.
type AsyncLogger struct {
	base Logger
	q    *queue
}

// WrapAsync returns base unchanged when cfg is disabled.
func WrapAsync(base Logger, cfg AsyncConfig) Logger {
	if !cfg.Enabled {
		return base
	}
	size, workers := cfg.QueueSize, cfg.WorkerCount
	if size <= 0 {
		size = defaultAsyncQueueSize
	}
	if workers <= 0 {
		workers = defaultAsyncWorkerCount
	}

	q := &queue{records: make(chan record, size), lossy: cfg.DropWhenFull}
	q.workers.Add(workers)
	for range workers {
		go q.run()
	}
	return &AsyncLogger{base: base, q: q}
}

func (l *AsyncLogger) Debug(msg string, args ...any) { l.log(DebugLevel, msg, args) }
func (l *AsyncLogger) Info(msg string, args ...any)  { l.log(InfoLevel, msg, args) }
func (l *AsyncLogger) Warn(msg string, args ...any)  { l.log(WarnLevel, msg, args) }
func (l *AsyncLogger) Error(msg string, args ...any) { l.log(ErrorLevel, msg, args) }

func (l *AsyncLogger) With(args ...any) Logger {
	return &AsyncLogger{base: l.base.With(args...), q: l.q}
}

func (l *AsyncLogger) WithContext(ctx context.Context) Logger {
	return &AsyncLogger{base: l.base.WithContext(ctx), q: l.q}
}

// Dropped counts entries discarded on a full queue.
func (l *AsyncLogger) Dropped() int64 { return l.q.dropped.Load() }

// Close drains the queue and stops the workers. Later entries are written
// synchronously. Close is idempotent.
func (l *AsyncLogger) Close() { l.q.shutdown() }

func (l *AsyncLogger) log(level LogLevel, msg string, args []any) {
	l.q.push(record{target: l.base, level: level, msg: msg, args: args})
}
