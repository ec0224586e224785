// Package testutil holds helpers shared by the middleware tests.
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/nimburion/taskmanager/pkg/observability/logger"
	"github.com/nimburion/taskmanager/pkg/server/router"
	ginrouter "github.com/nimburion/taskmanager/pkg/server/router/gin"
)

// Entry is one captured log call.
type Entry struct {
	Level  string
	Msg    string
	Fields map[string]interface{}
}

// RecordingLogger captures entries. Children created by With and WithContext
// write to the same sink and keep their bound fields.
type RecordingLogger struct {
	sink   *sink
	fields []any
}

type sink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecordingLogger creates an empty RecordingLogger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{sink: &sink{}}
}

func (l *RecordingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *RecordingLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *RecordingLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

// With returns a child that adds args to every entry.
func (l *RecordingLogger) With(args ...any) logger.Logger {
	return &RecordingLogger{sink: l.sink, fields: append(append([]any{}, l.fields...), args...)}
}

// WithContext binds the request ID found in ctx.
func (l *RecordingLogger) WithContext(ctx context.Context) logger.Logger {
	if requestID := logger.RequestIDFromContext(ctx); requestID != "" {
		return l.With("request_id", requestID)
	}
	return l
}

// Entries returns a copy of everything recorded so far.
func (l *RecordingLogger) Entries() []Entry {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return append([]Entry(nil), l.sink.entries...)
}

// Find returns the first entry with msg.
func (l *RecordingLogger) Find(msg string) (Entry, bool) {
	for _, entry := range l.Entries() {
		if entry.Msg == msg {
			return entry, true
		}
	}
	return Entry{}, false
}

func (l *RecordingLogger) record(level, msg string, args []any) {
	fields := make(map[string]interface{})
	all := append(append([]any{}, l.fields...), args...)
	for i := 0; i < len(all)-1; i += 2 {
		if key, ok := all[i].(string); ok {
			fields[key] = all[i+1]
		}
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.entries = append(l.sink.entries, Entry{Level: level, Msg: msg, Fields: fields})
}

// Serve mounts handler on GET /test behind middleware and runs req through it.
func Serve(req *http.Request, handler router.HandlerFunc, middleware ...router.MiddlewareFunc) *httptest.ResponseRecorder {
	r := ginrouter.NewRouter()
	r.Use(middleware...)
	r.GET("/test", handler)
	r.POST("/test", handler)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}
