package gin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	ginpkg "github.com/gin-gonic/gin"
	"github.com/nimburion/taskmanager/pkg/server/router"
)

var errEmptyBody = errors.New("request body is empty")

// ginContext adapts *gin.Context to router.Context.
type ginContext struct {
	gc *ginpkg.Context
	rw router.ResponseWriter
}

func newContext(gc *ginpkg.Context) *ginContext {
	return &ginContext{gc: gc, rw: &responseWriter{ResponseWriter: gc.Writer}}
}

func (c *ginContext) Request() *http.Request { return c.gc.Request }

func (c *ginContext) SetRequest(r *http.Request) { c.gc.Request = r }

func (c *ginContext) Response() router.ResponseWriter { return c.rw }

func (c *ginContext) SetResponse(w router.ResponseWriter) { c.rw = w }

func (c *ginContext) Param(name string) string { return c.gc.Param(name) }

func (c *ginContext) Query(name string) string { return c.gc.Query(name) }

// Bind decodes a JSON body into v through gin's JSON binding.
func (c *ginContext) Bind(v interface{}) error {
	req := c.gc.Request
	if req.Body == nil || req.Body == http.NoBody {
		return errEmptyBody
	}
	if ct := c.gc.ContentType(); !strings.EqualFold(ct, "application/json") {
		return fmt.Errorf("unsupported content type %q", ct)
	}
	return c.gc.ShouldBindJSON(v)
}

func (c *ginContext) JSON(code int, v interface{}) error {
	c.rw.Header().Set("Content-Type", "application/json")
	c.rw.WriteHeader(code)
	return json.NewEncoder(c.rw).Encode(v)
}

func (c *ginContext) String(code int, s string) error {
	c.rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.rw.WriteHeader(code)
	_, err := c.rw.Write([]byte(s))
	return err
}

// Get returns nil for unknown keys.
func (c *ginContext) Get(key string) interface{} {
	v, _ := c.gc.Get(key)
	return v
}

func (c *ginContext) Set(key string, value interface{}) { c.gc.Set(key, value) }

// responseWriter records the first status written; later WriteHeader calls
// are dropped.
type responseWriter struct {
	ginpkg.ResponseWriter
	mu     sync.RWMutex
	status int
}

func (w *responseWriter) Status() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *responseWriter) Written() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status != 0
}

func (w *responseWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.status != 0 {
		return
	}
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.WriteHeader(http.StatusOK)
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
