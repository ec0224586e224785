// Package gin implements router.Router on top of gin-gonic/gin.
package gin

import (
	"net/http"
	"sync"

	ginpkg "github.com/gin-gonic/gin"
	"github.com/nimburion/taskmanager/pkg/server/router"
)

// GinRouter is a router.Router backed by a gin engine. Groups share the
// engine and the OPTIONS registry of their parent.
type GinRouter struct {
	engine     *ginpkg.Engine
	group      *ginpkg.RouterGroup
	shared     *routerState
	middleware []router.MiddlewareFunc
}

type routerState struct {
	mu      sync.RWMutex
	options map[string]struct{}
}

// NewRouter returns a router whose 404 and 405 answers carry the same
// {code, message} body as the task handlers.
func NewRouter() *GinRouter {
	ginpkg.SetMode(ginpkg.ReleaseMode)
	engine := ginpkg.New()
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(func(gc *ginpkg.Context) {
		abortJSON(gc, http.StatusNotFound, "route_not_found", "no route for "+gc.Request.URL.Path)
	})
	engine.NoMethod(func(gc *ginpkg.Context) {
		abortJSON(gc, http.StatusMethodNotAllowed, "method_not_allowed",
			gc.Request.Method+" is not allowed on "+gc.Request.URL.Path)
	})
	return &GinRouter{
		engine: engine,
		shared: &routerState{options: make(map[string]struct{})},
	}
}

func (r *GinRouter) GET(path string, h router.HandlerFunc, mw ...router.MiddlewareFunc) {
	r.handle(http.MethodGet, path, h, mw)
}

func (r *GinRouter) POST(path string, h router.HandlerFunc, mw ...router.MiddlewareFunc) {
	r.handle(http.MethodPost, path, h, mw)
}

func (r *GinRouter) PUT(path string, h router.HandlerFunc, mw ...router.MiddlewareFunc) {
	r.handle(http.MethodPut, path, h, mw)
}

func (r *GinRouter) DELETE(path string, h router.HandlerFunc, mw ...router.MiddlewareFunc) {
	r.handle(http.MethodDelete, path, h, mw)
}

func (r *GinRouter) PATCH(path string, h router.HandlerFunc, mw ...router.MiddlewareFunc) {
	r.handle(http.MethodPatch, path, h, mw)
}

// Group returns a sub-router under prefix. It inherits the middleware
// registered on r so far, followed by mw.
func (r *GinRouter) Group(prefix string, mw ...router.MiddlewareFunc) router.Router {
	parent := &r.engine.RouterGroup
	if r.group != nil {
		parent = r.group
	}
	return &GinRouter{
		engine:     r.engine,
		group:      parent.Group(prefix),
		shared:     r.shared,
		middleware: append(r.globalMiddleware(), mw...),
	}
}

// Use appends middleware for routes registered afterwards.
func (r *GinRouter) Use(mw ...router.MiddlewareFunc) {
	r.shared.mu.Lock()
	r.middleware = append(r.middleware, mw...)
	r.shared.mu.Unlock()
}

func (r *GinRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}

func (r *GinRouter) globalMiddleware() []router.MiddlewareFunc {
	r.shared.mu.RLock()
	defer r.shared.mu.RUnlock()
	return append([]router.MiddlewareFunc(nil), r.middleware...)
}

func (r *GinRouter) routes() ginpkg.IRoutes {
	if r.group != nil {
		return r.group
	}
	return r.engine
}

func (r *GinRouter) fullPath(path string) string {
	if r.group != nil {
		return r.group.BasePath() + path
	}
	return path
}

// chain wraps h so that mw[0] runs outermost.
func chain(h router.HandlerFunc, mw ...[]router.MiddlewareFunc) router.HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		for j := len(mw[i]) - 1; j >= 0; j-- {
			h = mw[i][j](h)
		}
	}
	return h
}

func (r *GinRouter) handle(method, path string, h router.HandlerFunc, routeMW []router.MiddlewareFunc) {
	handler := chain(h, r.globalMiddleware(), routeMW)
	r.routes().Handle(method, path, func(gc *ginpkg.Context) {
		c := newContext(gc)
		if err := handler(c); err != nil && !c.Response().Written() {
			gc.AbortWithStatus(http.StatusInternalServerError)
		}
	})
	r.registerOptions(path)
}

// registerOptions answers OPTIONS on every registered path through the global
// middleware, so CORS preflight works without per-route handlers.
func (r *GinRouter) registerOptions(path string) {
	key := r.fullPath(path)
	r.shared.mu.Lock()
	_, seen := r.shared.options[key]
	r.shared.options[key] = struct{}{}
	r.shared.mu.Unlock()
	if seen {
		return
	}

	handler := chain(func(c router.Context) error {
		if !c.Response().Written() {
			c.Response().WriteHeader(http.StatusNoContent)
		}
		return nil
	}, r.globalMiddleware())
	r.routes().Handle(http.MethodOptions, path, func(gc *ginpkg.Context) {
		_ = handler(newContext(gc))
	})
}

func abortJSON(gc *ginpkg.Context, status int, code, message string) {
	gc.AbortWithStatusJSON(status, ginpkg.H{"code": code, "message": message})
}
