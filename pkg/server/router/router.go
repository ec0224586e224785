// Package router is the HTTP routing surface shared by the servers, the
// middleware packages and the task handlers. Package gin implements it.
package router

import "net/http"

// Router registers routes and serves them.
type Router interface {
	GET(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	POST(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	PUT(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	DELETE(path string, handler HandlerFunc, middleware ...MiddlewareFunc)
	PATCH(path string, handler HandlerFunc, middleware ...MiddlewareFunc)

	// Group mounts a sub-router under prefix.
	Group(prefix string, middleware ...MiddlewareFunc) Router
	// Use adds middleware for routes registered after the call.
	Use(middleware ...MiddlewareFunc)

	http.Handler
}

// HandlerFunc serves one request. A returned error turns into a 500 unless
// the handler already wrote a response.
type HandlerFunc func(Context) error

// MiddlewareFunc decorates a handler.
type MiddlewareFunc func(HandlerFunc) HandlerFunc

// Context is the per-request view handed to handlers and middleware.
type Context interface {
	Request() *http.Request
	// SetRequest replaces the request, e.g. to attach a derived context.
	SetRequest(r *http.Request)
	Response() ResponseWriter
	// SetResponse replaces the writer, e.g. to capture or buffer output.
	SetResponse(w ResponseWriter)

	// Param returns the path parameter name, such as id in /tasks/:id.
	Param(name string) string
	// Query returns the first value of a query parameter.
	Query(name string) string

	// Bind decodes a JSON request body into v.
	Bind(v interface{}) error
	JSON(code int, v interface{}) error
	String(code int, s string) error

	// Get and Set carry request-scoped values between middleware and handlers.
	Get(key string) interface{}
	Set(key string, value interface{})
}

// ResponseWriter tracks the status code a handler wrote.
type ResponseWriter interface {
	http.ResponseWriter
	// Status returns the written status, or 200 before anything was written.
	Status() int
	Written() bool
}
