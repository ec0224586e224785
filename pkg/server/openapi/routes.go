package openapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/nimburion/taskmanager/pkg/server/router"
)

// Route is one registered endpoint, with its path in OpenAPI form.
type Route struct {
	Method string
	Path   string
}

// CollectRoutes runs register against a recording router and returns what it mounted.
func CollectRoutes(register func(router.Router)) []Route {
	collector := &routeCollector{}
	register(collector)
	sort.Slice(collector.routes, func(i, j int) bool {
		if collector.routes[i].Path == collector.routes[j].Path {
			return collector.routes[i].Method < collector.routes[j].Method
		}
		return collector.routes[i].Path < collector.routes[j].Path
	})
	return collector.routes
}

// Undocumented returns the routes that have no operation in doc.
func Undocumented(doc *openapi3.T, routes []Route) []Route {
	var missing []Route
	for _, route := range routes {
		item := doc.Paths.Value(route.Path)
		if item == nil || item.GetOperation(route.Method) == nil {
			missing = append(missing, route)
		}
	}
	return missing
}

type routeCollector struct {
	prefix string
	routes []Route
	parent *routeCollector
}

func (r *routeCollector) GET(path string, _ router.HandlerFunc, _ ...router.MiddlewareFunc) {
	r.add(http.MethodGet, path)
}

func (r *routeCollector) POST(path string, _ router.HandlerFunc, _ ...router.MiddlewareFunc) {
	r.add(http.MethodPost, path)
}

func (r *routeCollector) PUT(path string, _ router.HandlerFunc, _ ...router.MiddlewareFunc) {
	r.add(http.MethodPut, path)
}

func (r *routeCollector) DELETE(path string, _ router.HandlerFunc, _ ...router.MiddlewareFunc) {
	r.add(http.MethodDelete, path)
}

func (r *routeCollector) PATCH(path string, _ router.HandlerFunc, _ ...router.MiddlewareFunc) {
	r.add(http.MethodPatch, path)
}

func (r *routeCollector) Group(prefix string, _ ...router.MiddlewareFunc) router.Router {
	return &routeCollector{prefix: joinPaths(r.prefix, prefix), parent: r.root()}
}

func (r *routeCollector) Use(_ ...router.MiddlewareFunc) {}

func (r *routeCollector) ServeHTTP(_ http.ResponseWriter, _ *http.Request) {}

func (r *routeCollector) root() *routeCollector {
	if r.parent != nil {
		return r.parent
	}
	return r
}

func (r *routeCollector) add(method, path string) {
	root := r.root()
	root.routes = append(root.routes, Route{Method: method, Path: openAPIPath(joinPaths(r.prefix, path))})
}

func joinPaths(prefix, path string) string {
	joined := strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(path, "/")
	if joined != "/" {
		joined = strings.TrimRight(joined, "/")
	}
	return joined
}

// openAPIPath rewrites /tasks/:taskId as /tasks/{taskId}.
func openAPIPath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if strings.HasPrefix(segment, ":") || strings.HasPrefix(segment, "*") {
			segments[i] = "{" + segment[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}
