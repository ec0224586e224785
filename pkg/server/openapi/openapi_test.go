package openapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nimburion/taskmanager/pkg/api"
	"github.com/nimburion/taskmanager/pkg/server/router"
	ginrouter "github.com/nimburion/taskmanager/pkg/server/router/gin"
	"github.com/nimburion/taskmanager/pkg/tasks"
	"github.com/nimburion/taskmanager/pkg/tasktypes"
	"github.com/nimburion/taskmanager/pkg/testutil/memstore"
	"github.com/nimburion/taskmanager/pkg/version"
)

func TestLoad(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("embedded document is invalid: %v", err)
	}
	if doc.Info.Title != "Task Manager" {
		t.Errorf("unexpected title %q", doc.Info.Title)
	}
}

func TestDocument_CoversEveryRoute(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	executor := memstore.New()
	taskStore, err := tasks.NewStore(executor)
	if err != nil {
		t.Fatalf("tasks.NewStore failed: %v", err)
	}
	taskTypeStore, err := tasktypes.NewStore(executor)
	if err != nil {
		t.Fatalf("tasktypes.NewStore failed: %v", err)
	}
	handler, err := api.New(taskStore, taskTypeStore, version.Info{})
	if err != nil {
		t.Fatalf("api.New failed: %v", err)
	}

	routes := CollectRoutes(handler.Register)
	if len(routes) == 0 {
		t.Fatal("no route collected")
	}
	if missing := Undocumented(doc, routes); len(missing) > 0 {
		t.Fatalf("undocumented routes: %v", missing)
	}
}

func TestCollectRoutes(t *testing.T) {
	noop := func(router.Context) error { return nil }
	routes := CollectRoutes(func(r router.Router) {
		r.GET("/tasks/:taskId", noop)
		group := r.Group("/v1/")
		group.POST("/items/", noop)
		group.DELETE("/files/*path", noop)
	})
	want := []Route{
		{Method: http.MethodGet, Path: "/tasks/{taskId}"},
		{Method: http.MethodDelete, Path: "/v1/files/{path}"},
		{Method: http.MethodPost, Path: "/v1/items"},
	}
	if len(routes) != len(want) {
		t.Fatalf("expected %v, got %v", want, routes)
	}
	for i := range want {
		if routes[i] != want[i] {
			t.Errorf("route %d: expected %v, got %v", i, want[i], routes[i])
		}
	}
}

func TestUndocumented(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	missing := Undocumented(doc, []Route{
		{Method: http.MethodGet, Path: "/tasks"},
		{Method: http.MethodPut, Path: "/tasks"},
		{Method: http.MethodGet, Path: "/unknown"},
	})
	if len(missing) != 2 {
		t.Fatalf("expected two undocumented routes, got %v", missing)
	}
}

func serve(req *http.Request, register func(router.Router)) *httptest.ResponseRecorder {
	r := ginrouter.NewRouter()
	register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestServeSpec(t *testing.T) {
	rec := serve(httptest.NewRequest(http.MethodGet, SpecPath, nil), RegisterRoutes)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-yaml" {
		t.Errorf("unexpected content type %q", ct)
	}
	if rec.Body.String() != string(Raw()) {
		t.Error("the served document differs from the embedded one")
	}
}

func TestSwaggerHandler(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		want     int
		contains string
	}{
		{"enabled", true, http.StatusOK, `data-spec-url="` + SpecPath + `"`},
		{"disabled", false, http.StatusNotFound, "disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			swagger := NewSwaggerHandler(tt.enabled, SpecPath)
			rec := serve(httptest.NewRequest(http.MethodGet, "/swagger", nil), func(r router.Router) {
				r.GET("/swagger", swagger.ServeSwaggerUI)
			})
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("expected body to contain %q", tt.contains)
			}
		})
	}
}

func TestSwaggerHandler_RegisterRoutes(t *testing.T) {
	disabled := CollectRoutes(NewSwaggerHandler(false, SpecPath).RegisterRoutes)
	if len(disabled) != 0 {
		t.Errorf("disabled UI must not mount routes, got %v", disabled)
	}
	enabled := CollectRoutes(NewSwaggerHandler(true, SpecPath).RegisterRoutes)
	if len(enabled) != 2 {
		t.Errorf("expected /swagger and /swagger/, got %v", enabled)
	}
}
