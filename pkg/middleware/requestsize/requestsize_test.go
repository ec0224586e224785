package requestsize

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nimburion/taskmanager/pkg/controller"
	"github.com/nimburion/taskmanager/pkg/middleware/testutil"
	"github.com/nimburion/taskmanager/pkg/server/router"
)

func readBody(c router.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	return c.String(http.StatusOK, string(body))
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		limit     int64
		body      string
		chunked   bool
		want      int
		wantCalls bool
	}{
		{name: "within limit", limit: 64, body: `{"name":"ok"}`, want: http.StatusOK, wantCalls: true},
		{name: "declared length over limit", limit: 8, body: `{"name":"too long"}`, want: http.StatusRequestEntityTooLarge},
		{name: "streamed body over limit", limit: 8, body: `{"name":"too long"}`, chunked: true, want: http.StatusRequestEntityTooLarge, wantCalls: true},
		{name: "disabled", limit: 0, body: `{"name":"anything goes"}`, want: http.StatusOK, wantCalls: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))
			if tt.chunked {
				req.ContentLength = -1
			}
			called := false
			rec := testutil.Serve(req, func(c router.Context) error {
				called = true
				return readBody(c)
			}, Middleware(tt.limit))

			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
			if called != tt.wantCalls {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalls)
			}
			if tt.want == http.StatusRequestEntityTooLarge {
				var body controller.ErrorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatalf("invalid body: %v", err)
				}
				if body.Code != controller.CodeTooLarge {
					t.Errorf("expected code %q, got %q", controller.CodeTooLarge, body.Code)
				}
			}
		})
	}
}
