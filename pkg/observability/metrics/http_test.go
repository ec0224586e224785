package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func scrape(t *testing.T, registry *Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape failed with %d", rec.Code)
	}
	return rec.Body.String()
}

func TestRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/tasks", "/tasks"},
		{"/tasks/", "/tasks/"},
		{"/tasks/abc", "/tasks/:id"},
		{"/tasks/abc/transactions", "/tasks/:id/transactions"},
		{"/tasks/abc/transactions/3/messages", "/tasks/:id/transactions/:id/messages"},
		{"/taskTypes/xyz", "/taskTypes/:id"},
		{"/taskTransactions", "/taskTransactions"},
		{"/help/info", "/help/info"},
	}
	for _, tt := range tests {
		if got := Route(tt.path); got != tt.want {
			t.Errorf("Route(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestRecordHTTPMetrics(t *testing.T) {
	registry := NewRegistry()

	RecordHTTPMetrics("GET", "/tasks/one", 200, 10*time.Millisecond)
	RecordHTTPMetrics("GET", "/tasks/two", 200, 20*time.Millisecond)
	RecordHTTPMetrics("POST", "/tasks/one/transactions", 201, 5*time.Millisecond)
	RecordHTTPMetrics("GET", "/tasks/none", 404, time.Millisecond)

	body := scrape(t, registry)
	for _, want := range []string{
		`http_requests_total{method="GET",route="/tasks/:id",status="200"} 2`,
		`http_requests_total{method="POST",route="/tasks/:id/transactions",status="201"} 1`,
		`http_requests_total{method="GET",route="/tasks/:id",status="404"} 1`,
		"http_request_duration_seconds_bucket",
		"http_request_duration_seconds_sum",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
	if strings.Contains(body, `route="/tasks/one"`) {
		t.Error("identifiers must not leak into labels")
	}
}

func TestInFlight(t *testing.T) {
	registry := NewRegistry()
	IncrementInFlight()
	IncrementInFlight()
	DecrementInFlight()
	if body := scrape(t, registry); !strings.Contains(body, "http_requests_in_flight 1") {
		t.Error("expected one request in flight")
	}
	DecrementInFlight()
}

func TestRecordHTTPMetrics_Concurrent(t *testing.T) {
	registry := NewRegistry()
	const workers, perWorker = 8, 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				RecordHTTPMetrics("GET", "/messages", 200, time.Millisecond)
			}
		}()
	}
	wg.Wait()

	want := `http_requests_total{method="GET",route="/messages",status="200"} ` + strconv.Itoa(workers*perWorker)
	if body := scrape(t, registry); !strings.Contains(body, want) {
		t.Errorf("expected %s", want)
	}
}
