package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistry_ExposesRuntimeSeries(t *testing.T) {
	body := scrape(t, NewRegistry())
	for _, want := range []string{"go_goroutines", "go_gc_duration_seconds", "process_cpu_seconds_total", "http_requests_in_flight"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
}

func TestRegistry_CustomCollectors(t *testing.T) {
	registry := NewRegistry()
	appends := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_appends_total", Help: "test"})
	if err := registry.Register(appends); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := registry.Register(appends); err == nil {
		t.Fatal("registering twice must fail")
	}
	appends.Add(3)

	if body := scrape(t, registry); !strings.Contains(body, "test_appends_total 3") {
		t.Error("custom counter not exposed")
	}

	defer func() {
		if recover() == nil {
			t.Error("MustRegister must panic on a duplicate")
		}
	}()
	registry.MustRegister(appends)
}

func TestRegistry_Gatherer(t *testing.T) {
	families, err := NewRegistry().Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected metric families")
	}
}
