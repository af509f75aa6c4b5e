package metrics_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/inventorius/inventorius-web/adapters/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestNewWithRegistry(t *testing.T) {
	// Use a new registry to avoid conflicts with other tests
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m == nil {
		t.Fatal("NewWithRegistry returned nil")
	}
	if m.APIRequestsTotal == nil {
		t.Error("APIRequestsTotal is nil")
	}
	if m.PageRenders == nil {
		t.Error("PageRenders is nil")
	}
	if m.ConfigReloads == nil {
		t.Error("ConfigReloads is nil")
	}
}

func TestObserveAPICall(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.ObserveAPICall(http.MethodGet, "/api/bin/BIN000001", http.StatusOK, 20*time.Millisecond)
	m.ObserveAPICall(http.MethodGet, "/api/bin/BIN000002", http.StatusNotFound, 5*time.Millisecond)

	if got := value(t, m.APIRequestsTotal.WithLabelValues("GET", "/api/bin/{id}", "2xx")); got != 1 {
		t.Errorf("2xx count = %v, want 1", got)
	}
	if got := value(t, m.APIRequestsTotal.WithLabelValues("GET", "/api/bin/{id}", "4xx")); got != 1 {
		t.Errorf("4xx count = %v, want 1", got)
	}
}

func TestInFlight(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	done := m.APICallStarted()
	if got := value(t, m.APIRequestsInFlight); got != 1 {
		t.Errorf("in flight = %v, want 1", got)
	}
	done()
	if got := value(t, m.APIRequestsInFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
}

func TestConfigReloaded(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	m.ConfigReloaded(nil)
	m.ConfigReloaded(errors.New("bad yaml"))

	if got := value(t, m.ConfigReloads); got != 1 {
		t.Errorf("ConfigReloads = %v, want 1", got)
	}
	if got := value(t, m.ConfigReloadErrors); got != 1 {
		t.Errorf("ConfigReloadErrors = %v, want 1", got)
	}
	if got := value(t, m.ConfigLastReload); got == 0 {
		t.Error("ConfigLastReload not set")
	}
}

func TestNilCollector(t *testing.T) {
	var m *metrics.Collector

	// None of these may panic.
	m.ObserveAPICall("GET", "/api/version", 200, time.Millisecond)
	m.APICallStarted()()
	m.APIError("timeout")
	m.APIProblem("missing-resource")
	m.ObservePage("bin", 200, time.Millisecond)
	m.SearchSuperseded()
	m.ConfigReloaded(nil)
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/bin/BIN000001", "/api/bin/{id}"},
		{"/api/bin/BIN000001/contents/move", "/api/bin/{id}/contents/move"},
		{"/api/sku/SKU000001/bins", "/api/sku/{id}/bins"},
		{"/api/search?query=x", "/api/search"},
		{"/api/next/batch", "/api/next/batch"},
	}

	for _, tt := range tests {
		if got := metrics.RouteLabel(tt.path); got != tt.want {
			t.Errorf("RouteLabel(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 201: "2xx", 302: "3xx", 404: "4xx", 502: "5xx", 0: "unknown"}
	for code, want := range tests {
		if got := metrics.StatusClass(code); got != want {
			t.Errorf("StatusClass(%d) = %q, want %q", code, got, want)
		}
	}
}
