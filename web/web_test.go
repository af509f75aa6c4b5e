package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/inventorius/inventorius-web/adapters/idgen"
	"github.com/inventorius/inventorius-web/adapters/memory"
	"github.com/inventorius/inventorius-web/adapters/metrics"
	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/inventorius/inventorius-web/ports"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
)

// Test mocks

type mockActivity struct {
	mu      sync.Mutex
	entries []ports.Activity
}

func (m *mockActivity) Record(ctx context.Context, a ports.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, a)
	return nil
}

func (m *mockActivity) Recent(ctx context.Context, limit int) ([]ports.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ports.Activity
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *mockActivity) ForResource(ctx context.Context, id string, limit int) ([]ports.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ports.Activity
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].ResourceID == id {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func (m *mockActivity) all() []ports.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.Activity(nil), m.entries...)
}

// testShell is a shell served against an in-memory inventory API.
type testShell struct {
	inv      *memory.Inventory
	backend  *httptest.Server
	client   *remote.Client
	activity *mockActivity
	metrics  *metrics.Collector
	handler  *Handler
	router   http.Handler
}

func newTestShell(t *testing.T) *testShell {
	t.Helper()

	inv := memory.NewInventory()
	if err := memory.Seed(inv); err != nil {
		t.Fatalf("seed: %v", err)
	}
	backend := httptest.NewServer(memory.NewAPI(inv, "9.9.9", zerolog.Nop()))
	t.Cleanup(backend.Close)

	client := remote.NewClient(remote.Config{
		Hostname: backend.URL,
		Timeout:  5 * time.Second,
		Logger:   zerolog.Nop(),
	})
	activity := &mockActivity{}
	collector := metrics.NewWithRegistry(prometheus.NewRegistry())

	h, err := NewHandler(Deps{
		API:      client,
		Activity: activity,
		IDs:      idgen.NewSequential("req_"),
		Metrics:  collector,
		Logger:   zerolog.Nop(),
		Settings: func() Settings { return Settings{RecentActivity: 5} },
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	return &testShell{
		inv:      inv,
		backend:  backend,
		client:   client,
		activity: activity,
		metrics:  collector,
		handler:  h,
		router:   h.Router(),
	}
}

func (s *testShell) get(t *testing.T, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testShell) post(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func flashFrom(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == flashCookie {
			return c
		}
	}
	return nil
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return out.GetCounter().GetValue()
}

func TestNewHandler_RequiresAPI(t *testing.T) {
	if _, err := NewHandler(Deps{Logger: zerolog.Nop()}); err == nil {
		t.Error("expected error without an API client")
	}
}

func TestParseTemplates(t *testing.T) {
	tmpl, err := parseTemplates()
	if err != nil {
		t.Fatalf("parseTemplates() error = %v", err)
	}
	for _, name := range []string{"home", "bin", "sku", "batch", "missing", "error", "new", "contents", "search"} {
		if _, ok := tmpl[name]; !ok {
			t.Errorf("template %q not loaded", name)
		}
	}
}

func TestHealthz(t *testing.T) {
	s := newTestShell(t)

	rec := s.get(t, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestRequestID(t *testing.T) {
	s := newTestShell(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(remote.HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if got := rec.Header().Get(remote.HeaderRequestID); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(remote.HeaderRequestID, strings.Repeat("x", maxRequestIDLen+1))
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if got := rec.Header().Get(remote.HeaderRequestID); !strings.HasPrefix(got, "req_") {
		t.Errorf("oversized request id was not replaced: %q", got)
	}
}

func TestStaticAssets(t *testing.T) {
	s := newTestShell(t)

	for _, path := range []string{"/static/app.js", "/static/app.css"} {
		rec := s.get(t, path)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d", path, rec.Code)
		}
	}
}

func TestNoClientOmitsScript(t *testing.T) {
	s := newTestShell(t)
	s.handler.settings = func() Settings { return Settings{NoClient: true, Dev: true} }

	rec := s.get(t, "/bin/BIN000001")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "/static/app.js") {
		t.Error("client script included with NoClient")
	}
	if !strings.Contains(body, `id="hydration"`) {
		t.Error("hydration payload missing")
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store in dev", rec.Header().Get("Cache-Control"))
	}
}

func TestPageMetrics(t *testing.T) {
	s := newTestShell(t)

	s.get(t, "/bin/BIN000001")
	s.get(t, "/bin/BIN000002")
	s.get(t, "/bin/BIN000099")

	if got := counterValue(t, s.metrics.PageRenders.WithLabelValues("GET /{kind}/{id}", "2xx")); got != 2 {
		t.Errorf("2xx renders = %v, want 2", got)
	}
	if got := counterValue(t, s.metrics.PageRenders.WithLabelValues("GET /{kind}/{id}", "4xx")); got != 1 {
		t.Errorf("4xx renders = %v, want 1", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestShell(t)
	s.handler.metricsH = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics"))
	})
	s.router = s.handler.Router()

	rec := s.get(t, "/metrics")
	if rec.Code != http.StatusOK || rec.Body.String() != "# metrics" {
		t.Errorf("GET /metrics = %d %q", rec.Code, rec.Body)
	}
}

func TestUnknownPath(t *testing.T) {
	s := newTestShell(t)

	rec := s.get(t, "/no/such/page/here")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
