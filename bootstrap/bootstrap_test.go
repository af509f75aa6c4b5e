package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/inventorius/inventorius-web/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventorius.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// startDemo serves the demo API without starting the shell's listener.
func startDemo(t *testing.T, a *App) {
	t.Helper()
	require.NotNil(t, a.demoServer, "demo api not configured")
	go a.demoServer.Serve(a.demoListener)
}

func serve(a *App, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	a.HTTPServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestNew_Demo(t *testing.T) {
	app, err := New(Options{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
		Version:    "test",
		Demo:       true,
		LogOutput:  io.Discard,
	})
	require.NoError(t, err)
	defer app.Shutdown()

	assert.Nil(t, app.DB, "demo without activity needs no database")
	assert.Nil(t, app.Metrics)
	assert.Empty(t, app.Config.Path())
	assert.True(t, app.Config.Get().Demo.Enabled)
	assert.True(t, strings.HasPrefix(app.Client.Hostname(), "http://127.0.0.1:"))

	startDemo(t, app)

	rec := serve(app, http.MethodGet, "/bin/BIN000001", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "SKU000001")

	rec = serve(app, http.MethodGet, "/api/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", strings.TrimSpace(rec.Body.String()))
}

func TestNew_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, fmt.Sprintf(`
server:
  host: 127.0.0.1
  port: 18080
  dev: true
logging:
  level: warn
  format: console
metrics:
  enabled: true
database:
  dsn: %s
activity:
  enabled: true
  recent: 5
docs:
  enabled: true
demo:
  enabled: true
  seed: true
`, filepath.Join(dir, "shell.db")))

	app, err := New(Options{ConfigPath: path, Version: "test", LogOutput: io.Discard})
	require.NoError(t, err)
	defer app.Shutdown()

	require.NotNil(t, app.DB)
	require.NotNil(t, app.activity)
	require.NotNil(t, app.Metrics)
	assert.Equal(t, "127.0.0.1:18080", app.HTTPServer.Addr)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	settings := app.settings()
	assert.True(t, settings.Dev)
	assert.Equal(t, 5, settings.RecentActivity)

	startDemo(t, app)

	t.Run("activity is persisted", func(t *testing.T) {
		form := url.Values{"id": {"BIN000010"}}
		rec := serve(app, http.MethodPost, "/new/bin", strings.NewReader(form.Encode()))
		require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

		entries, err := app.activity.Recent(context.Background(), 5)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "bin.create", entries[0].Action)
		assert.Equal(t, "BIN000010", entries[0].ResourceID)
		assert.True(t, entries[0].Succeeded())
	})

	t.Run("metrics endpoint", func(t *testing.T) {
		rec := serve(app, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "go_goroutines")
		assert.Contains(t, rec.Body.String(), "inventorius_")
	})

	t.Run("docs", func(t *testing.T) {
		rec := serve(app, http.MethodGet, "/docs/openapi.json", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestNew_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: loud\n")

	_, err := New(Options{ConfigPath: path, LogOutput: io.Discard})
	assert.Error(t, err)
}

func TestNew_BadDatabase(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(`
activity:
  enabled: true
database:
  dsn: %s
`, filepath.Join(t.TempDir(), "no", "such", "dir", "shell.db")))

	_, err := New(Options{ConfigPath: path, LogOutput: io.Discard})
	assert.Error(t, err)
}

func TestSettings_FlagsOverride(t *testing.T) {
	app, err := New(Options{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
		Demo:       true,
		Dev:        true,
		NoClient:   true,
		LogOutput:  io.Discard,
	})
	require.NoError(t, err)
	defer app.Shutdown()

	s := app.settings()
	assert.True(t, s.Dev)
	assert.True(t, s.NoClient)
	assert.Zero(t, s.RecentActivity, "no recent activity without the activity log")
}

func TestReload_AppliesLogLevel(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\ndemo:\n  enabled: true\n")

	app, err := New(Options{ConfigPath: path, LogOutput: io.Discard})
	require.NoError(t, err)
	defer app.Shutdown()
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: error\ndemo:\n  enabled: true\n"), 0o644))
	require.NoError(t, app.Config.Reload())
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
}

func TestWaitForAPI(t *testing.T) {
	var calls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "1.2.3")
	}))
	defer backend.Close()

	t.Setenv("INVENTORIUS_API_URL", backend.URL)
	app, err := New(Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"), LogOutput: io.Discard})
	require.NoError(t, err)
	defer app.Shutdown()

	assert.True(t, app.WaitForAPI(context.Background(), 10*time.Second))
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestWaitForAPI_GivesUp(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer backend.Close()

	t.Setenv("INVENTORIUS_API_URL", backend.URL)
	app, err := New(Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"), LogOutput: io.Discard})
	require.NoError(t, err)
	defer app.Shutdown()

	start := time.Now()
	assert.False(t, app.WaitForAPI(context.Background(), 300*time.Millisecond))
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.False(t, app.WaitForAPI(context.Background(), 0), "zero timeout skips the wait")
}

func TestServe_StopsOnCancel(t *testing.T) {
	port := freePort(t)
	path := writeConfig(t, fmt.Sprintf(`
server:
  host: 127.0.0.1
  port: %d
api:
  wait_timeout: 2s
demo:
  enabled: true
  seed: true
`, port))

	app, err := New(Options{ConfigPath: path, LogOutput: io.Discard})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err = http.Get(base + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "M3 hex nut")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestNewLogger(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	logger.Debug().Str("bin", "BIN000001").Msg("hello")
	assert.Contains(t, buf.String(), `"bin":"BIN000001"`)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	buf.Reset()
	logger = NewLogger(config.LoggingConfig{Level: "warn", Format: "console"}, &buf)
	logger.Info().Msg("dropped")
	logger.Warn().Msg("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
	assert.NotContains(t, buf.String(), `"level"`)

	NewLogger(config.LoggingConfig{Level: "nonsense"}, io.Discard)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
