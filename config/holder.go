// Package config provides configuration loading and hot reload.
package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/inventorius/inventorius-web/adapters/metrics"
	"github.com/rs/zerolog"
)

// Holder provides thread-safe access to configuration with hot reload support.
type Holder struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	logger   zerolog.Logger
	metrics  *metrics.Collector
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHolder creates a new config holder and loads the initial configuration.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	h := &Holder{
		config: cfg,
		path:   absPath,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	return h, nil
}

// NewStaticHolder wraps a configuration that was not read from a file.
// Reload and WatchFile are no-ops.
func NewStaticHolder(cfg *Config, logger zerolog.Logger) *Holder {
	return &Holder{
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// SetMetrics records reload outcomes on m.
func (h *Holder) SetMetrics(m *metrics.Collector) {
	h.metrics = m
}

// Path returns the watched file, or "" for a static holder.
func (h *Holder) Path() string {
	return h.path
}

// Get returns the current configuration (thread-safe).
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Reload reloads the configuration from disk.
// Returns error if loading fails (keeps old config).
func (h *Holder) Reload() error {
	if h.path == "" {
		return nil
	}
	h.logger.Info().Str("path", h.path).Msg("reloading configuration")

	newCfg, err := Load(h.path)
	h.metrics.ConfigReloaded(err)
	if err != nil {
		h.logger.Error().Err(err).Msg("config reload failed, keeping old config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.config
	pinned := keepRestartFields(oldCfg, newCfg)
	h.config = newCfg
	listeners := append([]func(*Config){}, h.onChange...)
	h.mu.Unlock()

	if len(pinned) > 0 {
		h.logger.Warn().Strs("fields", pinned).Msg("restart required to apply changes")
	}
	h.logChanges(oldCfg, newCfg)

	// Notify listeners
	for _, fn := range listeners {
		fn(newCfg)
	}

	h.logger.Info().Msg("configuration reloaded successfully")
	return nil
}

// OnChange registers a callback to be called when config changes.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// WatchFile starts watching the config file for changes.
// Changes trigger automatic reload.
func (h *Holder) WatchFile() error {
	if h.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	// Watch the directory (more reliable for editors that do atomic saves)
	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go h.watchLoop()

	h.logger.Info().Str("path", h.path).Msg("watching config file for changes")
	return nil
}

// WatchSignals starts listening for SIGHUP to trigger reload.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("received SIGHUP, reloading config")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	h.logger.Info().Msg("listening for SIGHUP to reload config")
}

// Stop stops watching for file changes and signals. Safe to call twice.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
	})
}

func (h *Holder) watchLoop() {
	filename := filepath.Base(h.path)

	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			// Only react to our config file
			if filepath.Base(event.Name) != filename {
				continue
			}

			// React to write or create (atomic save = create)
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				h.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("config file changed")

				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("file watch reload failed")
				}
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("file watcher error")

		case <-h.stopCh:
			return
		}
	}
}

func (h *Holder) logChanges(old, new *Config) {
	if old.Logging.Level != new.Logging.Level {
		h.logger.Info().
			Str("old", old.Logging.Level).
			Str("new", new.Logging.Level).
			Msg("log level changed")
	}

	if old.Server.Dev != new.Server.Dev {
		h.logger.Info().
			Bool("old", old.Server.Dev).
			Bool("new", new.Server.Dev).
			Msg("dev mode changed")
	}

	if old.Server.NoClient != new.Server.NoClient {
		h.logger.Info().
			Bool("old", old.Server.NoClient).
			Bool("new", new.Server.NoClient).
			Msg("client script setting changed")
	}

	if old.Activity.Recent != new.Activity.Recent {
		h.logger.Info().
			Int("old", old.Activity.Recent).
			Int("new", new.Activity.Recent).
			Msg("recent activity count changed")
	}
}

// keepRestartFields copies the fields that only take effect at startup from
// running into loaded, so Get keeps describing what is actually served. It
// returns the names of the fields whose new values were held back.
func keepRestartFields(running, loaded *Config) []string {
	var pinned []string
	pin := func(name string, changed bool) {
		if changed {
			pinned = append(pinned, name)
		}
	}

	pin("server.host", running.Server.Host != loaded.Server.Host)
	pin("server.port", running.Server.Port != loaded.Server.Port)
	pin("api.url", running.API.URL != loaded.API.URL)
	pin("database.dsn", running.Database.DSN != loaded.Database.DSN)
	pin("tls.enabled", running.TLS.Enabled != loaded.TLS.Enabled)
	pin("demo.enabled", running.Demo.Enabled != loaded.Demo.Enabled)
	pin("activity.enabled", running.Activity.Enabled != loaded.Activity.Enabled)
	pin("metrics.enabled", running.Metrics.Enabled != loaded.Metrics.Enabled)

	loaded.Server.Host = running.Server.Host
	loaded.Server.Port = running.Server.Port
	loaded.API.URL = running.API.URL
	loaded.Database.DSN = running.Database.DSN
	loaded.TLS.Enabled = running.TLS.Enabled
	loaded.Demo = running.Demo
	loaded.Activity.Enabled = running.Activity.Enabled
	loaded.Metrics.Enabled = running.Metrics.Enabled
	return pinned
}

// ReloadableFields returns which fields can be changed without restart.
func ReloadableFields() []string {
	return []string{
		"logging.level",
		"server.dev",
		"server.no_client",
		"activity.recent",
		"tls.domains",
	}
}

// NonReloadableFields returns which fields require a restart. Reload keeps
// their running values.
func NonReloadableFields() []string {
	return []string{
		"server.host",
		"server.port",
		"api.url",
		"database.dsn",
		"tls.enabled",
		"demo.enabled",
		"activity.enabled",
		"metrics.enabled",
	}
}
