// Package bootstrap wires all dependencies and starts the shell.
// Configuration comes from a YAML file when one exists and from
// INVENTORIUS_* environment variables otherwise.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/inventorius/inventorius-web/adapters/idgen"
	"github.com/inventorius/inventorius-web/adapters/memory"
	"github.com/inventorius/inventorius-web/adapters/metrics"
	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/inventorius/inventorius-web/adapters/sqlite"
	"github.com/inventorius/inventorius-web/adapters/tls"
	"github.com/inventorius/inventorius-web/config"
	"github.com/inventorius/inventorius-web/ports"
	"github.com/inventorius/inventorius-web/web"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Options are command line settings layered over the configuration.
type Options struct {
	ConfigPath string
	Version    string
	APIURL     string // Overrides api.url

	Demo     bool // Serve the in-process demo API
	Dev      bool
	NoClient bool
	Open     bool // Open a browser once serving

	LogOutput io.Writer // Defaults to stdout
}

// App represents the running shell.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sqlite.DB
	Client     *remote.Client
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Handler    *web.Handler

	opts     Options
	activity *ActivityRecorder
	acme     *tls.ACMEProvider

	challengeServer *http.Server
	demoServer      *http.Server
	demoListener    net.Listener

	shutdownOnce sync.Once
}

// New loads configuration and builds the shell without serving anything.
func New(opts Options) (*App, error) {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stdout
	}

	cfg, err := config.LoadWithFallback(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg.Logging, opts.LogOutput)

	holder := config.NewStaticHolder(cfg, logger)
	if _, statErr := os.Stat(opts.ConfigPath); opts.ConfigPath != "" && statErr == nil {
		holder, err = config.NewHolder(opts.ConfigPath, logger)
		if err != nil {
			return nil, err
		}
		cfg = holder.Get()
	}
	if opts.APIURL != "" {
		cfg.API.URL = opts.APIURL
	}
	if opts.Demo {
		cfg.Demo.Enabled = true
		cfg.Demo.Seed = true
	}

	a := &App{
		Logger: logger,
		Config: holder,
		opts:   opts,
	}

	if err := a.init(cfg); err != nil {
		a.Shutdown()
		return nil, err
	}
	return a, nil
}

func (a *App) init(cfg *config.Config) error {
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.NewWithRegistry(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
		a.Config.SetMetrics(a.Metrics)
	}

	if cfg.NeedsDatabase() {
		if err := a.initDatabase(cfg.Database); err != nil {
			return err
		}
	}

	var activity ports.ActivityStore
	if cfg.Activity.Enabled {
		a.activity = NewActivityRecorder(sqlite.NewActivityStore(a.DB), ActivityRecorderConfig{
			Retention: cfg.Activity.Retention,
		}, a.Logger)
		activity = a.activity
	}

	apiURL := cfg.API.URL
	if cfg.Demo.Enabled {
		u, err := a.initDemo(cfg.Demo)
		if err != nil {
			return err
		}
		apiURL = u
	}

	a.Client = remote.NewClient(remote.Config{
		Hostname: apiURL,
		Timeout:  cfg.API.Timeout,
		Headers:  cfg.API.Headers,
		Logger:   a.Logger,
		Metrics:  a.Metrics,
	})

	proxy, err := web.NewProxy(web.ProxyConfig{
		Target:  apiURL,
		Headers: cfg.API.Headers,
		Metrics: a.Metrics,
		Logger:  a.Logger,
	})
	if err != nil {
		return err
	}

	var docs http.Handler
	if cfg.Docs.Enabled {
		docs = web.NewDocsHandler(web.DocsDeps{Logger: a.Logger}).Router()
	}

	a.Handler, err = web.NewHandler(web.Deps{
		API:            a.Client,
		Activity:       activity,
		IDs:            idgen.UUID{},
		Metrics:        a.Metrics,
		Logger:         a.Logger,
		Settings:       a.settings,
		Version:        a.opts.Version,
		Proxy:          proxy,
		Docs:           docs,
		MetricsHandler: metricsHandler,
		MetricsPath:    cfg.Metrics.Path,
	})
	if err != nil {
		return err
	}

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.Handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	if cfg.TLS.Enabled {
		if err := a.initTLS(cfg.TLS); err != nil {
			return err
		}
	}

	a.Config.OnChange(a.applyConfig)
	return nil
}

func (a *App) initDatabase(cfg config.DatabaseConfig) error {
	db, err := sqlite.Open(cfg.DSN)
	if err != nil {
		return err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	a.DB = db
	a.Logger.Info().Str("dsn", cfg.DSN).Msg("database initialized")
	return nil
}

// initDemo starts listening for the in-process inventory API and returns
// its base URL. Serving starts in Serve.
func (a *App) initDemo(cfg config.DemoConfig) (string, error) {
	inv := memory.NewInventory()
	if cfg.Seed {
		if err := memory.Seed(inv); err != nil {
			return "", fmt.Errorf("seed demo inventory: %w", err)
		}
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("demo api listener: %w", err)
	}
	a.demoListener = ln
	a.demoServer = &http.Server{
		Handler:           memory.NewAPI(inv, a.opts.Version, a.Logger.With().Str("component", "demo-api").Logger()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	u := "http://" + ln.Addr().String()
	a.Logger.Info().Str("url", u).Bool("seeded", cfg.Seed).Msg("demo inventory api ready")
	return u, nil
}

func (a *App) initTLS(cfg config.TLSConfig) error {
	provider, err := tls.NewACMEProvider(sqlite.NewCertCacheStore(a.DB), tls.ACMEConfig{
		Email:   cfg.Email,
		Staging: cfg.Staging,
		Domains: cfg.Domains,
	}, a.Logger)
	if err != nil {
		return err
	}
	a.acme = provider
	a.HTTPServer.TLSConfig = provider.TLSConfig()
	a.challengeServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           provider.HTTPHandler(nil),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// settings derives the per-request rendering settings from the current
// configuration, so reloads take effect on the next page.
func (a *App) settings() web.Settings {
	cfg := a.Config.Get()
	s := web.Settings{
		Dev:      cfg.Server.Dev || a.opts.Dev,
		NoClient: cfg.Server.NoClient || a.opts.NoClient,
	}
	if cfg.Activity.Enabled {
		s.RecentActivity = cfg.Activity.Recent
	}
	return s
}

func (a *App) applyConfig(cfg *config.Config) {
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if a.acme != nil && len(cfg.TLS.Domains) > 0 {
		a.acme.UpdateDomains(cfg.TLS.Domains)
	}
}

// Run serves until SIGINT or SIGTERM, then shuts down.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx)
}

// Serve serves until ctx is done or a server fails, then shuts down.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Config.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch disabled")
	}
	a.Config.WatchSignals()

	errCh := make(chan error, 3)

	if a.demoServer != nil {
		go func() {
			if err := a.demoServer.Serve(a.demoListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("demo api: %w", err)
			}
		}()
	}

	a.WaitForAPI(ctx, a.Config.Get().API.WaitTimeout)

	ln, err := net.Listen("tcp", a.HTTPServer.Addr)
	if err != nil {
		a.Shutdown()
		return fmt.Errorf("listen: %w", err)
	}

	tlsEnabled := a.HTTPServer.TLSConfig != nil
	go func() {
		a.Logger.Info().
			Str("addr", ln.Addr().String()).
			Bool("tls", tlsEnabled).
			Msg("starting http server")
		var err error
		if tlsEnabled {
			err = a.HTTPServer.ServeTLS(ln, "", "")
		} else {
			err = a.HTTPServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if a.challengeServer != nil {
		go func() {
			a.Logger.Info().Str("addr", a.challengeServer.Addr).Msg("starting acme challenge server")
			if err := a.challengeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("challenge server: %w", err)
			}
		}()
	}

	if a.opts.Open || a.Config.Get().Server.Open {
		a.openBrowser(ln.Addr(), tlsEnabled)
	}

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		a.Logger.Info().Msg("shutting down")
	}

	return a.Shutdown()
}

// WaitForAPI polls the inventory API version until it answers or timeout
// passes. Pages render an unreachable notice when it never does, so a
// timeout is logged rather than returned.
func (a *App) WaitForAPI(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = timeout

	var version string
	err := backoff.Retry(func() error {
		v, err := a.Client.GetVersion(ctx)
		if err != nil {
			a.Logger.Debug().Err(err).Msg("waiting for inventory api")
			return err
		}
		version = v
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		a.Logger.Warn().
			Err(err).
			Str("api", a.Client.Hostname()).
			Dur("waited", timeout).
			Msg("inventory api not reachable, serving anyway")
		return false
	}

	a.Logger.Info().Str("api", a.Client.Hostname()).Str("version", version).Msg("inventory api reachable")
	return true
}

func (a *App) openBrowser(addr net.Addr, secure bool) {
	host := "localhost"
	port := ""
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = fmt.Sprint(tcp.Port)
	}
	scheme := "http"
	if secure {
		scheme = "https"
	}
	u := fmt.Sprintf("%s://%s:%s/", scheme, host, port)

	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	if err := browser.OpenURL(u); err != nil {
		a.Logger.Warn().Err(err).Str("url", u).Msg("could not open browser")
	}
}

// Shutdown gracefully stops the shell. Safe to call on a partly built App
// and more than once.
func (a *App) Shutdown() error {
	a.shutdownOnce.Do(a.shutdown)
	return nil
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.Config != nil {
		a.Config.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.challengeServer != nil {
		if err := a.challengeServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("challenge server shutdown error")
		}
	}

	if a.demoServer != nil {
		if err := a.demoServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("demo api shutdown error")
		}
		a.demoListener.Close()
	}

	// Flush activity before the database goes away
	if a.activity != nil {
		if err := a.activity.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("activity recorder close error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
}

// NewLogger builds the process logger and sets the global level.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}
