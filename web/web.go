// Package web provides the server-rendered inventory shell.
// All templates and static files are embedded in the binary.
// Stateless design - every page fetches what it shows from the inventory API.
package web

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/inventorius/inventorius-web/adapters/idgen"
	"github.com/inventorius/inventorius-web/adapters/metrics"
	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/inventorius/inventorius-web/ports"
	"github.com/rs/zerolog"
)

//go:embed templates/* static/*
var assets embed.FS

// Settings holds the render options that may change at runtime.
type Settings struct {
	Dev            bool // Development banner, no caching
	NoClient       bool // Omit the client script
	RecentActivity int  // Entries shown on the home page
}

// Handler provides the shell endpoints.
type Handler struct {
	templates map[string]*template.Template // One template per page
	api       *remote.Client
	notifier  Notifier
	activity  ports.ActivityStore
	ids       ports.IDGenerator
	metrics   *metrics.Collector
	logger    zerolog.Logger
	settings  func() Settings
	version   string
	proxy     http.Handler
	docs      http.Handler
	metricsH  http.Handler
	metricsAt string
	startTime time.Time
	searches  *searchSessions
}

// Deps contains dependencies for the shell handler.
type Deps struct {
	API      *remote.Client
	Notifier Notifier            // Defaults to flash cookies
	Activity ports.ActivityStore // Optional mutation log
	IDs      ports.IDGenerator   // Request and activity ids
	Metrics  *metrics.Collector
	Logger   zerolog.Logger
	Settings func() Settings
	Version  string

	Proxy          http.Handler // Serves /api/*
	Docs           http.Handler // Mounted at /docs
	MetricsHandler http.Handler
	MetricsPath    string
}

// NewHandler creates a new shell handler.
func NewHandler(deps Deps) (*Handler, error) {
	if deps.API == nil {
		return nil, fmt.Errorf("web: API client is required")
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	h := &Handler{
		templates: tmpl,
		api:       deps.API,
		notifier:  deps.Notifier,
		activity:  deps.Activity,
		ids:       deps.IDs,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		settings:  deps.Settings,
		version:   deps.Version,
		proxy:     deps.Proxy,
		docs:      deps.Docs,
		metricsH:  deps.MetricsHandler,
		metricsAt: deps.MetricsPath,
		startTime: time.Now(),
		searches:  newSearchSessions(deps.API),
	}
	if h.notifier == nil {
		h.notifier = FlashNotifier{}
	}
	if h.ids == nil {
		h.ids = idgen.UUID{}
	}
	if h.settings == nil {
		h.settings = func() Settings { return Settings{} }
	}
	if h.metricsAt == "" {
		h.metricsAt = "/metrics"
	}
	return h, nil
}

// Router returns the shell router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.RequestID)
	r.Use(NewLoggingMiddleware(h.logger))

	// Health and metrics
	r.Get("/healthz", h.Healthz)
	if h.metricsH != nil {
		r.Handle(h.metricsAt, h.metricsH)
	}

	// Static files (CSS, JS)
	staticFS, _ := fs.Sub(assets, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	// Backend passthrough
	if h.proxy != nil {
		r.Handle("/api/*", h.proxy)
		r.Handle("/api", h.proxy)
	}

	// API documentation
	if h.docs != nil {
		r.Mount("/docs", h.docs)
	}

	// Pages
	r.Group(func(r chi.Router) {
		r.Use(NewMetricsMiddleware(h.metrics))
		r.Use(Flashes)

		r.Get("/", h.Home)

		r.Get("/search", h.SearchPage)
		r.Get("/partials/search", h.PartialSearch)

		r.Get("/new/{kind}", h.NewPage)
		r.Post("/new/{kind}", h.NewSubmit)

		r.Get("/receive", h.ReceivePage)
		r.Post("/receive", h.ReceiveSubmit)
		r.Get("/release", h.ReleasePage)
		r.Post("/release", h.ReleaseSubmit)
		r.Get("/move", h.MovePage)
		r.Post("/move", h.MoveSubmit)

		r.Get("/{kind}/{id}", h.ResourcePage)
		r.Post("/{kind}/{id}/update", h.UpdateSubmit)
		r.Post("/{kind}/{id}/delete", h.DeleteSubmit)
	})

	r.NotFound(h.NotFound)

	return r
}

// Healthz reports that the shell is serving. It does not probe the backend.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Helper to parse all templates with layouts
func parseTemplates() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("Jan 2, 2006 3:04 PM")
		},
		"timeAgo": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			d := time.Since(t)
			switch {
			case d < time.Minute:
				return "just now"
			case d < time.Hour:
				return formatDuration(d.Minutes(), "minute")
			case d < 24*time.Hour:
				return formatDuration(d.Hours(), "hour")
			default:
				return formatDuration(d.Hours()/24, "day")
			}
		},
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
		"pagePath": inventory.PagePath,
		"join": func(items []string) string {
			return strings.Join(items, " ")
		},
		"propsJSON": func(p inventory.Props) string {
			if len(p) == 0 {
				return ""
			}
			data, err := json.MarshalIndent(p, "", "  ")
			if err != nil {
				return ""
			}
			return string(data)
		},
		"snapshotJSON": func(s *remote.Snapshot) string {
			if s == nil {
				return ""
			}
			data, err := json.Marshal(s)
			if err != nil {
				return ""
			}
			return string(data)
		},
		"sortedKeys": func(m map[string]int) []string {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			return keys
		},
	}

	templates := make(map[string]*template.Template)

	layoutContent, err := fs.ReadFile(assets, "templates/layouts/base.html")
	if err != nil {
		return nil, err
	}

	var componentContent []byte
	components, err := fs.Glob(assets, "templates/components/*.html")
	if err != nil {
		return nil, err
	}
	for _, comp := range components {
		content, err := fs.ReadFile(assets, comp)
		if err != nil {
			return nil, err
		}
		componentContent = append(componentContent, content...)
	}

	pages, err := fs.Glob(assets, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}

	for _, page := range pages {
		name := strings.TrimPrefix(page, "templates/pages/")
		name = strings.TrimSuffix(name, ".html")

		pageContent, err := fs.ReadFile(assets, page)
		if err != nil {
			return nil, err
		}

		tmpl := template.New(name).Funcs(funcs)
		if _, err := tmpl.Parse(string(layoutContent)); err != nil {
			return nil, fmt.Errorf("parse layout for %s: %w", name, err)
		}
		if len(componentContent) > 0 {
			if _, err := tmpl.Parse(string(componentContent)); err != nil {
				return nil, fmt.Errorf("parse components for %s: %w", name, err)
			}
		}
		if _, err := tmpl.Parse(string(pageContent)); err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}

		templates[name] = tmpl
	}

	return templates, nil
}

func formatDuration(n float64, unit string) string {
	i := int(n)
	if i == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", i, unit)
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data interface{}) {
	tmpl, ok := h.templates[name]
	if !ok {
		h.logger.Error().Str("template", name).Msg("template not found")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// A template error must not leave a half-written page.
	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		h.logger.Error().Err(err).Str("template", name).Msg("template render error")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if h.settings().Dev {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(status)
	io.WriteString(w, buf.String())
}

func (h *Handler) renderPartial(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// Every page template carries the components, so any one serves partials.
	tmpl, ok := h.templates["home"]
	if !ok {
		h.logger.Error().Str("template", name).Msg("partial render error: no base template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error().Err(err).Str("template", name).Msg("partial render error")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
