package web

import (
	_ "embed"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.json
var openAPIDocument []byte

// embeddedDoc exposes the embedded document through swag's registry, which
// the Swagger UI handler reads for doc.json.
type embeddedDoc struct{}

func (embeddedDoc) ReadDoc() string { return string(openAPIDocument) }

func init() {
	swag.Register(swag.Name, embeddedDoc{})
}

// DocsHandler serves the inventory API reference.
type DocsHandler struct {
	logger zerolog.Logger
	title  string
}

// DocsDeps contains dependencies for the docs handler.
type DocsDeps struct {
	Logger zerolog.Logger
	Title  string
}

// NewDocsHandler creates a new documentation handler.
func NewDocsHandler(deps DocsDeps) *DocsHandler {
	return &DocsHandler{logger: deps.Logger, title: deps.Title}
}

// Router returns the docs router. It is meant to be mounted at /docs.
func (h *DocsHandler) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/index.html", http.StatusFound)
	})
	r.Get("/openapi.json", h.OpenAPISpec)
	r.Get("/openapi.yaml", h.OpenAPISpecYAML)

	// Swagger UI
	r.Get("/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/openapi.json"),
	))

	return r
}

// OpenAPISpec returns the OpenAPI JSON document. The server list points at
// the host serving the request, whose /api passes through to the backend.
func (h *DocsHandler) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	doc, err := h.document(r)
	if err != nil {
		h.logger.Error().Err(err).Msg("load openapi document")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(doc)
}

// OpenAPISpecYAML returns the OpenAPI document as YAML.
func (h *DocsHandler) OpenAPISpecYAML(w http.ResponseWriter, r *http.Request) {
	doc, err := h.document(r)
	if err != nil {
		h.logger.Error().Err(err).Msg("load openapi document")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		h.logger.Error().Err(err).Msg("encode openapi yaml")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Write(data)
}

func (h *DocsHandler) document(r *http.Request) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(openAPIDocument, &doc); err != nil {
		return nil, err
	}
	doc["servers"] = []any{map[string]any{"url": getBaseURL(r), "description": "Current server"}}
	if h.title != "" {
		if info, ok := doc["info"].(map[string]any); ok {
			info["title"] = h.title
		}
	}
	return doc, nil
}

func getBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
