package web

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/inventorius/inventorius-web/adapters/metrics"
	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/inventorius/inventorius-web/pkg/hypermedia"
	"github.com/rs/zerolog"
)

// ProxyConfig configures the /api passthrough.
type ProxyConfig struct {
	Target    string // Inventory API base URL
	Transport http.RoundTripper
	Headers   map[string]string // Added to every forwarded request
	Metrics   *metrics.Collector
	Logger    zerolog.Logger
}

// NewProxy returns a handler forwarding /api/* to the inventory API, so the
// shell and the API share one origin for the browser.
func NewProxy(cfg ProxyConfig) (http.Handler, error) {
	target, err := url.Parse(cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("proxy target: %w", err)
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("proxy target %q: scheme must be http or https", cfg.Target)
	}
	basePath := strings.TrimRight(target.Path, "/")
	logger := cfg.Logger.With().Str("component", "proxy").Logger()

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(&url.URL{Scheme: target.Scheme, Host: target.Host, Path: basePath})
			pr.SetXForwarded()
			for k, v := range cfg.Headers {
				pr.Out.Header.Set(k, v)
			}
			if id := remote.RequestIDFromContext(pr.In.Context()); id != "" {
				pr.Out.Header.Set(remote.HeaderRequestID, id)
			}
		},
		Transport:     cfg.Transport,
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			cfg.Metrics.APIError("proxy")
			logger.Warn().
				Err(err).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", remote.RequestIDFromContext(r.Context())).
				Msg("proxy request failed")
			hypermedia.WriteProblem(w, http.StatusBadGateway,
				hypermedia.NewProblem(hypermedia.ProblemUnexpectedResponse, "The inventory API could not be reached."))
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := cfg.Metrics.APICallStarted()
		defer done()

		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		rp.ServeHTTP(ww, r)
		cfg.Metrics.ObserveAPICall(r.Method, r.URL.Path, ww.status, time.Since(start))
	}), nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush lets streamed API responses through.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
