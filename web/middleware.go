package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/inventorius/inventorius-web/adapters/metrics"
	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/rs/zerolog"
)

const maxRequestIDLen = 128

// RequestID takes the request id from the incoming header or generates one.
// The id is echoed on the response and forwarded on every API call made
// while serving the request.
func (h *Handler) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(remote.HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = h.ids.New()
		}
		w.Header().Set(remote.HeaderRequestID, id)

		ctx := remote.WithRequestID(r.Context(), id)
		ctx = context.WithValue(ctx, middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and static assets
			if r.URL.Path == "/healthz" || strings.HasPrefix(r.URL.Path, "/static/") {
				return
			}

			event := logger.Debug()
			if ww.Status() >= http.StatusInternalServerError {
				event = logger.Warn()
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// NewMetricsMiddleware creates middleware that records page renders.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			page := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					page = pattern
				}
			}
			m.ObservePage(r.Method+" "+metrics.RouteLabel(page), ww.Status(), time.Since(start))
		})
	}
}
