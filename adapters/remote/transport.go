package remote

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/inventorius/inventorius-web/adapters/metrics"
	"github.com/inventorius/inventorius-web/ports"
	"github.com/rs/zerolog"
)

// HeaderRequestID carries the correlation id of an API call.
const HeaderRequestID = "X-Request-Id"

type requestIDKey struct{}

// WithRequestID attaches a request id that outgoing API calls will carry.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id attached to ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// transport wraps an http.RoundTripper to add headers, log calls and
// record API metrics.
type transport struct {
	base    http.RoundTripper
	headers map[string]string
	logger  zerolog.Logger
	metrics *metrics.Collector
	ids     ports.IDGenerator
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	id := RequestIDFromContext(req.Context())
	if id == "" {
		id = t.ids.New()
	}
	req.Header.Set(HeaderRequestID, id)

	done := t.metrics.APICallStarted()
	defer done()

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.metrics.APIError(errorKind(err))
		t.logger.Warn().
			Err(err).
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Str("request_id", id).
			Dur("duration", duration).
			Msg("inventory api request failed")
		return nil, err
	}

	t.metrics.ObserveAPICall(req.Method, req.URL.Path, resp.StatusCode, duration)
	t.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Str("request_id", id).
		Dur("duration", duration).
		Msg("inventory api request")

	return resp, nil
}

func errorKind(err error) string {
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "connection"
}
