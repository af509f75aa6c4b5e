// Package remote provides the client for the inventory REST API. Resources are
// returned as typed wrappers that carry the operations the server declared
// for them, so callers never build mutation URLs themselves.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/inventorius/inventorius-web/adapters/idgen"
	"github.com/inventorius/inventorius-web/adapters/metrics"
	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/inventorius/inventorius-web/pkg/hypermedia"
	"github.com/inventorius/inventorius-web/ports"
	"github.com/rs/zerolog"
)

// ErrDecode is returned when a success response body cannot be decoded.
var ErrDecode = errors.New("decode response")

const maxBodySize = 8 << 20

// Client talks to one inventory API host. It is the only place the hostname
// lives; every wrapper it returns is bound to it.
type Client struct {
	hostname   string
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    *metrics.Collector
}

// Config configures the API client.
type Config struct {
	// Hostname is prefixed to every path, e.g. "http://localhost:8081".
	// Empty means same-origin relative URLs.
	Hostname   string
	Timeout    time.Duration
	Headers    map[string]string
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Metrics    *metrics.Collector
	RequestIDs ports.IDGenerator
}

// NewClient creates a new inventory API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	base := http.DefaultTransport
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		base = cfg.HTTPClient.Transport
	}
	ids := cfg.RequestIDs
	if ids == nil {
		ids = idgen.UUID{}
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &transport{
			base:    base,
			headers: cfg.Headers,
			logger:  cfg.Logger,
			metrics: cfg.Metrics,
			ids:     ids,
		},
	}
	if cfg.HTTPClient != nil {
		httpClient.Jar = cfg.HTTPClient.Jar
		httpClient.CheckRedirect = cfg.HTTPClient.CheckRedirect
		if cfg.HTTPClient.Timeout != 0 && cfg.Timeout == 0 {
			httpClient.Timeout = cfg.HTTPClient.Timeout
		}
	}

	return &Client{
		hostname:   strings.TrimRight(cfg.Hostname, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Hostname returns the host every request is sent to.
func (c *Client) Hostname() string {
	return c.hostname
}

// Doer returns the instrumented transport used for every request.
func (c *Client) Doer() hypermedia.Doer {
	return c.httpClient
}

// =============================================================================
// Bins
// =============================================================================

// GetBin fetches a bin.
func (c *Client) GetBin(ctx context.Context, id string) (Result[*Bin], error) {
	resp, err := c.get(ctx, "/api/bin/"+url.PathEscape(id))
	if err != nil {
		return Result[*Bin]{}, fmt.Errorf("get bin %s: %w", id, err)
	}
	return decodeEnvelope(c, resp, KindBin, func(env hypermedia.Envelope) (*Bin, error) {
		return newBin(c, env)
	})
}

// GetNextBin fetches the suggested identifier for a new bin.
func (c *Client) GetNextBin(ctx context.Context) (Result[*Next], error) {
	return c.getNext(ctx, inventory.KindBin)
}

// NewBin posts a new bin and returns the raw response.
func (c *Client) NewBin(ctx context.Context, req inventory.NewBin) (*http.Response, error) {
	resp, err := c.post(ctx, inventory.CollectionPath(inventory.KindBin), req)
	if err != nil {
		return nil, fmt.Errorf("new bin: %w", err)
	}
	return resp, nil
}

// CreateBin validates and posts a new bin, decoding the outcome.
func (c *Client) CreateBin(ctx context.Context, req inventory.NewBin) (Result[inventory.Status], error) {
	if err := req.Validate(); err != nil {
		return invalid[inventory.Status](c, err), nil
	}
	resp, err := c.NewBin(ctx, req)
	if err != nil {
		return Result[inventory.Status]{}, err
	}
	return decodeStatus(c, resp)
}

// =============================================================================
// SKUs
// =============================================================================

// GetSku fetches a SKU.
func (c *Client) GetSku(ctx context.Context, id string) (Result[*Sku], error) {
	resp, err := c.get(ctx, "/api/sku/"+url.PathEscape(id))
	if err != nil {
		return Result[*Sku]{}, fmt.Errorf("get sku %s: %w", id, err)
	}
	return decodeEnvelope(c, resp, KindSku, func(env hypermedia.Envelope) (*Sku, error) {
		return newSku(c, env)
	})
}

// GetNextSku fetches the suggested identifier for a new SKU.
func (c *Client) GetNextSku(ctx context.Context) (Result[*Next], error) {
	return c.getNext(ctx, inventory.KindSku)
}

// NewSku posts a new SKU and returns the raw response.
func (c *Client) NewSku(ctx context.Context, req inventory.NewSku) (*http.Response, error) {
	resp, err := c.post(ctx, inventory.CollectionPath(inventory.KindSku), req)
	if err != nil {
		return nil, fmt.Errorf("new sku: %w", err)
	}
	return resp, nil
}

// CreateSku validates and posts a new SKU, decoding the outcome.
func (c *Client) CreateSku(ctx context.Context, req inventory.NewSku) (Result[inventory.Status], error) {
	if err := req.Validate(); err != nil {
		return invalid[inventory.Status](c, err), nil
	}
	resp, err := c.NewSku(ctx, req)
	if err != nil {
		return Result[inventory.Status]{}, err
	}
	return decodeStatus(c, resp)
}

// =============================================================================
// Batches
// =============================================================================

// GetBatch fetches a batch.
func (c *Client) GetBatch(ctx context.Context, id string) (Result[*Batch], error) {
	resp, err := c.get(ctx, "/api/batch/"+url.PathEscape(id))
	if err != nil {
		return Result[*Batch]{}, fmt.Errorf("get batch %s: %w", id, err)
	}
	return decodeEnvelope(c, resp, KindBatch, func(env hypermedia.Envelope) (*Batch, error) {
		return newBatch(c, env)
	})
}

// GetNextBatch fetches the suggested identifier for a new batch.
func (c *Client) GetNextBatch(ctx context.Context) (Result[*Next], error) {
	return c.getNext(ctx, inventory.KindBatch)
}

// NewBatch posts a new batch and returns the raw response.
func (c *Client) NewBatch(ctx context.Context, req inventory.NewBatch) (*http.Response, error) {
	resp, err := c.post(ctx, inventory.CollectionPath(inventory.KindBatch), req)
	if err != nil {
		return nil, fmt.Errorf("new batch: %w", err)
	}
	return resp, nil
}

// CreateBatch validates and posts a new batch, decoding the outcome.
func (c *Client) CreateBatch(ctx context.Context, req inventory.NewBatch) (Result[inventory.Status], error) {
	if err := req.Validate(); err != nil {
		return invalid[inventory.Status](c, err), nil
	}
	resp, err := c.NewBatch(ctx, req)
	if err != nil {
		return Result[inventory.Status]{}, err
	}
	return decodeStatus(c, resp)
}

// =============================================================================
// Bin contents
// =============================================================================

// Receive adds quantity units of itemID to the bin.
func (c *Client) Receive(ctx context.Context, binID, itemID string, quantity int) (Result[inventory.Status], error) {
	if quantity < 1 {
		return nonPositive(c), nil
	}
	return c.changeContents(ctx, c.contentsCallable(binID), inventory.ContentsChange{ID: itemID, Quantity: quantity})
}

// Release removes quantity units of itemID from the bin.
func (c *Client) Release(ctx context.Context, binID, itemID string, quantity int) (Result[inventory.Status], error) {
	if quantity < 1 {
		return nonPositive(c), nil
	}
	return c.changeContents(ctx, c.contentsCallable(binID), inventory.ContentsChange{ID: itemID, Quantity: -quantity})
}

// Move transfers units of an item from one bin to another.
func (c *Client) Move(ctx context.Context, fromBinID string, req inventory.MoveRequest) (Result[inventory.Status], error) {
	return c.move(ctx, c.moveCallable(fromBinID), req)
}

func (c *Client) changeContents(ctx context.Context, op hypermedia.Callable, change inventory.ContentsChange) (Result[inventory.Status], error) {
	if err := change.Validate(); err != nil {
		return invalid[inventory.Status](c, err), nil
	}
	resp, err := op.Perform(ctx, hypermedia.JSONBody(change))
	if err != nil {
		return Result[inventory.Status]{}, err
	}
	return decodeStatus(c, resp)
}

func (c *Client) move(ctx context.Context, op hypermedia.Callable, req inventory.MoveRequest) (Result[inventory.Status], error) {
	if err := req.Validate(); err != nil {
		return invalid[inventory.Status](c, err), nil
	}
	resp, err := op.Perform(ctx, hypermedia.JSONBody(req))
	if err != nil {
		return Result[inventory.Status]{}, err
	}
	return decodeStatus(c, resp)
}

func (c *Client) contentsCallable(binID string) hypermedia.Callable {
	return c.callable(hypermedia.RelReceive, http.MethodPost, "/api/bin/"+url.PathEscape(binID)+"/contents")
}

func (c *Client) moveCallable(binID string) hypermedia.Callable {
	return c.callable(hypermedia.RelMove, http.MethodPut, "/api/bin/"+url.PathEscape(binID)+"/contents/move")
}

// =============================================================================
// Search, version, status
// =============================================================================

// GetSearchResults runs a search.
func (c *Client) GetSearchResults(ctx context.Context, q inventory.SearchQuery) (Result[*SearchResults], error) {
	q = q.Normalize()
	params := url.Values{}
	params.Set("query", q.Query)
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("startingFrom", strconv.Itoa(q.StartingFrom))

	resp, err := c.get(ctx, "/api/search?"+params.Encode())
	if err != nil {
		return Result[*SearchResults]{}, fmt.Errorf("search %q: %w", q.Query, err)
	}
	return decodeEnvelope(c, resp, KindSearchResults, func(env hypermedia.Envelope) (*SearchResults, error) {
		return newSearchResults(c, env, q)
	})
}

// GetVersion returns the API version string.
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, "/api/version")
	if err != nil {
		return "", fmt.Errorf("get version: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read version: %w", err)
	}
	if !isSuccess(resp.StatusCode) {
		return "", fmt.Errorf("get version: unexpected status %d", resp.StatusCode)
	}
	return strings.TrimSpace(string(data)), nil
}

// GetStatus fetches the service status.
func (c *Client) GetStatus(ctx context.Context) (Result[inventory.ServiceStatus], error) {
	resp, err := c.get(ctx, "/api/status")
	if err != nil {
		return Result[inventory.ServiceStatus]{}, fmt.Errorf("get status: %w", err)
	}
	return decodeEnvelope(c, resp, KindServiceStatus, func(env hypermedia.Envelope) (inventory.ServiceStatus, error) {
		var s inventory.ServiceStatus
		err := env.DecodeState(&s)
		return s, err
	})
}

// GetStats fetches resource counts and recently created resources.
func (c *Client) GetStats(ctx context.Context) (Result[inventory.Stats], error) {
	resp, err := c.get(ctx, "/api/stats")
	if err != nil {
		return Result[inventory.Stats]{}, fmt.Errorf("get stats: %w", err)
	}
	return decodeEnvelope(c, resp, KindStats, func(env hypermedia.Envelope) (inventory.Stats, error) {
		var s inventory.Stats
		err := env.DecodeState(&s)
		return s, err
	})
}

// =============================================================================
// helpers
// =============================================================================

func (c *Client) getNext(ctx context.Context, kind inventory.Kind) (Result[*Next], error) {
	resp, err := c.get(ctx, inventory.NextPath(kind))
	if err != nil {
		return Result[*Next]{}, fmt.Errorf("get next %s: %w", kind, err)
	}
	return decodeEnvelope(c, resp, nextKind(kind), func(env hypermedia.Envelope) (*Next, error) {
		return newNext(c, kind, env)
	})
}

func (c *Client) callable(rel, method, path string) hypermedia.Callable {
	return hypermedia.NewCallable(hypermedia.Operation{Rel: rel, Method: method, Href: path}, c.hostname, c.httpClient)
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	return c.callable("get", http.MethodGet, path).Perform(ctx, hypermedia.NoBody())
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.callable(hypermedia.RelCreate, http.MethodPost, path).Perform(ctx, hypermedia.JSONBody(body))
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
