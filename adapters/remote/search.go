package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/inventorius/inventorius-web/pkg/hypermedia"
)

// ErrSuperseded is returned by LatestSearch when a newer search started
// before this one finished. Its result must be discarded.
var ErrSuperseded = errors.New("search superseded")

// SearchResults is one page of search results.
type SearchResults struct {
	resource
	Query inventory.SearchQuery
	State inventory.SearchState
}

func newSearchResults(c *Client, env hypermedia.Envelope, q inventory.SearchQuery) (*SearchResults, error) {
	var state inventory.SearchState
	if err := env.DecodeState(&state); err != nil {
		return nil, fmt.Errorf("search state: %w", err)
	}
	if state.Limit == 0 {
		state.Limit = q.Limit
	}
	return &SearchResults{resource: newResource(c, env.ID, env.Operations), Query: q, State: state}, nil
}

// Kind returns KindSearchResults.
func (s *SearchResults) Kind() Kind { return KindSearchResults }

// Snapshot returns the serializable form of the page.
func (s *SearchResults) Snapshot() Snapshot {
	snap := s.snapshot(KindSearchResults, s.State)
	snap.Query = s.Query.Query
	return snap
}

func (s *SearchResults) rebind(c *Client) Resource {
	cp := *s
	cp.resource = s.rebound(c)
	return &cp
}

// TotalPages returns the number of pages of the whole result set.
func (s *SearchResults) TotalPages() int { return s.State.TotalPages() }

// CurrentPage returns the 1-based page this result is.
func (s *SearchResults) CurrentPage() int { return s.State.CurrentPage() }

// Page fetches another 1-based page of the same query.
func (s *SearchResults) Page(ctx context.Context, page int) (Result[*SearchResults], error) {
	return s.c.GetSearchResults(ctx, inventory.ForPage(s.Query.Query, page, s.State.Limit))
}

// Bins returns the bin results of the page.
func (s *SearchResults) Bins() []inventory.BinState {
	var out []inventory.BinState
	for _, r := range s.State.Results {
		if r.Kind == inventory.KindBin {
			out = append(out, *r.Bin)
		}
	}
	return out
}

// Skus returns the SKU results of the page.
func (s *SearchResults) Skus() []inventory.SkuState {
	var out []inventory.SkuState
	for _, r := range s.State.Results {
		if r.Kind == inventory.KindSku {
			out = append(out, *r.Sku)
		}
	}
	return out
}

// Batches returns the batch results of the page.
func (s *SearchResults) Batches() []inventory.BatchState {
	var out []inventory.BatchState
	for _, r := range s.State.Results {
		if r.Kind == inventory.KindBatch {
			out = append(out, *r.Batch)
		}
	}
	return out
}

// LatestSearch runs searches for a single input box. Starting a search
// cancels the one in flight, and only the most recent search delivers a
// result.
type LatestSearch struct {
	client *Client

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewLatestSearch creates a LatestSearch over c.
func NewLatestSearch(c *Client) *LatestSearch {
	return &LatestSearch{client: c}
}

// Search runs q. It returns ErrSuperseded if another Search started before
// this one completed.
func (s *LatestSearch) Search(ctx context.Context, q inventory.SearchQuery) (Result[*SearchResults], error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	res, err := s.client.GetSearchResults(ctx, q)

	s.mu.Lock()
	current := s.gen == gen
	if current {
		s.cancel = nil
	}
	s.mu.Unlock()

	if !current {
		s.client.metrics.SearchSuperseded()
		return Result[*SearchResults]{}, ErrSuperseded
	}
	return res, err
}

// Cancel aborts the search in flight, if any.
func (s *LatestSearch) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}
