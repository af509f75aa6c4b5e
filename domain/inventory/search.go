package inventory

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultSearchLimit is the page size used when none is given.
const DefaultSearchLimit = 20

// SearchQuery holds the parameters of GET /api/search.
type SearchQuery struct {
	Query        string
	Limit        int
	StartingFrom int
}

// Normalize fills in defaults and clamps negative values.
func (q SearchQuery) Normalize() SearchQuery {
	q.Query = strings.TrimSpace(q.Query)
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.StartingFrom < 0 {
		q.StartingFrom = 0
	}
	return q
}

// ForPage returns a query for the 1-based page with the given page size.
func ForPage(query string, page, limit int) SearchQuery {
	if page < 1 {
		page = 1
	}
	q := SearchQuery{Query: query, Limit: limit}.Normalize()
	q.StartingFrom = (page - 1) * q.Limit
	return q
}

// SearchState is the state of a page of search results.
type SearchState struct {
	TotalNumResults    int            `json:"total_num_results"`
	StartingFrom       int            `json:"starting_from"`
	Limit              int            `json:"limit"`
	ReturnedNumResults int            `json:"returned_num_results"`
	Results            []SearchResult `json:"results"`
}

// TotalPages returns ceil(total / limit). An empty result set has no pages.
func (s SearchState) TotalPages() int {
	if s.TotalNumResults <= 0 {
		return 0
	}
	if s.Limit <= 0 {
		return 1
	}
	return (s.TotalNumResults + s.Limit - 1) / s.Limit
}

// CurrentPage returns the 1-based page that StartingFrom falls on.
func (s SearchState) CurrentPage() int {
	if s.Limit <= 0 {
		return 1
	}
	return s.StartingFrom/s.Limit + 1
}

// SearchResult is one entry of a result page. Exactly one of Bin, Sku or
// Batch is set, selected by the prefix of the entry's id.
type SearchResult struct {
	Kind  Kind
	Bin   *BinState
	Sku   *SkuState
	Batch *BatchState
}

// ID returns the identifier of the underlying resource.
func (r SearchResult) ID() string {
	switch r.Kind {
	case KindBin:
		return r.Bin.ID
	case KindSku:
		return r.Sku.ID
	case KindBatch:
		return r.Batch.ID
	}
	return ""
}

// Label returns a human readable name for the result.
func (r SearchResult) Label() string {
	switch r.Kind {
	case KindSku:
		if r.Sku.Name != "" {
			return r.Sku.Name
		}
	case KindBatch:
		if r.Batch.Name != "" {
			return r.Batch.Name
		}
	}
	return r.ID()
}

// UnmarshalJSON decodes a result by looking at its id prefix.
func (r *SearchResult) UnmarshalJSON(data []byte) error {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	kind, ok := KindOf(probe.ID)
	if !ok {
		return fmt.Errorf("search result: %w: %q", ErrInvalidID, probe.ID)
	}

	*r = SearchResult{Kind: kind}
	switch kind {
	case KindBin:
		r.Bin = new(BinState)
		return json.Unmarshal(data, r.Bin)
	case KindSku:
		r.Sku = new(SkuState)
		return json.Unmarshal(data, r.Sku)
	default:
		r.Batch = new(BatchState)
		return json.Unmarshal(data, r.Batch)
	}
}

// MarshalJSON encodes the underlying state.
func (r SearchResult) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindBin:
		return json.Marshal(r.Bin)
	case KindSku:
		return json.Marshal(r.Sku)
	case KindBatch:
		return json.Marshal(r.Batch)
	}
	return nil, fmt.Errorf("search result has no kind")
}
