package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/inventorius/inventorius-web/pkg/hypermedia"
)

const (
	pagerRadius = 2

	// searchSessionHeader names the search box a partial search comes from.
	searchSessionHeader = "X-Search-Session"
	maxSearchSessions   = 1024
)

type searchFunc func(ctx context.Context, q inventory.SearchQuery) (remote.Result[*remote.SearchResults], error)

type searchView struct {
	PageData
	Query   string
	Results []inventory.SearchResult
	Total   int
	Pager   *hypermedia.Pagination
	Pages   []int
	Error   *FormError
}

// SearchPage renders a page of search results with a pager.
func (h *Handler) SearchPage(w http.ResponseWriter, r *http.Request) {
	view, status := h.search(r, h.api.GetSearchResults)
	view.PageData = h.newPageData(r, "Search")
	h.render(w, status, "search", view)
}

// PartialSearch renders only the result list, for search-as-you-type.
// Requests naming a search session cancel that session's search in flight;
// a superseded search answers 204 with no body.
func (h *Handler) PartialSearch(w http.ResponseWriter, r *http.Request) {
	run := h.api.GetSearchResults
	if id := r.Header.Get(searchSessionHeader); id != "" && len(id) <= 64 {
		run = h.searches.get(id).Search
	}

	view, status := h.search(r, run)
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	h.renderPartial(w, "search_results", view)
}

func (h *Handler) search(r *http.Request, run searchFunc) (searchView, int) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	page := hypermedia.ParsePage(q)
	limit := inventory.DefaultSearchLimit
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n <= 100 {
		limit = n
	}

	view := searchView{Query: query}
	if query == "" {
		return view, http.StatusOK
	}

	res, err := run(r.Context(), inventory.ForPage(query, page, limit))
	if errors.Is(err, remote.ErrSuperseded) {
		return view, http.StatusNoContent
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("query", query).Msg("search failed")
		msg := "The inventory API could not be reached."
		if errors.Is(err, remote.ErrDecode) {
			msg = "The inventory API sent a response that could not be read."
		}
		view.Error = &FormError{Title: msg}
		return view, http.StatusBadGateway
	}
	if !res.OK() {
		view.Error = problemError(res.Problem)
		return view, problemStatus(res)
	}

	results := res.Value
	view.Results = dedupe(results.State.Results)
	view.Total = results.State.TotalNumResults

	params := url.Values{"query": {query}}
	if limit != inventory.DefaultSearchLimit {
		params.Set("limit", strconv.Itoa(limit))
	}
	base := url.URL{Path: "/search", RawQuery: params.Encode()}
	view.Pager = hypermedia.NewPagination(view.Total, results.CurrentPage(), results.State.Limit, base.String())
	view.Pages = view.Pager.Window(pagerRadius)
	return view, http.StatusOK
}

// dedupe drops repeated results, keeping the first occurrence.
func dedupe(results []inventory.SearchResult) []inventory.SearchResult {
	seen := make(map[string]bool, len(results))
	out := results[:0:0]
	for _, res := range results {
		id := res.ID()
		if id != "" && seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, res)
	}
	return out
}

// searchSessions keeps one LatestSearch per search box.
type searchSessions struct {
	api *remote.Client

	mu       sync.Mutex
	sessions map[string]*remote.LatestSearch
}

func newSearchSessions(api *remote.Client) *searchSessions {
	return &searchSessions{api: api, sessions: make(map[string]*remote.LatestSearch)}
}

func (s *searchSessions) get(id string) *remote.LatestSearch {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ls, ok := s.sessions[id]; ok {
		return ls
	}
	if len(s.sessions) >= maxSearchSessions {
		for k := range s.sessions {
			delete(s.sessions, k)
			break
		}
	}
	ls := remote.NewLatestSearch(s.api)
	s.sessions[id] = ls
	return ls
}
