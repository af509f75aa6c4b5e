package hypermedia

import (
	"net/url"
	"strconv"
)

// Pagination holds the position of a result page and builds page links.
type Pagination struct {
	Total   int    // Total number of results
	Page    int    // Current page number (1-based)
	PerPage int    // Results per page
	BaseURL string // URL the page parameter is added to
}

// NewPagination creates a new Pagination instance.
func NewPagination(total, page, perPage int, baseURL string) *Pagination {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	return &Pagination{
		Total:   total,
		Page:    page,
		PerPage: perPage,
		BaseURL: baseURL,
	}
}

// TotalPages returns ceil(Total / PerPage); zero results means zero pages.
func (p *Pagination) TotalPages() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// HasPrev returns true if there is a previous page.
func (p *Pagination) HasPrev() bool {
	return p.Page > 1
}

// HasNext returns true if there is a next page.
func (p *Pagination) HasNext() bool {
	return p.Page < p.TotalPages()
}

// Offset returns the index of the first result on the current page.
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Window returns the page numbers within radius of the current page.
func (p *Pagination) Window(radius int) []int {
	total := p.TotalPages()
	if total == 0 {
		return nil
	}
	lo := p.Page - radius
	if lo < 1 {
		lo = 1
	}
	hi := p.Page + radius
	if hi > total {
		hi = total
	}
	if lo > hi {
		return nil
	}
	pages := make([]int, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		pages = append(pages, n)
	}
	return pages
}

// URL builds the link to the given page.
func (p *Pagination) URL(page int) string {
	if p.BaseURL == "" {
		return ""
	}

	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return p.BaseURL
	}

	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	return u.String()
}

// ParsePage extracts a 1-based page number from the query, defaulting to 1.
func ParsePage(query url.Values) int {
	if v := query.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 1
}
