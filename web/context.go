package web

import (
	"context"
	"net/http"

	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/inventorius/inventorius-web/pkg/hypermedia"
)

// PageData holds common data for all pages.
type PageData struct {
	Title       string
	CurrentPath string
	Notices     []Notice
	Version     string
	Backend     string
	Dev         bool
	NoClient    bool
	RequestID   string

	// Hydration is embedded in the page for the client script and posted
	// back by forms. Nil for pages without a resource.
	Hydration *remote.Snapshot
}

// FormError is a validation or problem message shown next to a form.
type FormError struct {
	Title  string
	Params []hypermedia.InvalidParam
}

// newPageData creates base page data from request context. Notices queued
// earlier in this request or carried by the flash cookie are consumed here.
func (h *Handler) newPageData(r *http.Request, title string) PageData {
	settings := h.settings()
	return PageData{
		Title:       title,
		CurrentPath: r.URL.Path,
		Notices:     takeNotices(r.Context()),
		Version:     h.version,
		Backend:     h.api.Hostname(),
		Dev:         settings.Dev,
		NoClient:    settings.NoClient,
		RequestID:   remote.RequestIDFromContext(r.Context()),
	}
}

// problemError converts a problem into the form error shown by templates.
func problemError(p *hypermedia.Problem) *FormError {
	if p == nil {
		return nil
	}
	return &FormError{Title: p.Title, Params: p.InvalidParams}
}

// notify sends a notice through the configured notifier.
func (h *Handler) notify(ctx context.Context, level, message string) {
	h.notifier.Notify(ctx, Notice{Level: level, Message: message})
}
