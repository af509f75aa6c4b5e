package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/inventorius/inventorius-web/pkg/hypermedia"
	"github.com/inventorius/inventorius-web/ports"
)

const resourceActivityLimit = 10

// Home shows the backend version, resource counts and recent activity.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data := struct {
		PageData
		APIVersion  string
		Up          bool
		Stats       *inventory.Stats
		Activity    []ports.Activity
		Unreachable string
	}{
		PageData: h.newPageData(r, "Inventory"),
	}

	version, err := h.api.GetVersion(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("inventory api unreachable")
		data.Unreachable = err.Error()
	} else {
		data.APIVersion = version
		if status, err := h.api.GetStatus(ctx); err == nil && status.OK() {
			data.Up = status.Value.IsUp
		}
		if stats, err := h.api.GetStats(ctx); err == nil && stats.OK() {
			data.Stats = &stats.Value
		}
	}

	if h.activity != nil {
		if limit := h.settings().RecentActivity; limit > 0 {
			entries, err := h.activity.Recent(ctx, limit)
			if err != nil {
				h.logger.Warn().Err(err).Msg("load recent activity")
			}
			data.Activity = entries
		}
	}

	h.render(w, http.StatusOK, "home", data)
}

// resourceView is what the bin, sku and batch pages render.
type resourceView struct {
	PageData
	Kind     inventory.Kind
	ID       string
	Bin      *remote.Bin
	Sku      *remote.Sku
	Batch    *remote.Batch
	Items    []inventory.ItemQuantity
	Bins     inventory.Locations
	Batches  inventory.SkuBatches
	Activity []ports.Activity
	Error    *FormError
}

// Can reports whether the displayed resource declared rel.
func (v resourceView) Can(rel string) bool {
	switch {
	case v.Bin != nil:
		return v.Bin.Can(rel)
	case v.Sku != nil:
		return v.Sku.Can(rel)
	case v.Batch != nil:
		return v.Batch.Can(rel)
	}
	return false
}

// ResourcePage renders a bin, SKU or batch.
func (h *Handler) ResourcePage(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := h.resourceParams(w, r)
	if !ok {
		return
	}

	res, problem, err := h.fetch(r, kind, id)
	if err != nil {
		h.renderUnavailable(w, r, err)
		return
	}
	if problem != nil {
		h.renderProblem(w, r, kind, id, problem)
		return
	}

	h.renderResource(w, r, http.StatusOK, res, nil)
}

// resourceParams reads {kind} and {id}, rendering the not-found page when
// they do not name a resource.
func (h *Handler) resourceParams(w http.ResponseWriter, r *http.Request) (inventory.Kind, string, bool) {
	kind, err := inventory.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.NotFound(w, r)
		return "", "", false
	}
	id := chi.URLParam(r, "id")
	if parsed, err := inventory.ParseID(id); err != nil || parsed.Kind != kind {
		h.NotFound(w, r)
		return "", "", false
	}
	return kind, id, true
}

// renderResource renders res with its related collections. formErr is shown
// above the edit form; the state shown is always the one res carries.
func (h *Handler) renderResource(w http.ResponseWriter, r *http.Request, status int, res remote.Resource, formErr *FormError) {
	ctx := r.Context()
	snapshot := res.Snapshot()

	view := resourceView{
		Kind:  inventory.Kind(res.Kind()),
		ID:    snapshotStateID(res),
		Error: formErr,
	}

	switch x := res.(type) {
	case *remote.Bin:
		view.Bin = x
		view.Items = x.State.Items()
	case *remote.Sku:
		view.Sku = x
		if locs, err := x.Bins(ctx); err == nil && locs.OK() {
			view.Bins = locs.Value
		}
		if batches, err := x.Batches(ctx); err == nil && batches.OK() {
			view.Batches = batches.Value
		}
	case *remote.Batch:
		view.Batch = x
		if locs, err := x.Bins(ctx); err == nil && locs.OK() {
			view.Bins = locs.Value
		}
	}

	view.PageData = h.newPageData(r, view.ID)
	view.Hydration = &snapshot
	view.Activity = h.resourceActivity(ctx, view.ID)

	h.render(w, status, string(view.Kind), view)
}

func (h *Handler) resourceActivity(ctx context.Context, id string) []ports.Activity {
	if h.activity == nil {
		return nil
	}
	entries, err := h.activity.ForResource(ctx, id, resourceActivityLimit)
	if err != nil {
		h.logger.Warn().Err(err).Str("resource", id).Msg("load resource activity")
		return nil
	}
	return entries
}

// renderProblem renders a problem returned while loading kind/id. Missing
// resources get the 404 page, offering creation when the server declared it.
func (h *Handler) renderProblem(w http.ResponseWriter, r *http.Request, kind inventory.Kind, id string, p *hypermedia.Problem) {
	if p.IsMissingResource() {
		_, canCreate := p.Find(hypermedia.RelCreate)
		data := struct {
			PageData
			Kind      inventory.Kind
			ID        string
			CanCreate bool
			Problem   *hypermedia.Problem
		}{
			PageData:  h.newPageData(r, "Not found"),
			Kind:      kind,
			ID:        id,
			CanCreate: canCreate,
			Problem:   p,
		}
		h.render(w, http.StatusNotFound, "missing", data)
		return
	}

	status := p.Status
	if status < 400 {
		status = http.StatusBadGateway
	}
	h.renderError(w, r, status, p.Title, problemError(p))
}

// renderUnavailable renders the connection error page.
func (h *Handler) renderUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("inventory api request failed")
	msg := "The inventory API could not be reached."
	if errors.Is(err, remote.ErrDecode) {
		msg = "The inventory API sent a response that could not be read."
	}
	if errors.Is(err, context.Canceled) {
		msg = "The request was cancelled."
	}
	h.renderError(w, r, http.StatusBadGateway, msg, nil)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, message string, detail *FormError) {
	data := struct {
		PageData
		Status  int
		Message string
		Detail  *FormError
	}{
		PageData: h.newPageData(r, http.StatusText(status)),
		Status:   status,
		Message:  message,
		Detail:   detail,
	}
	h.render(w, status, "error", data)
}

// NotFound renders the 404 page for paths that name nothing.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusNotFound, "There is nothing at "+r.URL.Path+".", nil)
}

// record appends an entry to the activity log. Failures are logged only.
func (h *Handler) record(ctx context.Context, action, resourceID, detail string, problem *hypermedia.Problem) {
	if h.activity == nil {
		return
	}
	outcome := ports.OutcomeOK
	if problem != nil {
		outcome = problem.Type
	}
	a := ports.Activity{
		ID:         h.ids.New(),
		Action:     action,
		ResourceID: resourceID,
		Detail:     detail,
		Outcome:    outcome,
		RequestID:  remote.RequestIDFromContext(ctx),
	}
	if err := h.activity.Record(ctx, a); err != nil {
		h.logger.Warn().Err(err).Str("action", action).Msg("record activity")
	}
}
