package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/inventorius/inventorius-web/pkg/hypermedia"
)

// =============================================================================
// Update and delete
// =============================================================================

// UpdateSubmit hydrates the posted resource and sends its update operation.
func (h *Handler) UpdateSubmit(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := h.resourceParams(w, r)
	if !ok {
		return
	}
	if err := parseForm(w, r); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "The form could not be read.", nil)
		return
	}

	res, problem, err := h.hydrateFrom(r, kind, id)
	switch {
	case errors.Is(err, remote.ErrNotHydratable):
		h.renderError(w, r, http.StatusBadRequest, "The form was posted for a different resource.", nil)
		return
	case err != nil:
		h.renderUnavailable(w, r, err)
		return
	case problem != nil:
		h.renderProblem(w, r, kind, id, problem)
		return
	}

	var resp *http.Response
	switch x := res.(type) {
	case *remote.Bin:
		patch, perr := binPatch(r)
		if perr != nil {
			h.renderResource(w, r, http.StatusUnprocessableEntity, res, fieldError("props", perr))
			return
		}
		if verr := patch.Validate(); verr != nil {
			h.renderResource(w, r, http.StatusUnprocessableEntity, res, validationError(verr))
			return
		}
		resp, err = x.Update(r.Context(), patch)
	case *remote.Sku:
		patch, perr := skuPatch(r, x.State)
		if h.patchRejected(w, r, res, perr) {
			return
		}
		if verr := patch.Validate(); verr != nil {
			h.renderResource(w, r, http.StatusUnprocessableEntity, res, validationError(verr))
			return
		}
		resp, err = x.Update(r.Context(), patch)
	case *remote.Batch:
		patch, perr := batchPatch(r, x.State)
		if h.patchRejected(w, r, res, perr) {
			return
		}
		if verr := patch.Validate(); verr != nil {
			h.renderResource(w, r, http.StatusUnprocessableEntity, res, validationError(verr))
			return
		}
		resp, err = x.Update(r.Context(), patch)
	}

	h.finishMutation(w, r, res, string(kind)+".update", resp, err)
}

// patchRejected renders the outcome of a patch that will not be sent.
func (h *Handler) patchRejected(w http.ResponseWriter, r *http.Request, res remote.Resource, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, errEmptyPatch):
		h.notify(r.Context(), LevelInfo, "No changes to save.")
		http.Redirect(w, r, inventory.PagePath(snapshotStateID(res)), http.StatusSeeOther)
	default:
		h.renderResource(w, r, http.StatusUnprocessableEntity, res, fieldError("props", err))
	}
	return true
}

// DeleteSubmit hydrates the posted resource and sends its delete operation.
func (h *Handler) DeleteSubmit(w http.ResponseWriter, r *http.Request) {
	kind, id, ok := h.resourceParams(w, r)
	if !ok {
		return
	}
	if err := parseForm(w, r); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "The form could not be read.", nil)
		return
	}

	res, problem, err := h.hydrateFrom(r, kind, id)
	switch {
	case errors.Is(err, remote.ErrNotHydratable):
		h.renderError(w, r, http.StatusBadRequest, "The form was posted for a different resource.", nil)
		return
	case err != nil:
		h.renderUnavailable(w, r, err)
		return
	case problem != nil:
		h.renderProblem(w, r, kind, id, problem)
		return
	}

	var resp *http.Response
	switch x := res.(type) {
	case *remote.Bin:
		resp, err = x.Delete(r.Context())
	case *remote.Sku:
		resp, err = x.Delete(r.Context())
	case *remote.Batch:
		resp, err = x.Delete(r.Context())
	}

	h.finishMutation(w, r, res, string(kind)+".delete", resp, err)
}

// finishMutation interprets the response of a declared operation performed
// on res. Success redirects to the refreshed page, or home after a delete.
// Failure re-renders res as it was with the problem shown.
func (h *Handler) finishMutation(w http.ResponseWriter, r *http.Request, res remote.Resource, action string, resp *http.Response, err error) {
	ctx := r.Context()
	id := snapshotStateID(res)

	if errors.Is(err, hypermedia.ErrOperationNotDeclared) {
		h.renderResource(w, r, http.StatusMethodNotAllowed, res, &FormError{
			Title: fmt.Sprintf("The server does not allow this on %s.", id),
		})
		return
	}
	if err != nil {
		h.renderUnavailable(w, r, err)
		return
	}

	result, err := h.api.DecodeStatus(resp)
	if err != nil {
		h.renderUnavailable(w, r, err)
		return
	}
	if !result.OK() {
		h.record(ctx, action, id, "", result.Problem)
		h.notify(ctx, LevelError, result.Problem.Title)
		h.renderResource(w, r, problemStatus(result), res, problemError(result.Problem))
		return
	}

	h.record(ctx, action, id, result.Value.Status, nil)
	h.notify(ctx, LevelSuccess, statusMessage(result.Value.Status, id))

	target := inventory.PagePath(id)
	if strings.HasSuffix(action, ".delete") {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// =============================================================================
// Creation
// =============================================================================

type newView struct {
	PageData
	Kind  inventory.Kind
	Form  url.Values
	Error *FormError
}

// NewPage renders the creation form, prefilled with the next free id.
func (h *Handler) NewPage(w http.ResponseWriter, r *http.Request) {
	kind, err := inventory.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.NotFound(w, r)
		return
	}

	form := url.Values{}
	var formErr *FormError
	if id := r.URL.Query().Get("id"); id != "" {
		form.Set("id", id)
	} else {
		next, err := h.nextID(r, kind)
		if err != nil {
			h.logger.Warn().Err(err).Str("kind", string(kind)).Msg("next id")
			formErr = &FormError{Title: "No identifier could be suggested; enter one."}
		}
		form.Set("id", next)
	}
	if sku := r.URL.Query().Get("sku_id"); sku != "" && kind == inventory.KindBatch {
		form.Set("sku_id", sku)
	}

	h.renderNew(w, r, http.StatusOK, kind, form, formErr)
}

func (h *Handler) nextID(r *http.Request, kind inventory.Kind) (string, error) {
	var (
		res remote.Result[*remote.Next]
		err error
	)
	switch kind {
	case inventory.KindBin:
		res, err = h.api.GetNextBin(r.Context())
	case inventory.KindSku:
		res, err = h.api.GetNextSku(r.Context())
	case inventory.KindBatch:
		res, err = h.api.GetNextBatch(r.Context())
	}
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", res.Err()
	}
	return res.Value.State, nil
}

// NewSubmit creates a resource from the posted form.
func (h *Handler) NewSubmit(w http.ResponseWriter, r *http.Request) {
	kind, err := inventory.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.NotFound(w, r)
		return
	}
	if err := parseForm(w, r); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "The form could not be read.", nil)
		return
	}

	req, err := newRequest(kind, r)
	if err != nil {
		h.renderNew(w, r, http.StatusUnprocessableEntity, kind, r.PostForm, fieldError("props", err))
		return
	}

	ctx := r.Context()
	var result remote.Result[inventory.Status]
	var id string
	switch x := req.(type) {
	case inventory.NewBin:
		id = x.ID
		result, err = h.api.CreateBin(ctx, x)
	case inventory.NewSku:
		id = x.ID
		result, err = h.api.CreateSku(ctx, x)
	case inventory.NewBatch:
		id = x.ID
		result, err = h.api.CreateBatch(ctx, x)
	}
	if err != nil {
		h.renderUnavailable(w, r, err)
		return
	}

	action := string(kind) + ".create"
	if !result.OK() {
		// Requests that fail local validation never reach the server.
		if result.StatusCode != 0 {
			h.record(ctx, action, id, "", result.Problem)
		}
		h.renderNew(w, r, problemStatus(result), kind, r.PostForm, problemError(result.Problem))
		return
	}

	h.record(ctx, action, id, result.Value.Status, nil)
	h.notify(ctx, LevelSuccess, statusMessage(result.Value.Status, id))
	http.Redirect(w, r, inventory.PagePath(id), http.StatusSeeOther)
}

func (h *Handler) renderNew(w http.ResponseWriter, r *http.Request, status int, kind inventory.Kind, form url.Values, formErr *FormError) {
	data := newView{
		PageData: h.newPageData(r, "New "+string(kind)),
		Kind:     kind,
		Form:     form,
		Error:    formErr,
	}
	h.render(w, status, "new", data)
}

// =============================================================================
// Receive, release, move
// =============================================================================

type contentsView struct {
	PageData
	Action string // receive, release or move
	Form   url.Values
	Error  *FormError
}

// ReceivePage renders the receive form.
func (h *Handler) ReceivePage(w http.ResponseWriter, r *http.Request) {
	h.renderContents(w, r, http.StatusOK, "receive", r.URL.Query(), nil)
}

// ReleasePage renders the release form.
func (h *Handler) ReleasePage(w http.ResponseWriter, r *http.Request) {
	h.renderContents(w, r, http.StatusOK, "release", r.URL.Query(), nil)
}

// MovePage renders the move form.
func (h *Handler) MovePage(w http.ResponseWriter, r *http.Request) {
	h.renderContents(w, r, http.StatusOK, "move", r.URL.Query(), nil)
}

// ReceiveSubmit adds items to a bin.
func (h *Handler) ReceiveSubmit(w http.ResponseWriter, r *http.Request) {
	h.submitContents(w, r, "receive", func(bin, item string, qty int) (remote.Result[inventory.Status], error) {
		return h.api.Receive(r.Context(), bin, item, qty)
	})
}

// ReleaseSubmit removes items from a bin.
func (h *Handler) ReleaseSubmit(w http.ResponseWriter, r *http.Request) {
	h.submitContents(w, r, "release", func(bin, item string, qty int) (remote.Result[inventory.Status], error) {
		return h.api.Release(r.Context(), bin, item, qty)
	})
}

// MoveSubmit transfers items between bins.
func (h *Handler) MoveSubmit(w http.ResponseWriter, r *http.Request) {
	h.submitContents(w, r, "move", func(bin, item string, qty int) (remote.Result[inventory.Status], error) {
		return h.api.Move(r.Context(), bin, inventory.MoveRequest{
			ID:          item,
			Destination: strings.TrimSpace(r.PostForm.Get("destination")),
			Quantity:    qty,
		})
	})
}

type contentsCall func(bin, item string, qty int) (remote.Result[inventory.Status], error)

func (h *Handler) submitContents(w http.ResponseWriter, r *http.Request, action string, call contentsCall) {
	if err := parseForm(w, r); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "The form could not be read.", nil)
		return
	}
	f := r.PostForm
	bin := strings.TrimSpace(f.Get("bin"))
	item := strings.TrimSpace(f.Get("item"))

	if !inventory.IsBinID(bin) {
		h.renderContents(w, r, http.StatusUnprocessableEntity, action, f,
			fieldError("bin", errors.New("must be a BIN identifier followed by digits")))
		return
	}
	qty, err := parseQuantity(f.Get("quantity"))
	if err != nil {
		h.renderContents(w, r, http.StatusUnprocessableEntity, action, f, fieldError("quantity", err))
		return
	}

	ctx := r.Context()
	result, err := call(bin, item, qty)
	if err != nil {
		h.renderUnavailable(w, r, err)
		return
	}

	detail := fmt.Sprintf("%d %s", qty, item)
	if action == "move" {
		detail += " to " + strings.TrimSpace(f.Get("destination"))
	}
	if !result.OK() {
		if result.StatusCode != 0 {
			h.record(ctx, "bin."+action, bin, detail, result.Problem)
		}
		h.renderContents(w, r, problemStatus(result), action, f, problemError(result.Problem))
		return
	}

	h.record(ctx, "bin."+action, bin, detail, nil)
	h.notify(ctx, LevelSuccess, statusMessage(result.Value.Status, bin))
	http.Redirect(w, r, inventory.PagePath(bin), http.StatusSeeOther)
}

func (h *Handler) renderContents(w http.ResponseWriter, r *http.Request, status int, action string, form url.Values, formErr *FormError) {
	data := contentsView{
		PageData: h.newPageData(r, strings.ToUpper(action[:1])+action[1:]+" items"),
		Action:   action,
		Form:     form,
		Error:    formErr,
	}
	h.render(w, status, "contents", data)
}

// =============================================================================
// helpers
// =============================================================================

// problemStatus is the status a page showing a failed result is sent with.
// Problems found before sending carry no status and count as unprocessable.
func problemStatus[T any](res remote.Result[T]) int {
	if res.StatusCode >= 400 {
		return res.StatusCode
	}
	return http.StatusUnprocessableEntity
}

// statusMessage turns a mutation status such as "bin created" into a notice.
func statusMessage(status, id string) string {
	if status == "" {
		return "Done."
	}
	if id == "" {
		return strings.ToUpper(status[:1]) + status[1:] + "."
	}
	return fmt.Sprintf("%s: %s.", id, status)
}
