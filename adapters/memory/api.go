package memory

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/inventorius/inventorius-web/pkg/hypermedia"
	"github.com/rs/zerolog"
)

const recentLimit = 5

var expects = map[inventory.Kind]string{
	inventory.KindBin:   "Bin patch",
	inventory.KindSku:   "Sku patch",
	inventory.KindBatch: "Batch patch",
}

// API serves the inventory REST API from an Inventory.
type API struct {
	inv     *Inventory
	version string
	logger  zerolog.Logger
	router  http.Handler
}

// NewAPI creates the API handler.
func NewAPI(inv *Inventory, version string, logger zerolog.Logger) *API {
	a := &API{inv: inv, version: version, logger: logger}
	a.router = a.routes()
	return a
}

func (a *API) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(noCache)

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", a.handleVersion)
		r.Get("/status", a.handleStatus)
		r.Get("/stats", a.handleStats)
		r.Get("/search", a.handleSearch)
		r.Get("/next/{kind}", a.handleNext)

		r.Post("/bins", a.handleCreateBin)
		r.Get("/bin/{id}", a.handleGetBin)
		r.Patch("/bin/{id}", a.handleUpdateBin)
		r.Delete("/bin/{id}", a.handleDeleteBin)
		r.Post("/bin/{id}/contents", a.handleContents)
		r.Put("/bin/{id}/contents/move", a.handleMove)

		r.Post("/skus", a.handleCreateSku)
		r.Get("/sku/{id}", a.handleGetSku)
		r.Patch("/sku/{id}", a.handleUpdateSku)
		r.Delete("/sku/{id}", a.handleDeleteSku)
		r.Get("/sku/{id}/bins", a.handleSkuBins)
		r.Get("/sku/{id}/batches", a.handleSkuBatches)

		r.Post("/batches", a.handleCreateBatch)
		r.Get("/batch/{id}", a.handleGetBatch)
		r.Patch("/batch/{id}", a.handleUpdateBatch)
		r.Delete("/batch/{id}", a.handleDeleteBatch)
		r.Get("/batch/{id}/bins", a.handleBatchBins)
	})

	return r
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(a.version))
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	hypermedia.WriteEnvelope(w, http.StatusOK, "/api/version", inventory.ServiceStatus{Version: a.version, IsUp: true})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	hypermedia.WriteEnvelope(w, http.StatusOK, "/api/stats", a.inv.Stats(recentLimit))
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := inventory.SearchQuery{
		Query:        q.Get("query"),
		Limit:        intArg(q.Get("limit"), inventory.DefaultSearchLimit),
		StartingFrom: intArg(q.Get("startingFrom"), 0),
	}
	hypermedia.WriteEnvelope(w, http.StatusOK, "", a.inv.Search(query))
}

func (a *API) handleNext(w http.ResponseWriter, r *http.Request) {
	kind, err := inventory.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		hypermedia.WriteProblem(w, http.StatusNotFound, hypermedia.MissingResource(r.URL.Path))
		return
	}
	hypermedia.WriteEnvelope(w, http.StatusOK, inventory.NextPath(kind), a.inv.NextID(kind), createOp(kind))
}

// -----------------------------------------------------------------------------
// Bins
// -----------------------------------------------------------------------------

func (a *API) handleCreateBin(w http.ResponseWriter, r *http.Request) {
	var req inventory.NewBin
	if !decode(w, r, &req) || !valid(w, req.Validate()) {
		return
	}
	if err := a.inv.CreateBin(req); err != nil {
		a.writeError(w, err)
		return
	}
	writeStatus(w, http.StatusCreated, "/api/bin/"+req.ID, inventory.StatusBinCreated)
}

func (a *API) handleGetBin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := a.inv.Bin(id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	hypermedia.WriteEnvelope(w, http.StatusOK, "/api/bin/"+id, b, binOps(id)...)
}

func (a *API) handleUpdateBin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch inventory.BinPatch
	if !decode(w, r, &patch) || !valid(w, patch.Validate()) {
		return
	}
	if err := a.inv.UpdateBin(id, patch); err != nil {
		a.writeError(w, err)
		return
	}
	writeStatus(w, http.StatusOK, "/api/bin/"+id, inventory.StatusBinUpdated)
}

func (a *API) handleDeleteBin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	force := r.URL.Query().Get("force") == "true"
	if err := a.inv.DeleteBin(id, force); err != nil {
		a.writeError(w, err)
		return
	}
	writeStateStatus(w, http.StatusOK, "/api/bin/"+id, inventory.StatusBinDeleted)
}

func (a *API) handleContents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req inventory.ContentsChange
	if !decode(w, r, &req) || !valid(w, req.Validate()) {
		return
	}
	status, err := a.inv.ChangeContents(id, req.ID, req.Quantity)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeStateStatus(w, http.StatusCreated, "", status)
}

func (a *API) handleMove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req inventory.MoveRequest
	if !decode(w, r, &req) || !valid(w, req.Validate()) {
		return
	}
	if err := a.inv.Move(id, req); err != nil {
		a.writeError(w, err)
		return
	}
	writeStateStatus(w, http.StatusOK, "", inventory.StatusItemsMoved)
}

// -----------------------------------------------------------------------------
// SKUs
// -----------------------------------------------------------------------------

func (a *API) handleCreateSku(w http.ResponseWriter, r *http.Request) {
	var req inventory.NewSku
	if !decode(w, r, &req) || !valid(w, req.Validate()) {
		return
	}
	if err := a.inv.CreateSku(req); err != nil {
		a.writeError(w, err)
		return
	}
	writeStatus(w, http.StatusCreated, "/api/sku/"+req.ID, inventory.StatusSkuCreated)
}

func (a *API) handleGetSku(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := a.inv.Sku(id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	hypermedia.WriteEnvelope(w, http.StatusOK, "/api/sku/"+id, s, skuOps(id)...)
}

func (a *API) handleUpdateSku(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch inventory.SkuPatch
	if !decode(w, r, &patch) || !valid(w, patch.Validate()) {
		return
	}
	if err := a.inv.UpdateSku(id, patch); err != nil {
		a.writeError(w, err)
		return
	}
	writeStatus(w, http.StatusOK, "/api/sku/"+id, inventory.StatusSkuUpdated)
}

func (a *API) handleDeleteSku(w http.ResponseWriter, r *http.Request) {
	if err := a.inv.DeleteSku(chi.URLParam(r, "id")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSkuBins(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	locs, err := a.inv.SkuLocations(id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	hypermedia.WriteEnvelope(w, http.StatusOK, "/api/sku/"+id+"/bins", locs)
}

func (a *API) handleSkuBatches(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	batches, err := a.inv.SkuBatches(id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	hypermedia.WriteEnvelope(w, http.StatusOK, "/api/sku/"+id+"/batches", batches)
}

// -----------------------------------------------------------------------------
// Batches
// -----------------------------------------------------------------------------

func (a *API) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req inventory.NewBatch
	if !decode(w, r, &req) || !valid(w, req.Validate()) {
		return
	}
	if err := a.inv.CreateBatch(req); err != nil {
		a.writeError(w, err)
		return
	}
	writeStatus(w, http.StatusCreated, "/api/batch/"+req.ID, inventory.StatusBatchCreated)
}

func (a *API) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := a.inv.Batch(id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	hypermedia.WriteEnvelope(w, http.StatusOK, "/api/batch/"+id, b, batchOps(id)...)
}

func (a *API) handleUpdateBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch inventory.BatchPatch
	if !decode(w, r, &patch) || !valid(w, patch.Validate()) {
		return
	}
	if err := a.inv.UpdateBatch(id, patch); err != nil {
		a.writeError(w, err)
		return
	}
	writeStatus(w, http.StatusOK, "/api/batch/"+id, inventory.StatusBatchUpdated)
}

func (a *API) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.inv.DeleteBatch(id); err != nil {
		a.writeError(w, err)
		return
	}
	writeStatus(w, http.StatusOK, "/api/batch/"+id, inventory.StatusBatchDeleted)
}

func (a *API) handleBatchBins(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	locs, err := a.inv.BatchLocations(id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	hypermedia.WriteEnvelope(w, http.StatusOK, "/api/batch/"+id+"/bins", locs)
}

// -----------------------------------------------------------------------------
// Operations and responses
// -----------------------------------------------------------------------------

func createOp(kind inventory.Kind) hypermedia.Operation {
	return hypermedia.Operation{
		Rel:      hypermedia.RelCreate,
		Method:   http.MethodPost,
		Href:     inventory.CollectionPath(kind),
		ExpectsA: expects[kind],
	}
}

func binOps(id string) []hypermedia.Operation {
	path := "/api/bin/" + id
	return []hypermedia.Operation{
		{Rel: hypermedia.RelUpdate, Method: http.MethodPatch, Href: path, ExpectsA: expects[inventory.KindBin]},
		{Rel: hypermedia.RelDelete, Method: http.MethodDelete, Href: path},
	}
}

func skuOps(id string) []hypermedia.Operation {
	path := "/api/sku/" + id
	return []hypermedia.Operation{
		{Rel: hypermedia.RelUpdate, Method: http.MethodPatch, Href: path, ExpectsA: expects[inventory.KindSku]},
		{Rel: hypermedia.RelDelete, Method: http.MethodDelete, Href: path},
		{Rel: hypermedia.RelBins, Method: http.MethodGet, Href: path + "/bins"},
	}
}

func batchOps(id string) []hypermedia.Operation {
	path := "/api/batch/" + id
	return []hypermedia.Operation{
		{Rel: hypermedia.RelUpdate, Method: http.MethodPatch, Href: path, ExpectsA: expects[inventory.KindBatch]},
		{Rel: hypermedia.RelDelete, Method: http.MethodDelete, Href: path},
		{Rel: hypermedia.RelBins, Method: http.MethodGet, Href: path + "/bins"},
	}
}

func writeStatus(w http.ResponseWriter, code int, id, status string) {
	w.Header().Set("Content-Type", hypermedia.ContentTypeJSON)
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(inventory.Status{ID: id, Status: status})
}

func writeStateStatus(w http.ResponseWriter, code int, id, status string) {
	hypermedia.WriteEnvelope(w, code, id, map[string]string{"status": status})
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	var (
		missing      *MissingError
		insufficient *InsufficientError
	)
	switch {
	case errors.As(err, &missing):
		p := hypermedia.MissingResource(missing.ID)
		if kind, ok := inventory.KindOf(missing.ID); ok {
			p.ID = "/api/" + string(kind) + "/" + missing.ID
			p.Operations = []hypermedia.Operation{createOp(kind)}
		}
		hypermedia.WriteProblem(w, http.StatusNotFound, p)
	case errors.Is(err, ErrDuplicate):
		p := hypermedia.NewProblem(hypermedia.ProblemDuplicateResource, "Attempt to create resource that already exists.")
		p.InvalidParams = []hypermedia.InvalidParam{{Name: "id", Reason: "must not already exist"}}
		hypermedia.WriteProblem(w, http.StatusConflict, p)
	case errors.As(err, &insufficient):
		p := hypermedia.NewProblem(hypermedia.ProblemInsufficientQty, "Requested greater quantity than is available.")
		p.InvalidParams = []hypermedia.InvalidParam{{Name: "quantity", Reason: insufficient.Error()}}
		hypermedia.WriteProblem(w, http.StatusMethodNotAllowed, p)
	case errors.Is(err, ErrNotEmpty):
		p := hypermedia.NewProblem(hypermedia.ProblemDangerousOperation, "This operation requires force=true.")
		p.InvalidParams = []hypermedia.InvalidParam{
			{Name: "force", Reason: "force must be set to true, or invalid parameter id must be resolved"},
			{Name: "id", Reason: "bin must be empty"},
		}
		hypermedia.WriteProblem(w, http.StatusMethodNotAllowed, p)
	case errors.Is(err, ErrInUse):
		p := hypermedia.NewProblem(hypermedia.ProblemResourceInUse, "Can not delete a resource that is being used. Try releasing all instances of it.")
		p.InvalidParams = []hypermedia.InvalidParam{{Name: "id", Reason: "must be unused"}}
		hypermedia.WriteProblem(w, http.StatusForbidden, p)
	default:
		a.logger.Error().Err(err).Msg("inventory api error")
		hypermedia.WriteProblem(w, http.StatusInternalServerError, hypermedia.NewProblem(hypermedia.ProblemUnexpectedResponse, "Internal server error."))
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		hypermedia.WriteProblem(w, http.StatusBadRequest,
			hypermedia.Validation(hypermedia.InvalidParam{Name: "body", Reason: "must be a JSON object"}))
		return false
	}
	return true
}

func valid(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}
	fields := inventory.FieldErrors(err)
	params := make([]hypermedia.InvalidParam, 0, len(fields))
	for _, f := range fields {
		params = append(params, hypermedia.InvalidParam{Name: f.Name, Reason: f.Reason})
	}
	hypermedia.WriteProblem(w, http.StatusBadRequest, hypermedia.Validation(params...))
	return false
}

func intArg(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
