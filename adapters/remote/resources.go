package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/inventorius/inventorius-web/pkg/hypermedia"
)

// Resource is a server resource bound to a client. Every wrapper returned by
// Client implements it.
type Resource interface {
	Kind() Kind
	ID() string
	Operations() hypermedia.Operations
	Snapshot() Snapshot

	boundTo() *Client
	rebind(c *Client) Resource
}

// resource holds what every wrapper shares: the envelope id and the
// operations the server declared, bound to the client's host.
type resource struct {
	c   *Client
	id  string
	ops hypermedia.Operations
}

func newResource(c *Client, id string, ops []hypermedia.Operation) resource {
	return resource{c: c, id: id, ops: hypermedia.NewOperations(ops, c.hostname, c.httpClient)}
}

// ID returns the envelope identifier.
func (r resource) ID() string { return r.id }

// Operations returns the declared operations.
func (r resource) Operations() hypermedia.Operations { return r.ops }

// Can reports whether the server declared the operation rel.
func (r resource) Can(rel string) bool { return r.ops.Has(rel) }

func (r resource) boundTo() *Client { return r.c }

func (r resource) rebound(c *Client) resource {
	return resource{c: c, id: r.id, ops: r.ops.Rebind(c.hostname, c.httpClient)}
}

// opOr returns the declared operation rel, or a fixed-path fallback when the
// server did not declare it.
func (r resource) opOr(rel, method, path string) hypermedia.Callable {
	if op, ok := r.ops[rel]; ok {
		return op
	}
	return r.c.callable(rel, method, path)
}

func (r resource) snapshot(kind Kind, state any) Snapshot {
	data, err := json.Marshal(state)
	if err != nil {
		data = nil
	}
	return Snapshot{Kind: kind, ID: r.id, State: data, Operations: r.ops.Descriptors()}
}

// =============================================================================
// Bin
// =============================================================================

// Bin is a storage location holding quantities of SKUs and batches.
type Bin struct {
	resource
	State inventory.BinState
}

func newBin(c *Client, env hypermedia.Envelope) (*Bin, error) {
	var state inventory.BinState
	if err := env.DecodeState(&state); err != nil {
		return nil, fmt.Errorf("bin state: %w", err)
	}
	return bindBin(c, env.ID, env.Operations, state), nil
}

func bindBin(c *Client, id string, ops []hypermedia.Operation, state inventory.BinState) *Bin {
	if state.Contents == nil {
		state.Contents = map[string]int{}
	}
	return &Bin{resource: newResource(c, id, ops), State: state}
}

// Kind returns KindBin.
func (b *Bin) Kind() Kind { return KindBin }

// Snapshot returns the serializable form of the bin.
func (b *Bin) Snapshot() Snapshot { return b.snapshot(KindBin, b.State) }

func (b *Bin) rebind(c *Client) Resource {
	cp := *b
	cp.resource = b.rebound(c)
	return &cp
}

// Update sends the declared update operation.
func (b *Bin) Update(ctx context.Context, patch inventory.BinPatch) (*http.Response, error) {
	return b.ops.Perform(ctx, hypermedia.RelUpdate, hypermedia.JSONBody(patch))
}

// Delete sends the declared delete operation.
func (b *Bin) Delete(ctx context.Context) (*http.Response, error) {
	return b.ops.Perform(ctx, hypermedia.RelDelete, hypermedia.NoBody())
}

// Receive adds quantity units of itemID to the bin.
func (b *Bin) Receive(ctx context.Context, itemID string, quantity int) (Result[inventory.Status], error) {
	if quantity < 1 {
		return nonPositive(b.c), nil
	}
	op := b.opOr(hypermedia.RelReceive, http.MethodPost, b.contentsPath())
	return b.c.changeContents(ctx, op, inventory.ContentsChange{ID: itemID, Quantity: quantity})
}

// Release removes quantity units of itemID from the bin.
func (b *Bin) Release(ctx context.Context, itemID string, quantity int) (Result[inventory.Status], error) {
	if quantity < 1 {
		return nonPositive(b.c), nil
	}
	op := b.opOr(hypermedia.RelRelease, http.MethodPost, b.contentsPath())
	return b.c.changeContents(ctx, op, inventory.ContentsChange{ID: itemID, Quantity: -quantity})
}

// Move transfers units of an item held by this bin to another bin.
func (b *Bin) Move(ctx context.Context, req inventory.MoveRequest) (Result[inventory.Status], error) {
	op := b.opOr(hypermedia.RelMove, http.MethodPut, b.contentsPath()+"/move")
	return b.c.move(ctx, op, req)
}

// Refresh fetches the current state of the bin.
func (b *Bin) Refresh(ctx context.Context) (Result[*Bin], error) {
	return b.c.GetBin(ctx, b.State.ID)
}

func (b *Bin) contentsPath() string {
	return "/api/bin/" + url.PathEscape(b.State.ID) + "/contents"
}

// =============================================================================
// Sku
// =============================================================================

// Sku is a stock keeping unit.
type Sku struct {
	resource
	State inventory.SkuState
}

func newSku(c *Client, env hypermedia.Envelope) (*Sku, error) {
	var state inventory.SkuState
	if err := env.DecodeState(&state); err != nil {
		return nil, fmt.Errorf("sku state: %w", err)
	}
	return bindSku(c, env.ID, env.Operations, state), nil
}

func bindSku(c *Client, id string, ops []hypermedia.Operation, state inventory.SkuState) *Sku {
	return &Sku{resource: newResource(c, id, ops), State: state}
}

// Kind returns KindSku.
func (s *Sku) Kind() Kind { return KindSku }

// Snapshot returns the serializable form of the SKU.
func (s *Sku) Snapshot() Snapshot { return s.snapshot(KindSku, s.State) }

func (s *Sku) rebind(c *Client) Resource {
	cp := *s
	cp.resource = s.rebound(c)
	return &cp
}

// Update sends the declared update operation.
func (s *Sku) Update(ctx context.Context, patch inventory.SkuPatch) (*http.Response, error) {
	return s.ops.Perform(ctx, hypermedia.RelUpdate, hypermedia.JSONBody(patch))
}

// Delete sends the declared delete operation.
func (s *Sku) Delete(ctx context.Context) (*http.Response, error) {
	return s.ops.Perform(ctx, hypermedia.RelDelete, hypermedia.NoBody())
}

// Bins fetches where units of the SKU are stored.
func (s *Sku) Bins(ctx context.Context) (Result[inventory.Locations], error) {
	op := s.opOr(hypermedia.RelBins, http.MethodGet, "/api/sku/"+url.PathEscape(s.State.ID)+"/bins")
	return fetchState[inventory.Locations](ctx, s.c, op, KindSkuLocations)
}

// Batches fetches the batches of the SKU.
func (s *Sku) Batches(ctx context.Context) (Result[inventory.SkuBatches], error) {
	op := s.opOr(hypermedia.RelBatches, http.MethodGet, "/api/sku/"+url.PathEscape(s.State.ID)+"/batches")
	return fetchState[inventory.SkuBatches](ctx, s.c, op, KindSkuBatches)
}

// Refresh fetches the current state of the SKU.
func (s *Sku) Refresh(ctx context.Context) (Result[*Sku], error) {
	return s.c.GetSku(ctx, s.State.ID)
}

// =============================================================================
// Batch
// =============================================================================

// Batch is a lot of a SKU, possibly anonymous.
type Batch struct {
	resource
	State inventory.BatchState
}

func newBatch(c *Client, env hypermedia.Envelope) (*Batch, error) {
	var state inventory.BatchState
	if err := env.DecodeState(&state); err != nil {
		return nil, fmt.Errorf("batch state: %w", err)
	}
	return bindBatch(c, env.ID, env.Operations, state), nil
}

func bindBatch(c *Client, id string, ops []hypermedia.Operation, state inventory.BatchState) *Batch {
	return &Batch{resource: newResource(c, id, ops), State: state}
}

// Kind returns KindBatch.
func (b *Batch) Kind() Kind { return KindBatch }

// Snapshot returns the serializable form of the batch.
func (b *Batch) Snapshot() Snapshot { return b.snapshot(KindBatch, b.State) }

func (b *Batch) rebind(c *Client) Resource {
	cp := *b
	cp.resource = b.rebound(c)
	return &cp
}

// Update sends the declared update operation.
func (b *Batch) Update(ctx context.Context, patch inventory.BatchPatch) (*http.Response, error) {
	return b.ops.Perform(ctx, hypermedia.RelUpdate, hypermedia.JSONBody(patch))
}

// Delete sends the declared delete operation.
func (b *Batch) Delete(ctx context.Context) (*http.Response, error) {
	return b.ops.Perform(ctx, hypermedia.RelDelete, hypermedia.NoBody())
}

// Bins fetches where units of the batch are stored.
func (b *Batch) Bins(ctx context.Context) (Result[inventory.Locations], error) {
	op := b.opOr(hypermedia.RelBins, http.MethodGet, "/api/batch/"+url.PathEscape(b.State.ID)+"/bins")
	return fetchState[inventory.Locations](ctx, b.c, op, KindBatchLocations)
}

// Refresh fetches the current state of the batch.
func (b *Batch) Refresh(ctx context.Context) (Result[*Batch], error) {
	return b.c.GetBatch(ctx, b.State.ID)
}

// =============================================================================
// Next identifiers
// =============================================================================

// Next is a server-suggested identifier for a resource that does not exist yet.
type Next struct {
	resource
	Of    inventory.Kind
	State string
}

func newNext(c *Client, of inventory.Kind, env hypermedia.Envelope) (*Next, error) {
	var id string
	if err := env.DecodeState(&id); err != nil {
		return nil, fmt.Errorf("next %s state: %w", of, err)
	}
	return &Next{resource: newResource(c, env.ID, env.Operations), Of: of, State: id}, nil
}

// Kind returns the next-bin, next-sku or next-batch kind.
func (n *Next) Kind() Kind { return nextKind(n.Of) }

// Snapshot returns the serializable form of the suggestion.
func (n *Next) Snapshot() Snapshot { return n.snapshot(n.Kind(), n.State) }

func (n *Next) rebind(c *Client) Resource {
	cp := *n
	cp.resource = n.rebound(c)
	return &cp
}

// Create posts {"id": State} through the declared create operation, or to
// the collection when none was declared.
func (n *Next) Create(ctx context.Context) (*http.Response, error) {
	op := n.opOr(hypermedia.RelCreate, http.MethodPost, inventory.CollectionPath(n.Of))
	return op.Perform(ctx, hypermedia.JSONBody(map[string]string{"id": n.State}))
}

// =============================================================================
// helpers
// =============================================================================

func fetchState[T any](ctx context.Context, c *Client, op hypermedia.Callable, kind Kind) (Result[T], error) {
	resp, err := op.Perform(ctx, hypermedia.NoBody())
	if err != nil {
		return Result[T]{}, err
	}
	return decodeEnvelope(c, resp, kind, func(env hypermedia.Envelope) (T, error) {
		var v T
		err := env.DecodeState(&v)
		return v, err
	})
}
