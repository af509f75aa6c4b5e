// Package memory provides an in-memory inventory and an HTTP handler serving
// the inventory API from it, for demo mode and tests.
package memory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/inventorius/inventorius-web/domain/inventory"
)

// Store errors.
var (
	ErrNotFound             = errors.New("resource does not exist")
	ErrDuplicate            = errors.New("resource already exists")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrNotEmpty             = errors.New("bin is not empty")
	ErrInUse                = errors.New("resource is in use")
)

// MissingError reports which resource was not found.
type MissingError struct {
	ID string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNotFound, e.ID)
}

// Is lets errors.Is match ErrNotFound.
func (e *MissingError) Is(target error) bool {
	return target == ErrNotFound
}

// InsufficientError reports a release or move larger than the bin holds.
type InsufficientError struct {
	Available int
	Requested int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("%s: requested %d, but only %d is available", ErrInsufficientQuantity, e.Requested, e.Available)
}

// Is lets errors.Is match ErrInsufficientQuantity.
func (e *InsufficientError) Is(target error) bool {
	return target == ErrInsufficientQuantity
}

const idWidth = 6

// Inventory is a thread-safe in-memory inventory.
type Inventory struct {
	mu      sync.RWMutex
	bins    map[string]inventory.BinState
	skus    map[string]inventory.SkuState
	batches map[string]inventory.BatchState
	// created lists identifiers of each kind in creation order.
	created map[inventory.Kind][]string
	// used holds the highest number ever used per kind; numbers are never reused.
	used map[inventory.Kind]uint64
}

// NewInventory creates an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{
		bins:    make(map[string]inventory.BinState),
		skus:    make(map[string]inventory.SkuState),
		batches: make(map[string]inventory.BatchState),
		created: make(map[inventory.Kind][]string),
		used:    make(map[inventory.Kind]uint64),
	}
}

// NextID returns the next identifier of kind that was never used.
func (inv *Inventory) NextID(kind inventory.Kind) string {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inventory.FormatID(kind, inv.used[kind]+1, idWidth)
}

func (inv *Inventory) markUsed(id string) {
	parsed, err := inventory.ParseID(id)
	if err != nil {
		return
	}
	n, err := parsed.Number()
	if err != nil {
		return
	}
	if n > inv.used[parsed.Kind] {
		inv.used[parsed.Kind] = n
	}
	inv.created[parsed.Kind] = append(inv.created[parsed.Kind], id)
}

// -----------------------------------------------------------------------------
// Bins
// -----------------------------------------------------------------------------

// CreateBin stores a new bin.
func (inv *Inventory) CreateBin(req inventory.NewBin) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, ok := inv.bins[req.ID]; ok {
		return ErrDuplicate
	}
	inv.bins[req.ID] = inventory.BinState{ID: req.ID, Contents: map[string]int{}, Props: copyProps(req.Props)}
	inv.markUsed(req.ID)
	return nil
}

// Bin returns a copy of a bin.
func (inv *Inventory) Bin(id string) (inventory.BinState, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	b, ok := inv.bins[id]
	if !ok {
		return inventory.BinState{}, &MissingError{ID: id}
	}
	return cloneBin(b), nil
}

// UpdateBin replaces the properties of a bin.
func (inv *Inventory) UpdateBin(id string, patch inventory.BinPatch) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	b, ok := inv.bins[id]
	if !ok {
		return &MissingError{ID: id}
	}
	if patch.Props != nil {
		b.Props = copyProps(patch.Props)
	}
	inv.bins[id] = b
	return nil
}

// DeleteBin removes a bin. A bin with contents is only removed when force is set.
func (inv *Inventory) DeleteBin(id string, force bool) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	b, ok := inv.bins[id]
	if !ok {
		return &MissingError{ID: id}
	}
	if len(b.Contents) > 0 && !force {
		return ErrNotEmpty
	}
	delete(inv.bins, id)
	return nil
}

// ChangeContents adds quantity units of itemID to a bin, or removes them when
// quantity is negative. It returns the resulting status message.
func (inv *Inventory) ChangeContents(binID, itemID string, quantity int) (string, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	b, ok := inv.bins[binID]
	if !ok {
		return "", &MissingError{ID: binID}
	}
	if !inv.itemExists(itemID) {
		return "", &MissingError{ID: itemID}
	}
	have := b.Contents[itemID]
	if have+quantity < 0 {
		return "", &InsufficientError{Available: have, Requested: -quantity}
	}
	setQuantity(b.Contents, itemID, have+quantity)

	switch {
	case quantity > 0:
		return inventory.StatusItemsReceived, nil
	case quantity < 0:
		return inventory.StatusItemsReleased, nil
	}
	return inventory.StatusNoChange, nil
}

// Move transfers units of an item between bins.
func (inv *Inventory) Move(fromBinID string, req inventory.MoveRequest) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	from, ok := inv.bins[fromBinID]
	if !ok {
		return &MissingError{ID: fromBinID}
	}
	to, ok := inv.bins[req.Destination]
	if !ok {
		return &MissingError{ID: req.Destination}
	}
	if !inv.itemExists(req.ID) {
		return &MissingError{ID: req.ID}
	}
	have := from.Contents[req.ID]
	if have < req.Quantity {
		return &InsufficientError{Available: have, Requested: req.Quantity}
	}
	setQuantity(from.Contents, req.ID, have-req.Quantity)
	setQuantity(to.Contents, req.ID, to.Contents[req.ID]+req.Quantity)
	return nil
}

// -----------------------------------------------------------------------------
// SKUs
// -----------------------------------------------------------------------------

// CreateSku stores a new SKU.
func (inv *Inventory) CreateSku(req inventory.NewSku) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, ok := inv.skus[req.ID]; ok {
		return ErrDuplicate
	}
	inv.skus[req.ID] = inventory.SkuState{
		ID:              req.ID,
		Name:            req.Name,
		OwnedCodes:      copyCodes(req.OwnedCodes),
		AssociatedCodes: copyCodes(req.AssociatedCodes),
		Props:           copyProps(req.Props),
	}
	inv.markUsed(req.ID)
	return nil
}

// Sku returns a copy of a SKU.
func (inv *Inventory) Sku(id string) (inventory.SkuState, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	s, ok := inv.skus[id]
	if !ok {
		return inventory.SkuState{}, &MissingError{ID: id}
	}
	return cloneSku(s), nil
}

// UpdateSku applies the non-nil fields of patch.
func (inv *Inventory) UpdateSku(id string, patch inventory.SkuPatch) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	s, ok := inv.skus[id]
	if !ok {
		return &MissingError{ID: id}
	}
	if patch.Name != nil {
		s.Name = *patch.Name
	}
	if patch.OwnedCodes != nil {
		s.OwnedCodes = copyCodes(*patch.OwnedCodes)
	}
	if patch.AssociatedCodes != nil {
		s.AssociatedCodes = copyCodes(*patch.AssociatedCodes)
	}
	if patch.Props != nil {
		s.Props = copyProps(*patch.Props)
	}
	inv.skus[id] = s
	return nil
}

// DeleteSku removes a SKU that no bin holds.
func (inv *Inventory) DeleteSku(id string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, ok := inv.skus[id]; !ok {
		return &MissingError{ID: id}
	}
	if len(inv.locations(id)) > 0 {
		return ErrInUse
	}
	delete(inv.skus, id)
	return nil
}

// SkuLocations returns the bins holding a SKU.
func (inv *Inventory) SkuLocations(id string) (inventory.Locations, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	if _, ok := inv.skus[id]; !ok {
		return nil, &MissingError{ID: id}
	}
	return inv.locations(id), nil
}

// SkuBatches returns the identifiers of a SKU's batches.
func (inv *Inventory) SkuBatches(id string) (inventory.SkuBatches, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	if _, ok := inv.skus[id]; !ok {
		return nil, &MissingError{ID: id}
	}
	out := inventory.SkuBatches{}
	for _, b := range inv.batches {
		if b.SkuID == id {
			out = append(out, b.ID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// -----------------------------------------------------------------------------
// Batches
// -----------------------------------------------------------------------------

// CreateBatch stores a new batch. A batch naming a SKU requires it to exist.
func (inv *Inventory) CreateBatch(req inventory.NewBatch) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, ok := inv.batches[req.ID]; ok {
		return ErrDuplicate
	}
	if req.SkuID != "" {
		if _, ok := inv.skus[req.SkuID]; !ok {
			return &MissingError{ID: req.SkuID}
		}
	}
	inv.batches[req.ID] = inventory.BatchState{
		ID:              req.ID,
		SkuID:           req.SkuID,
		Name:            req.Name,
		OwnedCodes:      copyCodes(req.OwnedCodes),
		AssociatedCodes: copyCodes(req.AssociatedCodes),
		Props:           copyProps(req.Props),
	}
	inv.markUsed(req.ID)
	return nil
}

// Batch returns a copy of a batch.
func (inv *Inventory) Batch(id string) (inventory.BatchState, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	b, ok := inv.batches[id]
	if !ok {
		return inventory.BatchState{}, &MissingError{ID: id}
	}
	return cloneBatch(b), nil
}

// UpdateBatch applies the non-nil fields of patch.
func (inv *Inventory) UpdateBatch(id string, patch inventory.BatchPatch) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	b, ok := inv.batches[id]
	if !ok {
		return &MissingError{ID: id}
	}
	if patch.SkuID != nil {
		if *patch.SkuID != "" {
			if _, ok := inv.skus[*patch.SkuID]; !ok {
				return &MissingError{ID: *patch.SkuID}
			}
		}
		b.SkuID = *patch.SkuID
	}
	if patch.Name != nil {
		b.Name = *patch.Name
	}
	if patch.OwnedCodes != nil {
		b.OwnedCodes = copyCodes(*patch.OwnedCodes)
	}
	if patch.AssociatedCodes != nil {
		b.AssociatedCodes = copyCodes(*patch.AssociatedCodes)
	}
	if patch.Props != nil {
		b.Props = copyProps(*patch.Props)
	}
	inv.batches[id] = b
	return nil
}

// DeleteBatch removes a batch that no bin holds.
func (inv *Inventory) DeleteBatch(id string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, ok := inv.batches[id]; !ok {
		return &MissingError{ID: id}
	}
	if len(inv.locations(id)) > 0 {
		return ErrInUse
	}
	delete(inv.batches, id)
	return nil
}

// BatchLocations returns the bins holding a batch.
func (inv *Inventory) BatchLocations(id string) (inventory.Locations, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	if _, ok := inv.batches[id]; !ok {
		return nil, &MissingError{ID: id}
	}
	return inv.locations(id), nil
}

// -----------------------------------------------------------------------------
// Search and stats
// -----------------------------------------------------------------------------

// Search returns one page of resources matching q. Queries of the form
// !ALL, !BINS, !SKUS and !BATCHES list everything of that kind. Otherwise
// resources match by identifier, owned or associated code, or a word of
// their name. Each resource appears at most once.
func (inv *Inventory) Search(q inventory.SearchQuery) inventory.SearchState {
	q = q.Normalize()

	inv.mu.RLock()
	defer inv.mu.RUnlock()

	var results []inventory.SearchResult
	seen := make(map[string]bool)
	add := func(r inventory.SearchResult) {
		if !seen[r.ID()] {
			seen[r.ID()] = true
			results = append(results, r)
		}
	}

	switch q.Query {
	case "!ALL", "!SKUS":
		for _, id := range inv.sortedIDs(inventory.KindSku) {
			add(skuResult(inv.skus[id]))
		}
		if q.Query == "!SKUS" {
			break
		}
		fallthrough
	case "!BATCHES":
		for _, id := range inv.sortedIDs(inventory.KindBatch) {
			add(batchResult(inv.batches[id]))
		}
		if q.Query == "!BATCHES" {
			break
		}
		fallthrough
	case "!BINS":
		for _, id := range inv.sortedIDs(inventory.KindBin) {
			add(binResult(inv.bins[id]))
		}
	}

	if b, ok := inv.bins[q.Query]; ok {
		add(binResult(b))
	}
	if s, ok := inv.skus[q.Query]; ok {
		add(skuResult(s))
	}
	if b, ok := inv.batches[q.Query]; ok {
		add(batchResult(b))
	}
	for _, id := range inv.sortedIDs(inventory.KindSku) {
		s := inv.skus[id]
		if containsCode(s.OwnedCodes, q.Query) || containsCode(s.AssociatedCodes, q.Query) || nameMatches(s.Name, q.Query) {
			add(skuResult(s))
		}
	}
	for _, id := range inv.sortedIDs(inventory.KindBatch) {
		b := inv.batches[id]
		if containsCode(b.OwnedCodes, q.Query) || containsCode(b.AssociatedCodes, q.Query) || nameMatches(b.Name, q.Query) {
			add(batchResult(b))
		}
	}

	state := inventory.SearchState{
		TotalNumResults: len(results),
		StartingFrom:    q.StartingFrom,
		Limit:           q.Limit,
		Results:         []inventory.SearchResult{},
	}
	if q.StartingFrom < len(results) {
		end := q.StartingFrom + q.Limit
		if end > len(results) {
			end = len(results)
		}
		state.Results = results[q.StartingFrom:end]
	}
	state.ReturnedNumResults = len(state.Results)
	return state
}

// Stats returns resource counts and the most recently created bins and SKUs.
func (inv *Inventory) Stats(recent int) inventory.Stats {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	stats := inventory.Stats{
		Counts: inventory.Counts{
			Bins:    len(inv.bins),
			Skus:    len(inv.skus),
			Batches: len(inv.batches),
		},
		RecentBins: []inventory.RecentBin{},
		RecentSkus: []inventory.RecentSku{},
	}
	bins := inv.created[inventory.KindBin]
	for i := len(bins) - 1; i >= 0 && len(stats.RecentBins) < recent; i-- {
		if b, ok := inv.bins[bins[i]]; ok {
			stats.RecentBins = append(stats.RecentBins, inventory.RecentBin{ID: b.ID, Props: copyProps(b.Props)})
		}
	}
	skus := inv.created[inventory.KindSku]
	for i := len(skus) - 1; i >= 0 && len(stats.RecentSkus) < recent; i-- {
		if s, ok := inv.skus[skus[i]]; ok {
			stats.RecentSkus = append(stats.RecentSkus, inventory.RecentSku{ID: s.ID, Name: s.Name})
		}
	}
	return stats
}

// -----------------------------------------------------------------------------
// helpers (callers hold the lock)
// -----------------------------------------------------------------------------

func (inv *Inventory) itemExists(id string) bool {
	if _, ok := inv.skus[id]; ok {
		return true
	}
	_, ok := inv.batches[id]
	return ok
}

func (inv *Inventory) locations(itemID string) inventory.Locations {
	out := inventory.Locations{}
	for id, b := range inv.bins {
		if qty, ok := b.Contents[itemID]; ok {
			out[id] = map[string]int{itemID: qty}
		}
	}
	return out
}

func (inv *Inventory) sortedIDs(kind inventory.Kind) []string {
	var ids []string
	switch kind {
	case inventory.KindBin:
		for id := range inv.bins {
			ids = append(ids, id)
		}
	case inventory.KindSku:
		for id := range inv.skus {
			ids = append(ids, id)
		}
	case inventory.KindBatch:
		for id := range inv.batches {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func setQuantity(contents map[string]int, itemID string, qty int) {
	if qty == 0 {
		delete(contents, itemID)
		return
	}
	contents[itemID] = qty
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func nameMatches(name, query string) bool {
	if name == "" || query == "" {
		return false
	}
	query = strings.ToLower(query)
	for _, word := range strings.Fields(strings.ToLower(name)) {
		if word == query {
			return true
		}
	}
	return false
}

func binResult(b inventory.BinState) inventory.SearchResult {
	b = cloneBin(b)
	return inventory.SearchResult{Kind: inventory.KindBin, Bin: &b}
}

func skuResult(s inventory.SkuState) inventory.SearchResult {
	s = cloneSku(s)
	return inventory.SearchResult{Kind: inventory.KindSku, Sku: &s}
}

func batchResult(b inventory.BatchState) inventory.SearchResult {
	b = cloneBatch(b)
	return inventory.SearchResult{Kind: inventory.KindBatch, Batch: &b}
}

func cloneBin(b inventory.BinState) inventory.BinState {
	contents := make(map[string]int, len(b.Contents))
	for k, v := range b.Contents {
		contents[k] = v
	}
	b.Contents = contents
	b.Props = copyProps(b.Props)
	return b
}

func cloneSku(s inventory.SkuState) inventory.SkuState {
	s.OwnedCodes = copyCodes(s.OwnedCodes)
	s.AssociatedCodes = copyCodes(s.AssociatedCodes)
	s.Props = copyProps(s.Props)
	return s
}

func cloneBatch(b inventory.BatchState) inventory.BatchState {
	b.OwnedCodes = copyCodes(b.OwnedCodes)
	b.AssociatedCodes = copyCodes(b.AssociatedCodes)
	b.Props = copyProps(b.Props)
	return b
}

func copyCodes(codes []string) []string {
	out := make([]string, len(codes))
	copy(out, codes)
	return out
}

func copyProps(p inventory.Props) inventory.Props {
	if p == nil {
		return nil
	}
	out := make(inventory.Props, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
