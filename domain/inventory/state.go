package inventory

import (
	"sort"
)

// Props holds free-form user properties attached to a resource.
type Props map[string]any

// Keys returns the property names in sorted order.
func (p Props) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BinState is the server representation of a bin.
type BinState struct {
	ID       string         `json:"id" mapstructure:"id"`
	Contents map[string]int `json:"contents" mapstructure:"contents"`
	Props    Props          `json:"props,omitempty" mapstructure:"props"`
}

// Items returns the bin contents sorted by item identifier.
func (b BinState) Items() []ItemQuantity {
	items := make([]ItemQuantity, 0, len(b.Contents))
	for id, qty := range b.Contents {
		items = append(items, ItemQuantity{ItemID: id, Quantity: qty})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })
	return items
}

// Quantity returns how many units of itemID the bin holds.
func (b BinState) Quantity(itemID string) int {
	return b.Contents[itemID]
}

// ItemQuantity pairs an item with a count.
type ItemQuantity struct {
	ItemID   string
	Quantity int
}

// SkuState is the server representation of a stock keeping unit.
type SkuState struct {
	ID              string   `json:"id" mapstructure:"id"`
	OwnedCodes      []string `json:"owned_codes" mapstructure:"owned_codes"`
	AssociatedCodes []string `json:"associated_codes" mapstructure:"associated_codes"`
	Name            string   `json:"name,omitempty" mapstructure:"name"`
	Props           Props    `json:"props,omitempty" mapstructure:"props"`
}

// BatchState is the server representation of a batch of a SKU.
type BatchState struct {
	ID              string   `json:"id" mapstructure:"id"`
	SkuID           string   `json:"sku_id,omitempty" mapstructure:"sku_id"`
	Name            string   `json:"name,omitempty" mapstructure:"name"`
	OwnedCodes      []string `json:"owned_codes" mapstructure:"owned_codes"`
	AssociatedCodes []string `json:"associated_codes" mapstructure:"associated_codes"`
	Props           Props    `json:"props,omitempty" mapstructure:"props"`
}

// Locations maps bin id to the quantities of items held there.
// It is the state of /api/sku/{id}/bins and /api/batch/{id}/bins.
type Locations map[string]map[string]int

// Bins returns the bin identifiers in sorted order.
func (l Locations) Bins() []string {
	bins := make([]string, 0, len(l))
	for id := range l {
		bins = append(bins, id)
	}
	sort.Strings(bins)
	return bins
}

// Total returns the number of units of itemID across all bins.
func (l Locations) Total(itemID string) int {
	total := 0
	for _, contents := range l {
		total += contents[itemID]
	}
	return total
}

// SkuBatches lists the batch identifiers belonging to a SKU.
type SkuBatches []string

// Status messages returned by mutations.
const (
	StatusBinCreated    = "bin created"
	StatusBinUpdated    = "bin updated"
	StatusBinDeleted    = "bin deleted"
	StatusSkuCreated    = "sku created"
	StatusSkuUpdated    = "sku updated"
	StatusSkuDeleted    = "sku deleted"
	StatusBatchCreated  = "batch created"
	StatusBatchUpdated  = "batch updated"
	StatusBatchDeleted  = "batch deleted"
	StatusItemsMoved    = "items moved"
	StatusItemsReceived = "items received"
	StatusItemsReleased = "items released"
	StatusNoChange      = "no change"
)

// Status is the body returned by successful mutations.
type Status struct {
	ID     string `json:"Id,omitempty"`
	Status string `json:"status"`
}

// ServiceStatus is the state of /api/status.
type ServiceStatus struct {
	Version string `json:"version"`
	IsUp    bool   `json:"is-up"`
}

// Stats is the state of /api/stats.
type Stats struct {
	Counts     Counts      `json:"counts"`
	RecentBins []RecentBin `json:"recent_bins"`
	RecentSkus []RecentSku `json:"recent_skus"`
}

// Counts holds resource totals.
type Counts struct {
	Bins    int `json:"bins"`
	Skus    int `json:"skus"`
	Batches int `json:"batches"`
}

// RecentBin is a recently created bin.
type RecentBin struct {
	ID    string `json:"id"`
	Props Props  `json:"props,omitempty"`
}

// RecentSku is a recently created SKU.
type RecentSku struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
