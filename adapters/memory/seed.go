package memory

import (
	"github.com/hashicorp/go-multierror"
	"github.com/inventorius/inventorius-web/domain/inventory"
)

// Seed fills inv with a small sample inventory for demo mode. Every step is
// attempted; the returned error collects whatever failed.
func Seed(inv *Inventory) error {
	var result *multierror.Error
	add := func(err error) {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	add(inv.CreateBin(inventory.NewBin{ID: "BIN000001", Props: inventory.Props{"location": "Shelf A"}}))
	add(inv.CreateBin(inventory.NewBin{ID: "BIN000002", Props: inventory.Props{"location": "Shelf B"}}))
	add(inv.CreateBin(inventory.NewBin{ID: "BIN000003"}))

	add(inv.CreateSku(inventory.NewSku{
		ID:         "SKU000001",
		Name:       "M3 hex bolt, 10mm",
		OwnedCodes: []string{"400000000017"},
		Props:      inventory.Props{"material": "steel"},
	}))
	add(inv.CreateSku(inventory.NewSku{
		ID:              "SKU000002",
		Name:            "M3 hex nut",
		OwnedCodes:      []string{"400000000024"},
		AssociatedCodes: []string{"NUT-M3"},
	}))
	add(inv.CreateBatch(inventory.NewBatch{
		ID:    "BAT000001",
		SkuID: "SKU000001",
		Name:  "Spring order",
	}))

	for _, c := range []struct {
		bin  string
		item string
		qty  int
	}{
		{"BIN000001", "SKU000001", 120},
		{"BIN000001", "SKU000002", 200},
		{"BIN000002", "BAT000001", 40},
	} {
		_, err := inv.ChangeContents(c.bin, c.item, c.qty)
		add(err)
	}

	return result.ErrorOrNil()
}
