package inventory

import (
	"testing"
)

func strPtr(s string) *string { return &s }

func TestRequestValidation(t *testing.T) {
	codes := []string{"has space"}

	tests := []struct {
		name      string
		req       interface{ Validate() error }
		wantField string
	}{
		{"new bin ok", NewBin{ID: "BIN000001"}, ""},
		{"new bin missing id", NewBin{}, "id"},
		{"new bin wrong prefix", NewBin{ID: "SKU000001"}, "id"},
		{"new sku ok", NewSku{ID: "SKU000001", Name: "Widget", OwnedCodes: []string{"123"}}, ""},
		{"new sku no name", NewSku{ID: "SKU000001"}, "name"},
		{"new sku code with whitespace", NewSku{ID: "SKU000001", Name: "W", AssociatedCodes: []string{"a b"}}, "associated_codes"},
		{"new batch ok", NewBatch{ID: "BAT000001", SkuID: "SKU000001"}, ""},
		{"new batch bad sku", NewBatch{ID: "BAT000001", SkuID: "BIN000001"}, "sku_id"},
		{"sku patch ok", SkuPatch{Name: strPtr("renamed")}, ""},
		{"sku patch empty name", SkuPatch{Name: strPtr("")}, "name"},
		{"sku patch bad codes", SkuPatch{OwnedCodes: &codes}, "owned_codes"},
		{"batch patch bad sku", BatchPatch{SkuID: strPtr("BAT1")}, "sku_id"},
		{"receive ok", ContentsChange{ID: "SKU000001", Quantity: 5}, ""},
		{"release ok", ContentsChange{ID: "BAT000001", Quantity: -5}, ""},
		{"contents zero quantity", ContentsChange{ID: "SKU000001"}, "quantity"},
		{"contents bin item", ContentsChange{ID: "BIN000001", Quantity: 1}, "id"},
		{"move ok", MoveRequest{ID: "SKU000001", Destination: "BIN000002", Quantity: 1}, ""},
		{"move non-positive", MoveRequest{ID: "SKU000001", Destination: "BIN000002", Quantity: -1}, "quantity"},
		{"move bad destination", MoveRequest{ID: "SKU000001", Destination: "SKU000002", Quantity: 1}, "destination"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error on %s", tt.wantField)
			}
			found := false
			for _, fe := range FieldErrors(err) {
				if fe.Name == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("FieldErrors(%v) missing %s", err, tt.wantField)
			}
		})
	}
}

func TestPatchEmpty(t *testing.T) {
	if !(SkuPatch{}).Empty() {
		t.Error("zero SkuPatch should be empty")
	}
	if (SkuPatch{Name: strPtr("x")}).Empty() {
		t.Error("SkuPatch with name should not be empty")
	}
	if !(BatchPatch{}).Empty() {
		t.Error("zero BatchPatch should be empty")
	}
}

func TestFieldErrors_Nil(t *testing.T) {
	if got := FieldErrors(nil); got != nil {
		t.Errorf("FieldErrors(nil) = %v, want nil", got)
	}
}
