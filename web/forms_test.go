package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/inventorius/inventorius-web/domain/inventory"
)

func postedForm(t *testing.T, form url.Values) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := parseForm(httptest.NewRecorder(), r); err != nil {
		t.Fatalf("parseForm: %v", err)
	}
	return r
}

func TestParseCodes(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"a", []string{"a"}},
		{"a, b c\nd", []string{"a", "b", "c", "d"}},
		{"a,a, b", []string{"a", "b"}},
		{" ,, ", []string{}},
	}

	for _, tt := range tests {
		got := parseCodes(tt.in)
		if !sameCodes(got, tt.want) {
			t.Errorf("parseCodes(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseProps(t *testing.T) {
	props, err := parseProps("  ")
	if err != nil || props != nil {
		t.Errorf("blank props = %v, %v", props, err)
	}

	props, err = parseProps(`{"color": "red", "weight": 3}`)
	if err != nil {
		t.Fatalf("parseProps() error = %v", err)
	}
	if props["color"] != "red" || props["weight"] != float64(3) {
		t.Errorf("props = %v", props)
	}

	if _, err := parseProps(`"just a string"`); err == nil {
		t.Error("expected error for a non-object")
	}
}

func TestParseQuantity(t *testing.T) {
	if n, err := parseQuantity(" 12 "); err != nil || n != 12 {
		t.Errorf("parseQuantity(12) = %d, %v", n, err)
	}
	if _, err := parseQuantity("1.5"); err == nil {
		t.Error("expected error for a fraction")
	}
}

func TestSkuPatch(t *testing.T) {
	current := inventory.SkuState{
		ID:         "SKU000001",
		Name:       "Widget",
		OwnedCodes: []string{"111"},
		Props:      inventory.Props{"color": "red"},
	}

	t.Run("only changed fields", func(t *testing.T) {
		r := postedForm(t, url.Values{
			"name":        {"Widget"},
			"owned_codes": {"111 222"},
			"props":       {`{"color": "red"}`},
		})
		patch, err := skuPatch(r, current)
		if err != nil {
			t.Fatalf("skuPatch() error = %v", err)
		}
		if patch.Name != nil || patch.Props != nil || patch.AssociatedCodes != nil {
			t.Errorf("unchanged fields in patch: %+v", patch)
		}
		if patch.OwnedCodes == nil || len(*patch.OwnedCodes) != 2 {
			t.Errorf("OwnedCodes = %v", patch.OwnedCodes)
		}
	})

	t.Run("cleared props", func(t *testing.T) {
		patch, err := skuPatch(postedForm(t, url.Values{"props": {""}}), current)
		if err != nil {
			t.Fatalf("skuPatch() error = %v", err)
		}
		if patch.Props == nil || len(*patch.Props) != 0 {
			t.Errorf("Props = %v, want empty object", patch.Props)
		}
	})

	t.Run("nothing changed", func(t *testing.T) {
		_, err := skuPatch(postedForm(t, url.Values{"name": {" Widget "}}), current)
		if !errors.Is(err, errEmptyPatch) {
			t.Errorf("err = %v, want errEmptyPatch", err)
		}
	})
}

func TestBatchPatch(t *testing.T) {
	current := inventory.BatchState{ID: "BAT000001", SkuID: "SKU000001"}

	patch, err := batchPatch(postedForm(t, url.Values{"sku_id": {"SKU000002"}, "name": {""}}), current)
	if err != nil {
		t.Fatalf("batchPatch() error = %v", err)
	}
	if patch.SkuID == nil || *patch.SkuID != "SKU000002" {
		t.Errorf("SkuID = %v", patch.SkuID)
	}
	if patch.Name != nil {
		t.Errorf("Name = %v, want unchanged", *patch.Name)
	}

	if _, err := batchPatch(postedForm(t, url.Values{}), current); !errors.Is(err, errEmptyPatch) {
		t.Errorf("empty form err = %v, want errEmptyPatch", err)
	}
}

func TestBinPatch(t *testing.T) {
	patch, err := binPatch(postedForm(t, url.Values{"props": {""}}))
	if err != nil {
		t.Fatalf("binPatch() error = %v", err)
	}
	if patch.Props == nil {
		t.Error("cleared props should be sent as an empty object")
	}
}

func TestNewRequest(t *testing.T) {
	r := postedForm(t, url.Values{
		"id":          {" BAT000002 "},
		"sku_id":      {"SKU000001"},
		"owned_codes": {"x,y"},
	})

	req, err := newRequest(inventory.KindBatch, r)
	if err != nil {
		t.Fatalf("newRequest() error = %v", err)
	}
	batch, ok := req.(inventory.NewBatch)
	if !ok {
		t.Fatalf("request is %T", req)
	}
	if batch.ID != "BAT000002" || batch.SkuID != "SKU000001" || len(batch.OwnedCodes) != 2 {
		t.Errorf("request = %+v", batch)
	}
}

func TestParseForm_TooLarge(t *testing.T) {
	body := "props=" + strings.Repeat("a", maxFormSize+1)
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := parseForm(httptest.NewRecorder(), r); err == nil {
		t.Error("expected error for an oversized form")
	}
}
