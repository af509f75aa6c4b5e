package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/inventorius/inventorius-web/adapters/remote"
	"github.com/inventorius/inventorius-web/domain/inventory"
	"github.com/inventorius/inventorius-web/pkg/hypermedia"
)

// maxFormSize bounds posted form bodies.
const maxFormSize = 1 << 20

var errEmptyPatch = errors.New("nothing to update")

// parseForm reads a posted form, bounded by maxFormSize.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	return r.ParseForm()
}

// parseCodes splits a code list entered as comma or whitespace separated
// values.
func parseCodes(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	codes := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			codes = append(codes, f)
		}
	}
	return codes
}

// parseProps decodes properties entered as a JSON object. Blank input means
// no properties.
func parseProps(s string) (inventory.Props, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var props inventory.Props
	if err := json.Unmarshal([]byte(s), &props); err != nil {
		return nil, fmt.Errorf("props must be a JSON object: %w", err)
	}
	return props, nil
}

// parseQuantity reads a positive whole number.
func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("quantity must be a whole number")
	}
	return n, nil
}

// invalidParams converts request validation failures into problem params.
func invalidParams(err error) []hypermedia.InvalidParam {
	fields := inventory.FieldErrors(err)
	params := make([]hypermedia.InvalidParam, 0, len(fields))
	for _, f := range fields {
		params = append(params, hypermedia.InvalidParam{Name: f.Name, Reason: f.Reason})
	}
	return params
}

// validationError wraps a local validation failure as a form error.
func validationError(err error) *FormError {
	return &FormError{Title: "The submitted form is invalid.", Params: invalidParams(err)}
}

// fieldError reports a single bad field.
func fieldError(name string, err error) *FormError {
	return &FormError{
		Title:  "The submitted form is invalid.",
		Params: []hypermedia.InvalidParam{{Name: name, Reason: err.Error()}},
	}
}

// binPatch builds a bin patch from a posted form.
func binPatch(r *http.Request) (inventory.BinPatch, error) {
	props, err := parseProps(r.PostForm.Get("props"))
	if err != nil {
		return inventory.BinPatch{}, err
	}
	if props == nil {
		props = inventory.Props{}
	}
	return inventory.BinPatch{Props: props}, nil
}

// skuPatch builds a patch holding only the fields that differ from current.
func skuPatch(r *http.Request, current inventory.SkuState) (inventory.SkuPatch, error) {
	var patch inventory.SkuPatch
	f := r.PostForm

	if _, ok := f["name"]; ok {
		if name := strings.TrimSpace(f.Get("name")); name != current.Name {
			patch.Name = &name
		}
	}
	if _, ok := f["owned_codes"]; ok {
		if codes := parseCodes(f.Get("owned_codes")); !sameCodes(codes, current.OwnedCodes) {
			patch.OwnedCodes = &codes
		}
	}
	if _, ok := f["associated_codes"]; ok {
		if codes := parseCodes(f.Get("associated_codes")); !sameCodes(codes, current.AssociatedCodes) {
			patch.AssociatedCodes = &codes
		}
	}
	if _, ok := f["props"]; ok {
		props, err := parseProps(f.Get("props"))
		if err != nil {
			return patch, err
		}
		if !sameProps(props, current.Props) {
			if props == nil {
				props = inventory.Props{}
			}
			patch.Props = &props
		}
	}
	if patch.Empty() {
		return patch, errEmptyPatch
	}
	return patch, nil
}

// batchPatch builds a patch holding only the fields that differ from current.
func batchPatch(r *http.Request, current inventory.BatchState) (inventory.BatchPatch, error) {
	var patch inventory.BatchPatch
	f := r.PostForm

	if _, ok := f["sku_id"]; ok {
		if sku := strings.TrimSpace(f.Get("sku_id")); sku != current.SkuID {
			patch.SkuID = &sku
		}
	}
	if _, ok := f["name"]; ok {
		if name := strings.TrimSpace(f.Get("name")); name != current.Name {
			patch.Name = &name
		}
	}
	if _, ok := f["owned_codes"]; ok {
		if codes := parseCodes(f.Get("owned_codes")); !sameCodes(codes, current.OwnedCodes) {
			patch.OwnedCodes = &codes
		}
	}
	if _, ok := f["associated_codes"]; ok {
		if codes := parseCodes(f.Get("associated_codes")); !sameCodes(codes, current.AssociatedCodes) {
			patch.AssociatedCodes = &codes
		}
	}
	if _, ok := f["props"]; ok {
		props, err := parseProps(f.Get("props"))
		if err != nil {
			return patch, err
		}
		if !sameProps(props, current.Props) {
			if props == nil {
				props = inventory.Props{}
			}
			patch.Props = &props
		}
	}
	if patch.Empty() {
		return patch, errEmptyPatch
	}
	return patch, nil
}

func sameCodes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameProps(a, b inventory.Props) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ja) == string(jb)
}

// newRequest builds the create request for kind from a posted form.
func newRequest(kind inventory.Kind, r *http.Request) (any, error) {
	f := r.PostForm
	id := strings.TrimSpace(f.Get("id"))
	props, err := parseProps(f.Get("props"))
	if err != nil {
		return nil, err
	}

	switch kind {
	case inventory.KindBin:
		return inventory.NewBin{ID: id, Props: props}, nil
	case inventory.KindSku:
		return inventory.NewSku{
			ID:              id,
			Name:            strings.TrimSpace(f.Get("name")),
			OwnedCodes:      parseCodes(f.Get("owned_codes")),
			AssociatedCodes: parseCodes(f.Get("associated_codes")),
			Props:           props,
		}, nil
	case inventory.KindBatch:
		return inventory.NewBatch{
			ID:              id,
			SkuID:           strings.TrimSpace(f.Get("sku_id")),
			Name:            strings.TrimSpace(f.Get("name")),
			OwnedCodes:      parseCodes(f.Get("owned_codes")),
			AssociatedCodes: parseCodes(f.Get("associated_codes")),
			Props:           props,
		}, nil
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}

// hydrateFrom restores the resource posted with a form. When the form
// carries no snapshot the resource is fetched again.
func (h *Handler) hydrateFrom(r *http.Request, kind inventory.Kind, id string) (remote.Resource, *hypermedia.Problem, error) {
	if raw := r.PostForm.Get("snapshot"); raw != "" {
		res, err := h.api.Hydrate(raw)
		if err != nil {
			return nil, nil, err
		}
		if string(res.Kind()) != string(kind) {
			return nil, nil, fmt.Errorf("%w: snapshot is a %s, not a %s", remote.ErrNotHydratable, res.Kind(), kind)
		}
		state := snapshotStateID(res)
		if state == "" {
			return nil, nil, fmt.Errorf("%w: snapshot has no id", remote.ErrNotHydratable)
		}
		if state != id {
			return nil, nil, fmt.Errorf("%w: snapshot is %s, not %s", remote.ErrNotHydratable, state, id)
		}
		return res, nil, nil
	}
	return h.fetch(r, kind, id)
}

// fetch loads the resource kind/id.
func (h *Handler) fetch(r *http.Request, kind inventory.Kind, id string) (remote.Resource, *hypermedia.Problem, error) {
	ctx := r.Context()
	switch kind {
	case inventory.KindBin:
		res, err := h.api.GetBin(ctx, id)
		if err != nil || !res.OK() {
			return nil, res.Problem, err
		}
		return res.Value, nil, nil
	case inventory.KindSku:
		res, err := h.api.GetSku(ctx, id)
		if err != nil || !res.OK() {
			return nil, res.Problem, err
		}
		return res.Value, nil, nil
	case inventory.KindBatch:
		res, err := h.api.GetBatch(ctx, id)
		if err != nil || !res.OK() {
			return nil, res.Problem, err
		}
		return res.Value, nil, nil
	default:
		p := hypermedia.MissingResource(id)
		return nil, &p, nil
	}
}

func snapshotStateID(res remote.Resource) string {
	switch x := res.(type) {
	case *remote.Bin:
		return x.State.ID
	case *remote.Sku:
		return x.State.ID
	case *remote.Batch:
		return x.State.ID
	}
	return ""
}
