package inventory

import (
	"errors"
	"regexp"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var codePattern = regexp.MustCompile(`^\S+$`)

// NewBin is the body of POST /api/bins.
type NewBin struct {
	ID    string `json:"id"`
	Props Props  `json:"props,omitempty"`
}

// Validate checks the request before it is sent.
func (r NewBin) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required, validation.By(idOfKind(KindBin))),
	)
}

// NewSku is the body of POST /api/skus.
type NewSku struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	OwnedCodes      []string `json:"owned_codes,omitempty"`
	AssociatedCodes []string `json:"associated_codes,omitempty"`
	Props           Props    `json:"props,omitempty"`
}

// Validate checks the request before it is sent.
func (r NewSku) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required, validation.By(idOfKind(KindSku))),
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.OwnedCodes, validation.Each(codeRules()...)),
		validation.Field(&r.AssociatedCodes, validation.Each(codeRules()...)),
	)
}

// NewBatch is the body of POST /api/batches.
type NewBatch struct {
	ID              string   `json:"id"`
	SkuID           string   `json:"sku_id,omitempty"`
	Name            string   `json:"name,omitempty"`
	OwnedCodes      []string `json:"owned_codes,omitempty"`
	AssociatedCodes []string `json:"associated_codes,omitempty"`
	Props           Props    `json:"props,omitempty"`
}

// Validate checks the request before it is sent.
func (r NewBatch) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required, validation.By(idOfKind(KindBatch))),
		validation.Field(&r.SkuID, validation.By(idOfKind(KindSku))),
		validation.Field(&r.OwnedCodes, validation.Each(codeRules()...)),
		validation.Field(&r.AssociatedCodes, validation.Each(codeRules()...)),
	)
}

// BinPatch is the body of a bin's update operation.
type BinPatch struct {
	Props Props `json:"props"`
}

// Validate checks the request before it is sent.
func (p BinPatch) Validate() error {
	return nil
}

// SkuPatch is the body of a SKU's update operation. Nil fields are left unchanged.
type SkuPatch struct {
	Name            *string   `json:"name,omitempty"`
	OwnedCodes      *[]string `json:"owned_codes,omitempty"`
	AssociatedCodes *[]string `json:"associated_codes,omitempty"`
	Props           *Props    `json:"props,omitempty"`
}

// Validate checks the request before it is sent.
func (p SkuPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty),
		validation.Field(&p.OwnedCodes, validation.By(codesPtr)),
		validation.Field(&p.AssociatedCodes, validation.By(codesPtr)),
	)
}

// Empty reports whether the patch changes nothing.
func (p SkuPatch) Empty() bool {
	return p.Name == nil && p.OwnedCodes == nil && p.AssociatedCodes == nil && p.Props == nil
}

// BatchPatch is the body of a batch's update operation. Nil fields are left unchanged.
type BatchPatch struct {
	SkuID           *string   `json:"sku_id,omitempty"`
	Name            *string   `json:"name,omitempty"`
	OwnedCodes      *[]string `json:"owned_codes,omitempty"`
	AssociatedCodes *[]string `json:"associated_codes,omitempty"`
	Props           *Props    `json:"props,omitempty"`
}

// Validate checks the request before it is sent.
func (p BatchPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.SkuID, validation.By(idOfKind(KindSku))),
		validation.Field(&p.OwnedCodes, validation.By(codesPtr)),
		validation.Field(&p.AssociatedCodes, validation.By(codesPtr)),
	)
}

// Empty reports whether the patch changes nothing.
func (p BatchPatch) Empty() bool {
	return p.SkuID == nil && p.Name == nil && p.OwnedCodes == nil && p.AssociatedCodes == nil && p.Props == nil
}

// ContentsChange is the body of POST /api/bin/{id}/contents.
// A positive quantity receives items, a negative one releases them.
type ContentsChange struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// Validate checks the request before it is sent.
func (r ContentsChange) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required, validation.By(itemID)),
		validation.Field(&r.Quantity, validation.Required),
	)
}

// MoveRequest is the body of PUT /api/bin/{id}/contents/move.
type MoveRequest struct {
	ID          string `json:"id"`
	Destination string `json:"destination"`
	Quantity    int    `json:"quantity"`
}

// Validate checks the request before it is sent.
func (r MoveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required, validation.By(itemID)),
		validation.Field(&r.Destination, validation.Required, validation.By(idOfKind(KindBin))),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1)),
	)
}

// FieldErrors flattens a validation error into field name / reason pairs.
// Errors that are not per-field are reported under the empty name.
func FieldErrors(err error) []FieldError {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return []FieldError{{Reason: err.Error()}}
	}
	out := make([]FieldError, 0, len(errs))
	for name, fieldErr := range errs {
		out = append(out, FieldError{Name: name, Reason: fieldErr.Error()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FieldError is a single invalid request field.
type FieldError struct {
	Name   string
	Reason string
}

func idOfKind(kind Kind) validation.RuleFunc {
	return func(value interface{}) error {
		var s string
		switch v := value.(type) {
		case string:
			s = v
		case *string:
			if v == nil {
				return nil
			}
			s = *v
		}
		if s == "" {
			return nil
		}
		if !hasKind(s, kind) {
			return errors.New("must be a " + kind.Prefix() + " identifier followed by digits")
		}
		return nil
	}
}

func itemID(value interface{}) error {
	s, _ := value.(string)
	if s == "" || IsItemID(s) {
		return nil
	}
	return errors.New("must be a SKU or batch identifier")
}

func codeRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Match(codePattern).Error("must not contain whitespace"),
	}
}

func codesPtr(value interface{}) error {
	codes, _ := value.(*[]string)
	if codes == nil {
		return nil
	}
	return validation.Validate(*codes, validation.Each(codeRules()...))
}
