// Package inventory provides the value types of the inventory API: resource
// identifiers, resource states, mutation requests and search pages.
// This package has NO dependencies on I/O.
package inventory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the type of an inventory resource.
type Kind string

// Resource kinds.
const (
	KindBin   Kind = "bin"
	KindSku   Kind = "sku"
	KindBatch Kind = "batch"
)

// Identifier prefixes.
const (
	PrefixBin   = "BIN"
	PrefixSku   = "SKU"
	PrefixBatch = "BAT"
)

// ErrInvalidID is returned when a string is not a well-formed identifier.
var ErrInvalidID = errors.New("invalid identifier")

// Kinds lists every resource kind in display order.
func Kinds() []Kind {
	return []Kind{KindBin, KindSku, KindBatch}
}

// Prefix returns the identifier prefix for the kind.
func (k Kind) Prefix() string {
	switch k {
	case KindBin:
		return PrefixBin
	case KindSku:
		return PrefixSku
	case KindBatch:
		return PrefixBatch
	}
	return ""
}

// Plural returns the collection name used in API paths.
func (k Kind) Plural() string {
	switch k {
	case KindBin:
		return "bins"
	case KindSku:
		return "skus"
	case KindBatch:
		return "batches"
	}
	return ""
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k.Prefix() != ""
}

// ParseKind parses a kind name such as "bin".
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown resource kind %q", s)
	}
	return k, nil
}

// ID is a parsed resource identifier: a kind prefix followed by digits.
// Leading zeros are significant and preserved.
type ID struct {
	Kind   Kind
	Digits string
}

// ParseID parses identifiers of the form BIN000001, SKU12 or BAT7.
func ParseID(s string) (ID, error) {
	for _, k := range Kinds() {
		prefix := k.Prefix()
		if !strings.HasPrefix(s, prefix) {
			continue
		}
		digits := s[len(prefix):]
		if digits == "" || !allDigits(digits) {
			return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
		}
		return ID{Kind: k, Digits: digits}, nil
	}
	return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
}

// KindOf returns the kind implied by an identifier's prefix.
func KindOf(s string) (Kind, bool) {
	id, err := ParseID(s)
	if err != nil {
		return "", false
	}
	return id.Kind, true
}

// IsBinID reports whether s is a well-formed bin identifier.
func IsBinID(s string) bool { return hasKind(s, KindBin) }

// IsSkuID reports whether s is a well-formed SKU identifier.
func IsSkuID(s string) bool { return hasKind(s, KindSku) }

// IsBatchID reports whether s is a well-formed batch identifier.
func IsBatchID(s string) bool { return hasKind(s, KindBatch) }

// IsItemID reports whether s identifies something a bin can hold.
func IsItemID(s string) bool { return IsSkuID(s) || IsBatchID(s) }

// String returns the identifier in its wire form.
func (id ID) String() string {
	return id.Kind.Prefix() + id.Digits
}

// Number returns the numeric part of the identifier.
func (id ID) Number() (uint64, error) {
	return strconv.ParseUint(id.Digits, 10, 64)
}

// FormatID builds an identifier for kind with n zero-padded to width digits.
func FormatID(kind Kind, n uint64, width int) string {
	return fmt.Sprintf("%s%0*d", kind.Prefix(), width, n)
}

// ResourcePath returns the API path of a single resource, e.g. /api/bin/BIN000001.
func ResourcePath(id string) (string, error) {
	parsed, err := ParseID(id)
	if err != nil {
		return "", err
	}
	return "/api/" + string(parsed.Kind) + "/" + parsed.String(), nil
}

// CollectionPath returns the API path resources of kind are created under.
func CollectionPath(kind Kind) string {
	return "/api/" + kind.Plural()
}

// NextPath returns the API path suggesting the next free identifier of kind.
func NextPath(kind Kind) string {
	return "/api/next/" + string(kind)
}

// PagePath returns the shell page of a resource, e.g. /bin/BIN000001.
func PagePath(id string) string {
	kind, ok := KindOf(id)
	if !ok {
		return ""
	}
	return "/" + string(kind) + "/" + id
}

func hasKind(s string, k Kind) bool {
	got, ok := KindOf(s)
	return ok && got == k
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
