// Package idgen provides ID generation implementations.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/inventorius/inventorius-web/ports"
)

// UUID generates random UUIDs, optionally prefixed ("act_", "req_").
type UUID struct {
	Prefix string
}

// New generates a new UUID v4.
func (g UUID) New() string {
	return g.Prefix + uuid.NewString()
}

// RequestID returns an identifier for the X-Request-Id header.
func RequestID() string {
	return uuid.NewString()
}

// Ensure interface compliance.
var _ ports.IDGenerator = UUID{}

// Sequential generates sequential IDs (for testing).
type Sequential struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.counter.Add(1), 10)
}

// Ensure interface compliance.
var _ ports.IDGenerator = (*Sequential)(nil)
