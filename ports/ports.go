// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// Activity is one mutation performed through the shell.
type Activity struct {
	ID         string
	Action     string // e.g. "bin.create", "bin.receive", "sku.delete"
	ResourceID string
	Detail     string
	Outcome    string // "ok" or the problem type returned by the API
	RequestID  string
	CreatedAt  time.Time
}

// Succeeded reports whether the API accepted the mutation.
func (a Activity) Succeeded() bool {
	return a.Outcome == OutcomeOK
}

// OutcomeOK marks an activity the API accepted.
const OutcomeOK = "ok"

// ActivityStore persists the shell's mutation log.
type ActivityStore interface {
	Record(ctx context.Context, a Activity) error
	Recent(ctx context.Context, limit int) ([]Activity, error)
	ForResource(ctx context.Context, resourceID string, limit int) ([]Activity, error)
}

// CertCacheStore persists ACME account keys and certificates.
type CertCacheStore interface {
	GetCacheEntry(ctx context.Context, key string) ([]byte, error)
	PutCacheEntry(ctx context.Context, key string, data []byte) error
	DeleteCacheEntry(ctx context.Context, key string) error
}

// PrunableActivityStore is an ActivityStore that can drop old entries.
type PrunableActivityStore interface {
	ActivityStore
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// ErrCacheMiss is returned by CertCacheStore when a key is absent.
var ErrCacheMiss = errors.New("cache miss")
