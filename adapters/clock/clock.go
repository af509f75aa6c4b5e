// Package clock provides ports.Clock implementations.
package clock

import (
	"sync"
	"time"

	"github.com/inventorius/inventorius-web/ports"
)

// Real reads the system clock.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// Fake is a clock that only moves when told to. Activity retention tests
// use it to age entries without sleeping.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFake returns a fake clock reading t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Set jumps to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the fake time forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

// Cutoff returns the instant before which entries kept for retention have
// expired. A non-positive retention keeps everything and yields the zero time.
func Cutoff(c ports.Clock, retention time.Duration) time.Time {
	if retention <= 0 {
		return time.Time{}
	}
	return c.Now().Add(-retention)
}

var (
	_ ports.Clock = Real{}
	_ ports.Clock = (*Fake)(nil)
)
