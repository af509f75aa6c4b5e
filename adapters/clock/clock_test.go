package clock_test

import (
	"testing"
	"time"

	"github.com/inventorius/inventorius-web/adapters/clock"
)

func TestReal_Now(t *testing.T) {
	before := time.Now()
	got := clock.Real{}.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", got, before, after)
	}
}

func TestFake(t *testing.T) {
	start := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)

	if got := c.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}

	c.Advance(90 * time.Minute)
	if want := start.Add(90 * time.Minute); !c.Now().Equal(want) {
		t.Errorf("after Advance, Now() = %v, want %v", c.Now(), want)
	}

	jump := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Set(jump)
	if !c.Now().Equal(jump) {
		t.Errorf("after Set, Now() = %v, want %v", c.Now(), jump)
	}
}

func TestCutoff(t *testing.T) {
	now := time.Date(2024, 3, 31, 8, 0, 0, 0, time.UTC)
	c := clock.NewFake(now)

	tests := []struct {
		name      string
		retention time.Duration
		want      time.Time
	}{
		{"thirty days", 30 * 24 * time.Hour, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)},
		{"one hour", time.Hour, now.Add(-time.Hour)},
		{"keep forever", 0, time.Time{}},
		{"negative", -time.Hour, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clock.Cutoff(c, tt.retention); !got.Equal(tt.want) {
				t.Errorf("Cutoff(%v) = %v, want %v", tt.retention, got, tt.want)
			}
		})
	}
}
