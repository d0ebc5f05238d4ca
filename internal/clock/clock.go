// Package clock abstracts the monotonic time source used for render cadence and
// refresh deadlines so that timing behavior can be driven deterministically in tests.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock reports the current time and sleeps. Implementations must return values
// that carry a monotonic reading so deadline comparisons ignore wall-clock steps.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done. It reports whether the full
	// duration elapsed.
	Sleep(ctx context.Context, d time.Duration) bool
}

// Real is the process clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Manual is a clock whose time only moves when Sleep or Advance is called.
// Sleep advances the clock by the requested duration and returns immediately.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	onSleep func(now time.Time)
}

// NewManual returns a Manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	m.Advance(d)
	return true
}

// Advance moves the clock forward by d and runs the sleep hook, if any.
func (m *Manual) Advance(d time.Duration) {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	hook := m.onSleep
	m.mu.Unlock()
	if hook != nil {
		hook(now)
	}
}

// OnAdvance installs a hook called with the new time after every advance.
func (m *Manual) OnAdvance(fn func(now time.Time)) {
	m.mu.Lock()
	m.onSleep = fn
	m.mu.Unlock()
}
