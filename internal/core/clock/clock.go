package clock

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts wall time and delays so pipeline phases can wait for
// remote systems to settle without making tests actually sleep.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Sleep blocks for the given duration or until the context is
	// cancelled, in which case the context error is returned.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall-clock implementation used in production.
type Real struct{}

// Now implements Clock.
func (Real) Now() time.Time {
	return time.Now()
}

// Sleep implements Clock with a cancellable timer.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fake is a manual clock for tests. Sleep returns immediately, advances the
// fake time by the requested duration and records it.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewFake creates a Fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now implements Clock.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Sleep implements Clock without blocking.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	f.sleeps = append(f.sleeps, d)
	return nil
}

// Sleeps returns every duration passed to Sleep, in order.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}
