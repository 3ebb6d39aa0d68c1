package clock

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time so that delays can be managed in tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

type clock struct{}

// New returns the wall clock.
func New() Clock {
	return clock{}
}

func (clock) Now() time.Time { return time.Now() }

func (clock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ManagedClock is a hand-driven clock for tests: Sleep returns immediately
// after moving the clock forward by the requested duration.
type ManagedClock struct {
	mu        sync.Mutex
	startTime time.Time
	offset    time.Duration
	sleeps    []time.Duration
}

// NewManaged returns a ManagedClock starting at startTime.
func NewManaged(startTime time.Time) *ManagedClock {
	return &ManagedClock{startTime: startTime}
}

func (c *ManagedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startTime.Add(c.offset)
}

func (c *ManagedClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	c.WarpForward(d)
	return nil
}

// WarpForward moves time forward by offset and returns the new time.
func (c *ManagedClock) WarpForward(offset time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += offset
	return c.startTime.Add(c.offset)
}

// Sleeps returns every duration passed to Sleep, in call order.
func (c *ManagedClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}
