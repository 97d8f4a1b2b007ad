// Package clock provides ports.Clock implementations for the journal and
// the in-memory host.
package clock

import (
	"sync"
	"time"

	"github.com/artpar/crossbridge/ports"
)

// Real reports wall-clock time in UTC so journal rows compare across hosts.
type Real struct{}

func (Real) Now() time.Time {
	return time.Now().UTC()
}

var _ ports.Clock = Real{}

// Fake is a manually driven clock. With a non-zero step every Now call
// advances it, which gives consecutive deliveries distinct timestamps.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewFake returns a clock frozen at t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// NewStepping returns a clock starting at t that moves by step per reading.
func NewStepping(t time.Time, step time.Duration) *Fake {
	return &Fake{current: t, step: step}
}

// Now returns the current fake time, then applies the step.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.current
	f.current = f.current.Add(f.step)
	return now
}

// Set jumps to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

var _ ports.Clock = (*Fake)(nil)
