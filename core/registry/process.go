package registry

import (
	"context"
	"sync"
	"sync/atomic"
)

// processState is the process-wide registry. It is created once and never
// torn down.
type processState struct {
	once sync.Once
	reg  atomic.Pointer[Registry]
}

var process = &processState{}

// Initialize loads the process registry on the first call and returns it.
// Later calls, including concurrent first calls, return the same instance
// and ignore their arguments.
func Initialize(ctx context.Context, entries []Entry, opts ...Option) *Registry {
	p := process
	p.once.Do(func() {
		p.reg.Store(Load(ctx, entries, opts...))
	})
	return p.reg.Load()
}

// Current returns the process registry, or ErrNotInitialized.
func Current() (*Registry, error) {
	r := process.reg.Load()
	if r == nil {
		return nil, ErrNotInitialized
	}
	return r, nil
}

// MustCurrent is Current for code that cannot run before initialization.
func MustCurrent() *Registry {
	r, err := Current()
	if err != nil {
		panic(err)
	}
	return r
}
