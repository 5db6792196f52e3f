package labels

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// PrefixSource supplies the prefix list. It may block and may fail.
type PrefixSource interface {
	Prefixes(ctx context.Context) ([]string, error)
}

// PrefixSourceFunc adapts a function to PrefixSource.
type PrefixSourceFunc func(ctx context.Context) ([]string, error)

// Prefixes calls f.
func (f PrefixSourceFunc) Prefixes(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// StaticPrefixes is a PrefixSource that always returns the same list.
type StaticPrefixes []string

// Prefixes returns a copy of the list.
func (p StaticPrefixes) Prefixes(context.Context) ([]string, error) {
	return append([]string(nil), p...), nil
}

// PrefixCell holds the process-wide prefix list. The list is replaced wholesale,
// never patched, and readers always see a complete list.
type PrefixCell struct {
	current atomic.Pointer[[]string]

	mu        sync.Mutex
	listeners []func([]string)
}

// NewPrefixCell creates a cell holding a copy of initial.
func NewPrefixCell(initial []string) *PrefixCell {
	c := &PrefixCell{}
	list := append([]string(nil), initial...)
	c.current.Store(&list)
	return c
}

// Load returns the current list. Callers must not modify it.
func (c *PrefixCell) Load() []string {
	if p := c.current.Load(); p != nil {
		return *p
	}
	return nil
}

// Replace swaps in a copy of list and notifies listeners with it.
func (c *PrefixCell) Replace(list []string) {
	next := append([]string(nil), list...)
	c.current.Store(&next)

	c.mu.Lock()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}

// OnReplace registers fn to run after every Replace.
func (c *PrefixCell) OnReplace(fn func([]string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}
