package labels

import (
	"context"
	"sync/atomic"
	"time"

	"prefixhider/internal/logging"
)

// DefaultFetchTimeout bounds a single prefix fetch.
const DefaultFetchTimeout = 5 * time.Second

// Options configures an Engine.
type Options struct {
	Frames        Frames
	Timers        Timers
	RetryInterval time.Duration

	// Source supplies the prefix list. Nil means an empty list.
	Source       PrefixSource
	FetchTimeout time.Duration

	// Dispatch hands a callback to the loop goroutine. When set, prefix fetches run on
	// their own goroutine and their result is dispatched back; when nil they run inline.
	Dispatch func(fn func()) bool
}

// Engine ties the label state, transform, reconciler, scheduler and watcher together.
// Except for Refresh and PrefixesChanged, its methods must be called on the loop.
type Engine struct {
	tree       Tree
	store      *StateStore
	prefixes   *PrefixCell
	stats      *Stats
	reconciler *Reconciler
	scheduler  *Scheduler
	watcher    *Watcher

	source       PrefixSource
	fetchTimeout time.Duration
	dispatch     func(fn func()) bool

	// requested numbers every Refresh; installed is the newest fetch applied so far.
	requested atomic.Uint64
	installed uint64
}

// New builds an engine over tree.
func New(tree Tree, opts Options) *Engine {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Source == nil {
		opts.Source = StaticPrefixes(nil)
	}

	stats := &Stats{}
	store := NewStateStore()
	cell := NewPrefixCell(nil)
	rec := NewReconciler(tree, store, cell, stats)
	sched := NewScheduler(rec, opts.Frames, stats)
	w := NewWatcher(tree, sched, store, opts.Timers, opts.RetryInterval, stats)

	e := &Engine{
		tree:         tree,
		store:        store,
		prefixes:     cell,
		stats:        stats,
		reconciler:   rec,
		scheduler:    sched,
		watcher:      w,
		source:       opts.Source,
		fetchTimeout: opts.FetchTimeout,
		dispatch:     opts.Dispatch,
	}
	cell.OnReplace(func([]string) { sched.RequestAll() })
	return e
}

// NewOnLoop builds an engine whose frames, timers and fetch results go through loop.
func NewOnLoop(tree Tree, loop *Loop, source PrefixSource, retry time.Duration) *Engine {
	return New(tree, Options{
		Frames:        loop,
		Timers:        loop,
		RetryInterval: retry,
		Source:        source,
		Dispatch:      loop.Post,
	})
}

// Start loads the prefix list and begins watching the tree.
func (e *Engine) Start() {
	e.watcher.Start()
	e.Refresh(context.Background())
}

// Stop detaches from the tree. Pending requests are left to lapse.
func (e *Engine) Stop() {
	e.watcher.Stop()
}

// PrefixesChanged re-fetches the prefix list and recomputes every label.
// It is safe to call from any goroutine when a Dispatch func is configured.
func (e *Engine) PrefixesChanged() {
	e.Refresh(context.Background())
}

// Refresh fetches the prefix list and installs it. A failed fetch installs an empty list.
// Fetches may finish out of order; a result older than one already installed is dropped.
func (e *Engine) Refresh(ctx context.Context) {
	seq := e.requested.Add(1)
	if e.dispatch == nil {
		e.install(seq, e.fetch(ctx))
		return
	}
	go func() {
		list := e.fetch(ctx)
		if !e.dispatch(func() { e.install(seq, list) }) {
			logging.EngineDebug("loop closed, dropping %d fetched prefixes", len(list))
		}
	}()
}

func (e *Engine) install(seq uint64, list []string) {
	if seq < e.installed {
		logging.EngineDebug("dropping stale prefix fetch %d, have %d", seq, e.installed)
		return
	}
	e.installed = seq
	e.ApplyPrefixes(list)
}

func (e *Engine) fetch(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	list, err := e.source.Prefixes(ctx)
	if err != nil {
		logging.EngineWarn("prefix fetch failed, using empty list: %v", err)
		return nil
	}
	return list
}

// ApplyPrefixes replaces the prefix list and schedules a full pass.
func (e *Engine) ApplyPrefixes(list []string) {
	logging.Engine("applying %d prefixes", len(list))
	e.prefixes.Replace(list)
}

// Store returns the label state store.
func (e *Engine) Store() *StateStore { return e.store }

// Scheduler returns the batching scheduler.
func (e *Engine) Scheduler() *Scheduler { return e.scheduler }

// Reconciler returns the reconciler.
func (e *Engine) Reconciler() *Reconciler { return e.reconciler }

// Watcher returns the tree watcher.
func (e *Engine) Watcher() *Watcher { return e.watcher }

// Prefixes returns the prefix cell.
func (e *Engine) Prefixes() *PrefixCell { return e.prefixes }

// Stats returns the activity counters.
func (e *Engine) Stats() *Stats { return e.stats }
