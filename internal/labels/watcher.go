package labels

import (
	"time"

	"prefixhider/internal/logging"
)

// DefaultDiscoveryRetry is how long the watcher waits before looking for roots again.
const DefaultDiscoveryRetry = 500 * time.Millisecond

// WatcherState is the attachment state of a Watcher.
type WatcherState int

const (
	Unattached WatcherState = iota
	Attached
)

func (s WatcherState) String() string {
	if s == Attached {
		return "attached"
	}
	return "unattached"
}

// Watcher observes the host tree and turns mutation batches into scheduler requests.
type Watcher struct {
	tree   Tree
	sched  *Scheduler
	store  *StateStore
	timers Timers
	retry  time.Duration
	stats  *Stats

	state     WatcherState
	roots     []Node
	sub       Subscription
	gen       int
	stopRetry func() bool
	stopped   bool
}

// NewWatcher creates a watcher. retry <= 0 selects DefaultDiscoveryRetry.
func NewWatcher(tree Tree, sched *Scheduler, store *StateStore, timers Timers, retry time.Duration, stats *Stats) *Watcher {
	if retry <= 0 {
		retry = DefaultDiscoveryRetry
	}
	if stats == nil {
		stats = &Stats{}
	}
	return &Watcher{
		tree:   tree,
		sched:  sched,
		store:  store,
		timers: timers,
		retry:  retry,
		stats:  stats,
	}
}

// State returns the current attachment state.
func (w *Watcher) State() WatcherState {
	return w.state
}

// Roots returns the roots currently subscribed to.
func (w *Watcher) Roots() []Node {
	return append([]Node(nil), w.roots...)
}

// Start attaches to the tree, retrying until roots appear.
func (w *Watcher) Start() {
	w.stopped = false
	if !w.refresh() {
		w.scheduleRetry()
	}
}

// Stop detaches and cancels any pending discovery retry.
func (w *Watcher) Stop() {
	w.stopped = true
	if w.stopRetry != nil {
		w.stopRetry()
		w.stopRetry = nil
	}
	w.detach()
}

func (w *Watcher) scheduleRetry() {
	if w.stopped || w.stopRetry != nil {
		return
	}
	w.stopRetry = w.timers.AfterFunc(w.retry, func() {
		w.stopRetry = nil
		if w.stopped {
			return
		}
		w.stats.DiscoveryRetry.Add(1)
		if !w.refresh() {
			w.scheduleRetry()
		}
	})
}

// refresh runs root discovery and re-subscribes when the root set changed.
// It reports whether the watcher ends up attached.
func (w *Watcher) refresh() bool {
	roots, err := w.tree.Roots()
	if err != nil {
		logging.WatcherDebug("root discovery failed: %v", err)
		roots = nil
	}
	if len(roots) == 0 {
		if w.state == Attached {
			logging.Watcher("roots disappeared, detaching")
		}
		w.detach()
		return false
	}

	if w.state == Attached && sameNodes(roots, w.roots) {
		return true
	}

	w.detach()
	w.gen++
	gen := w.gen
	sub, err := w.tree.Observe(roots, func(batch []Mutation) {
		if gen != w.gen || w.stopped {
			return
		}
		w.handle(batch)
	})
	if err != nil {
		logging.Get(logging.CategoryWatcher).Warn("observe %d roots failed: %v", len(roots), err)
		return false
	}

	w.sub = sub
	w.roots = roots
	w.state = Attached
	w.stats.Attachments.Add(1)
	logging.Watcher("attached to %d roots", len(roots))

	// Nothing was observed between the old subscription and this one.
	w.sched.RequestAll()
	return true
}

func (w *Watcher) detach() {
	if w.sub != nil {
		w.sub.Disconnect()
		w.sub = nil
	}
	w.gen++
	w.roots = nil
	w.state = Unattached
}

func (w *Watcher) handle(batch []Mutation) {
	w.stats.Batches.Add(1)

	var affected, removed []Label
	for _, m := range batch {
		switch m.Kind {
		case ChildListMutation:
			for _, n := range m.Added {
				affected = append(affected, w.tree.LabelsWithin(n)...)
			}
			for _, n := range m.Removed {
				removed = append(removed, w.tree.LabelsWithin(n)...)
			}
		case TextMutation:
			if owner, ok := w.tree.TextOwner(m.Target); ok {
				affected = append(affected, owner)
			}
		}
	}
	w.forget(removed, affected)

	if len(affected) > 0 {
		w.sched.Request(affected...)
	} else {
		w.stats.FallbackAll.Add(1)
		w.sched.RequestAll()
	}

	if !w.refresh() {
		w.scheduleRetry()
	}
}

// forget drops the state of removed labels. A label the same batch also inserted
// was moved and keeps its state, unless it ended up detached.
func (w *Watcher) forget(removed, affected []Label) {
	if len(removed) == 0 {
		return
	}
	readded := make(map[Label]struct{}, len(affected))
	for _, l := range affected {
		readded[l] = struct{}{}
	}
	forgetter, _ := w.tree.(Forgetter)
	for _, l := range removed {
		if _, ok := readded[l]; ok && l.Connected() {
			continue
		}
		w.store.Forget(l)
		if forgetter != nil {
			forgetter.Forget(l)
		}
		w.stats.Forgotten.Add(1)
	}
}

func sameNodes(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[Node]struct{}, len(a))
	for _, n := range a {
		set[n] = struct{}{}
	}
	for _, n := range b {
		if _, ok := set[n]; !ok {
			return false
		}
	}
	return true
}
