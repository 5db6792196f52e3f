package labels

// Scheduler coalesces recompute requests into at most one Reconciler pass per frame.
type Scheduler struct {
	reconciler *Reconciler
	frames     Frames
	stats      *Stats

	pending    []Label
	pendingSet map[Label]struct{}
	pendingAll bool
	scheduled  bool

	// onFlush observes each completed pass; used by tests and status reporting.
	onFlush func(all bool, res PassResult)
}

// NewScheduler creates a scheduler that flushes into r on frames.
func NewScheduler(r *Reconciler, frames Frames, stats *Stats) *Scheduler {
	if stats == nil {
		stats = r.stats
	}
	return &Scheduler{
		reconciler: r,
		frames:     frames,
		stats:      stats,
		pendingSet: make(map[Label]struct{}),
	}
}

// OnFlush registers fn to observe every flush.
func (s *Scheduler) OnFlush(fn func(all bool, res PassResult)) {
	s.onFlush = fn
}

// Request asks for the given labels to be recomputed at the next frame.
func (s *Scheduler) Request(labels ...Label) {
	for _, l := range labels {
		if l == nil {
			continue
		}
		if _, ok := s.pendingSet[l]; ok {
			continue
		}
		s.pendingSet[l] = struct{}{}
		s.pending = append(s.pending, l)
	}
	s.schedule()
}

// RequestAll asks for every label to be recomputed at the next frame. It subsumes any
// targeted request made before or after it in the same window.
func (s *Scheduler) RequestAll() {
	s.pendingAll = true
	s.schedule()
}

// Pending reports the queued labels, the recompute-all flag and whether a frame is booked.
func (s *Scheduler) Pending() (labels int, all bool, scheduled bool) {
	return len(s.pending), s.pendingAll, s.scheduled
}

func (s *Scheduler) schedule() {
	if s.scheduled {
		return
	}
	s.scheduled = true
	s.frames.RequestFrame(s.flush)
}

func (s *Scheduler) flush() {
	all := s.pendingAll
	targets := s.pending

	// Clear before reconciling: requests made by the pass itself book a fresh frame.
	s.pending = nil
	s.pendingSet = make(map[Label]struct{})
	s.pendingAll = false
	s.scheduled = false

	s.stats.Flushes.Add(1)

	// Reconcile skips labels that detached while they were pending.
	var res PassResult
	if all {
		res = s.reconciler.ReconcileAll()
	} else {
		res = s.reconciler.Reconcile(targets)
	}

	if s.onFlush != nil {
		s.onFlush(all, res)
	}
}
