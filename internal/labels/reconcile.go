package labels

import "prefixhider/internal/logging"

// PassResult summarizes one reconciliation pass.
type PassResult struct {
	Visited int
	Written int
	Skipped int
	Failed  int
}

// Reconciler applies the prefix transform to labels. SetText in Reconcile is the only
// place the engine writes to the host tree.
type Reconciler struct {
	tree     Tree
	store    *StateStore
	prefixes *PrefixCell
	stats    *Stats
}

// NewReconciler creates a reconciler. stats may be nil.
func NewReconciler(tree Tree, store *StateStore, prefixes *PrefixCell, stats *Stats) *Reconciler {
	if stats == nil {
		stats = &Stats{}
	}
	return &Reconciler{tree: tree, store: store, prefixes: prefixes, stats: stats}
}

// ReconcileAll reconciles every label the tree reports right now.
func (r *Reconciler) ReconcileAll() PassResult {
	r.stats.FullPasses.Add(1)
	return r.Reconcile(r.tree.Labels())
}

// Reconcile reconciles the given labels. Detached labels are skipped; labels whose
// text cannot be read are counted as failed and left alone.
func (r *Reconciler) Reconcile(targets []Label) PassResult {
	var res PassResult
	var readFailed int
	prefixes := r.prefixes.Load()

	for _, label := range targets {
		if label == nil || !label.Connected() {
			res.Skipped++
			continue
		}

		current, err := label.ReadText()
		if err != nil {
			logging.EngineWarn("read text failed: %v", err)
			res.Failed++
			readFailed++
			continue
		}
		res.Visited++

		original := r.store.Resolve(label, current)
		displayed := ComputeDisplayed(original, prefixes)

		if current != displayed {
			if err := label.SetText(displayed); err != nil {
				// Leave lastApplied untouched so the next pass retries.
				logging.EngineWarn("set text %q failed: %v", displayed, err)
				res.Failed++
				continue
			}
			res.Written++
		}
		r.store.RecordApplied(label, displayed)
	}

	r.stats.LabelsVisited.Add(int64(res.Visited))
	r.stats.LabelsWritten.Add(int64(res.Written))
	r.stats.LabelsSkipped.Add(int64(res.Skipped))
	r.stats.ReadFailures.Add(int64(readFailed))
	r.stats.WriteFailures.Add(int64(res.Failed - readFailed))
	return res
}
