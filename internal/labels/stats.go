package labels

import "sync/atomic"

// Stats counts engine activity. Counters are atomic so metrics and status readers on
// other goroutines can sample them while the loop runs.
type Stats struct {
	Flushes        atomic.Int64
	FullPasses     atomic.Int64
	LabelsVisited  atomic.Int64
	LabelsWritten  atomic.Int64
	LabelsSkipped  atomic.Int64
	ReadFailures   atomic.Int64
	WriteFailures  atomic.Int64
	Forgotten      atomic.Int64
	Batches        atomic.Int64
	FallbackAll    atomic.Int64
	Attachments    atomic.Int64
	DiscoveryRetry atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Flushes        int64 `json:"flushes"`
	FullPasses     int64 `json:"full_passes"`
	LabelsVisited  int64 `json:"labels_visited"`
	LabelsWritten  int64 `json:"labels_written"`
	LabelsSkipped  int64 `json:"labels_skipped"`
	ReadFailures   int64 `json:"read_failures"`
	WriteFailures  int64 `json:"write_failures"`
	Forgotten      int64 `json:"forgotten"`
	Batches        int64 `json:"batches"`
	FallbackAll    int64 `json:"fallback_all"`
	Attachments    int64 `json:"attachments"`
	DiscoveryRetry int64 `json:"discovery_retries"`
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Flushes:        s.Flushes.Load(),
		FullPasses:     s.FullPasses.Load(),
		LabelsVisited:  s.LabelsVisited.Load(),
		LabelsWritten:  s.LabelsWritten.Load(),
		LabelsSkipped:  s.LabelsSkipped.Load(),
		ReadFailures:   s.ReadFailures.Load(),
		WriteFailures:  s.WriteFailures.Load(),
		Forgotten:      s.Forgotten.Load(),
		Batches:        s.Batches.Load(),
		FallbackAll:    s.FallbackAll.Load(),
		Attachments:    s.Attachments.Load(),
		DiscoveryRetry: s.DiscoveryRetry.Load(),
	}
}
