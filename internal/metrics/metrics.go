// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"prefixhider/internal/labels"
	"prefixhider/internal/logging"
)

const namespace = "prefixhider"

// Register adds one counter per engine statistic to reg. Values are sampled from
// stats at scrape time.
func Register(reg prometheus.Registerer, stats *labels.Stats) {
	f := promauto.With(reg)
	counter := func(name, help string, read func(labels.StatsSnapshot) int64) {
		f.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(stats.Snapshot())) })
	}

	counter("flushes_total", "Scheduler flushes run.", func(s labels.StatsSnapshot) int64 { return s.Flushes })
	counter("full_passes_total", "Reconcile passes over every label.", func(s labels.StatsSnapshot) int64 { return s.FullPasses })
	counter("labels_visited_total", "Labels examined by the reconciler.", func(s labels.StatsSnapshot) int64 { return s.LabelsVisited })
	counter("labels_written_total", "Label texts rewritten.", func(s labels.StatsSnapshot) int64 { return s.LabelsWritten })
	counter("labels_skipped_total", "Pending labels skipped because they left the tree.", func(s labels.StatsSnapshot) int64 { return s.LabelsSkipped })
	counter("read_failures_total", "Label reads that failed; the label is left alone.", func(s labels.StatsSnapshot) int64 { return s.ReadFailures })
	counter("write_failures_total", "Label writes that failed.", func(s labels.StatsSnapshot) int64 { return s.WriteFailures })
	counter("labels_forgotten_total", "Label states dropped after removal.", func(s labels.StatsSnapshot) int64 { return s.Forgotten })
	counter("mutation_batches_total", "Mutation batches handled by the watcher.", func(s labels.StatsSnapshot) int64 { return s.Batches })
	counter("fallback_full_total", "Batches that fell back to a full pass.", func(s labels.StatsSnapshot) int64 { return s.FallbackAll })
	counter("attachments_total", "Times the watcher subscribed to roots.", func(s labels.StatsSnapshot) int64 { return s.Attachments })
	counter("discovery_retries_total", "Root discovery retries.", func(s labels.StatsSnapshot) int64 { return s.DiscoveryRetry })
}

// Handler serves reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Serve listens on addr and serves /metrics until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logging.Boot("metrics listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
