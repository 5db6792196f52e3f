package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prefixhider/internal/browser"
	"prefixhider/internal/config"
	"prefixhider/internal/labels"
	"prefixhider/internal/logging"
	"prefixhider/internal/metrics"
	"prefixhider/internal/notify"
	"prefixhider/internal/prefixes"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Attach to the chat client and keep prefixes hidden",
	Long: `Connects to Chrome (browser.debugger_url, or a launched instance), attaches to
the first page matching browser.url_pattern (opening browser.target_url if none is
open) and rewrites sidebar labels until interrupted.

The prefix list is re-read whenever "prefixhider notify" or the settings form
signals a change, or, with the file source, whenever the file is edited.`,
	RunE: runEngine,
}

func runEngine(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend, err := prefixes.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open prefix store: %w", err)
	}
	defer backend.Close()

	mgr := browser.NewSessionManager(cfg.Browser)
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := mgr.Shutdown(context.Background()); err != nil {
			logger.Warn("browser shutdown failed", zap.Error(err))
		}
	}()

	page, err := mgr.AttachPage(ctx)
	if err != nil {
		return err
	}

	loop := labels.NewLoop(cfg.GetFrameInterval())
	tree, err := browser.NewPageTree(ctx, page, browser.PageTreeOptions{
		RootSelector:  cfg.Selectors.Root,
		LabelSelector: cfg.Selectors.Label,
		Dispatch:      loop.Post,
		PollInterval:  cfg.Browser.GetPollInterval(),
	})
	if err != nil {
		return err
	}
	defer tree.Close()

	eng := labels.New(tree, labels.Options{
		Frames:        loop,
		Timers:        loop,
		RetryInterval: cfg.GetDiscoveryRetry(),
		Source:        backend,
		FetchTimeout:  cfg.GetFetchTimeout(),
		Dispatch:      loop.Post,
	})

	listener, err := notify.Listen(cfg.Notify.RunDir, func(notify.Message) { eng.PrefixesChanged() })
	if err != nil {
		return err
	}
	defer listener.Close()

	if cfg.Store.Source == config.SourceFile {
		fw, err := prefixes.NewFileWatcher(cfg.Store.FilePath, 0, eng.PrefixesChanged)
		if err != nil {
			return err
		}
		if err := fw.Start(ctx); err != nil {
			return err
		}
		defer fw.Stop()
	}

	var wg sync.WaitGroup
	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		metrics.Register(reg, eng.Stats())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, reg); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	if !loop.Post(eng.Start) {
		return labels.ErrLoopClosed
	}
	logger.Info("prefixhider running",
		zap.String("control_url", mgr.ControlURL()),
		zap.String("notify_socket", listener.Path()),
		zap.String("source", cfg.Store.Source))
	fmt.Fprintln(os.Stderr, "Running. Press Ctrl+C to stop.")

	err = loop.Run(ctx)
	// The loop has exited, so this goroutine now owns the engine.
	eng.Stop()
	wg.Wait()

	snap := eng.Stats().Snapshot()
	logging.Engine("final stats: %+v", snap)
	logger.Info("prefixhider stopped",
		zap.Int64("labels_written", snap.LabelsWritten),
		zap.Int64("full_passes", snap.FullPasses))

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
