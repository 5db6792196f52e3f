package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"prefixhider/cmd/prefixhider/ui"
	"prefixhider/internal/config"
	"prefixhider/internal/logging"
	"prefixhider/internal/notify"
	"prefixhider/internal/prefixes"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Edit the prefix list in an interactive form",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := prefixes.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer backend.Close()

		model := ui.NewSettingsModel(&settingsBackend{store: backend, cfg: cfg}, ui.DefaultStyles())
		_, err = tea.NewProgram(model).Run()
		return err
	},
}

// settingsBackend saves through the prefix store and broadcasts the change.
type settingsBackend struct {
	store prefixes.Backend
	cfg   *config.Config
}

func (b *settingsBackend) Load(ctx context.Context) ([]string, error) {
	list, err := b.store.Load(ctx)
	if err != nil {
		logging.SettingsWarn("failed to load prefixes: %v", err)
	}
	return list, err
}

func (b *settingsBackend) Save(ctx context.Context, text string) (int, error) {
	list := prefixes.ParseInput(text)
	if err := b.store.Save(ctx, list); err != nil {
		logging.SettingsWarn("failed to save prefixes: %v", err)
		return 0, err
	}
	n, err := notify.Broadcast(ctx, b.cfg.Notify.RunDir, b.cfg.GetNotifyTimeout())
	if err != nil {
		// The list is stored, but the form reports the save as failed.
		logging.SettingsWarn("broadcast failed: %v", err)
		return 0, fmt.Errorf("notify engines: %w", err)
	}
	logging.Settings("saved %d prefixes, notified %d engines", len(list), n)
	return n, nil
}
