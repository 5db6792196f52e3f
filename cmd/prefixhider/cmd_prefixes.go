package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prefixhider/internal/notify"
	"prefixhider/internal/prefixes"
)

var prefixesNoNotify bool

var prefixesCmd = &cobra.Command{
	Use:   "prefixes",
	Short: "Show or change the prefix list",
}

var prefixesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the stored prefixes, one per line",
	Args:  cobra.NoArgs,
	RunE:  prefixesList,
}

var prefixesSetCmd = &cobra.Command{
	Use:   "set [prefix...]",
	Short: "Replace the prefix list",
	Long: `Replaces the stored list with the given prefixes, or with the lines read from
stdin when none are given ("-" also reads stdin). Entries are trimmed, empty ones
dropped and duplicates removed. Running engines are told to re-read the list.`,
	RunE: prefixesSet,
}

var prefixesAddCmd = &cobra.Command{
	Use:   "add prefix...",
	Short: "Append prefixes to the list",
	Args:  cobra.MinimumNArgs(1),
	RunE:  prefixesAdd,
}

var prefixesRemoveCmd = &cobra.Command{
	Use:   "remove prefix...",
	Short: "Remove prefixes from the list",
	Args:  cobra.MinimumNArgs(1),
	RunE:  prefixesRemove,
}

func init() {
	prefixesCmd.PersistentFlags().BoolVar(&prefixesNoNotify, "no-notify", false, "Do not signal running engines")
	prefixesCmd.AddCommand(prefixesListCmd)
	prefixesCmd.AddCommand(prefixesSetCmd)
	prefixesCmd.AddCommand(prefixesAddCmd)
	prefixesCmd.AddCommand(prefixesRemoveCmd)
}

func prefixesList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	backend, err := prefixes.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	list, err := backend.Load(ctx)
	if err != nil {
		return err
	}
	for _, p := range list {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}

func prefixesSet(cmd *cobra.Command, args []string) error {
	var text string
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		if cmd.InOrStdin() == os.Stdin && stdinIsTerminal() {
			fmt.Fprintln(cmd.ErrOrStderr(), "Enter one prefix per line, then Ctrl+D.")
		}
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		text = string(data)
	} else {
		text = prefixes.FormatInput(args)
	}
	return editPrefixes(cmd, func([]string) []string { return prefixes.ParseInput(text) })
}

func prefixesAdd(cmd *cobra.Command, args []string) error {
	return editPrefixes(cmd, func(current []string) []string {
		return prefixes.ParseInput(prefixes.FormatInput(append(current, args...)))
	})
}

func prefixesRemove(cmd *cobra.Command, args []string) error {
	drop := make(map[string]bool, len(args))
	for _, p := range prefixes.ParseInput(prefixes.FormatInput(args)) {
		drop[p] = true
	}
	return editPrefixes(cmd, func(current []string) []string {
		out := []string{}
		for _, p := range current {
			if !drop[p] {
				out = append(out, p)
			}
		}
		return out
	})
}

// editPrefixes loads the list, applies edit, saves and notifies running engines.
func editPrefixes(cmd *cobra.Command, edit func([]string) []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	backend, err := prefixes.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	current, err := backend.Load(ctx)
	if err != nil {
		return err
	}
	next := edit(current)
	if err := backend.Save(ctx, next); err != nil {
		return err
	}
	logger.Info("prefixes saved", zap.Strings("prefixes", next))
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d prefixes.\n", len(next))

	if prefixesNoNotify {
		return nil
	}
	n, err := notify.Broadcast(ctx, cfg.Notify.RunDir, cfg.GetNotifyTimeout())
	if err != nil {
		logger.Warn("notify failed", zap.Error(err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), notifiedSummary(n))
	return nil
}

func notifiedSummary(n int) string {
	if n == 0 {
		return "No running engine was reached; changes apply when one starts."
	}
	return fmt.Sprintf("Applied to %d running engine(s).", n)
}

// stdinIsTerminal reports whether stdin is interactive.
func stdinIsTerminal() bool {
	fi, err := os.Stdin.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
