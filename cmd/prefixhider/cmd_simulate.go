package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"prefixhider/internal/prefixes"
	"prefixhider/internal/simulate"
)

var (
	simPrefixes []string
	simScenario string
	simOutput   string
	simJSON     bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [page.html]",
	Short: "Run the engine against a saved HTML page",
	Long: `Loads an HTML file into an in-memory document, runs the engine over it and
prints the resulting label texts. With --scenario, applies a YAML list of edits
(set_text, set_data, append, remove, prefixes) and prints the labels after each.

Without --prefix the stored prefix list is used.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringSliceVarP(&simPrefixes, "prefix", "p", nil, "Prefix to hide (repeatable; overrides the store)")
	simulateCmd.Flags().StringVar(&simScenario, "scenario", "", "YAML scenario of edits to apply")
	simulateCmd.Flags().StringVarP(&simOutput, "output", "o", "", "Write the final document to this file")
	simulateCmd.Flags().BoolVar(&simJSON, "json", false, "Print results as JSON")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	list := simPrefixes
	if !cmd.Flags().Changed("prefix") {
		backend, err := prefixes.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer backend.Close()
		if list, err = backend.Load(ctx); err != nil {
			return err
		}
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	sim, err := simulate.New(f, cfg.Selectors.Root, cfg.Selectors.Label, list)
	if err != nil {
		return err
	}
	logger.Debug("simulation started", zap.Strings("prefixes", list), zap.Int("labels", len(sim.Texts())))

	results := []simulate.StepResult{{Step: 0, Note: "initial", Texts: sim.Texts()}}
	if simScenario != "" {
		sc, err := simulate.LoadScenario(simScenario)
		if err != nil {
			return err
		}
		steps, err := sim.Run(sc)
		results = append(results, steps...)
		if err != nil {
			printResults(cmd, results)
			return err
		}
	}
	printResults(cmd, results)

	if simOutput != "" {
		out, err := sim.HTML()
		if err != nil {
			return err
		}
		if err := os.WriteFile(simOutput, []byte(out), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", simOutput, err)
		}
	}
	return nil
}

func printResults(cmd *cobra.Command, results []simulate.StepResult) {
	w := cmd.OutOrStdout()
	if simJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(results)
		return
	}
	for _, r := range results {
		header := fmt.Sprintf("step %d", r.Step)
		if r.Note != "" {
			header += ": " + r.Note
		}
		fmt.Fprintln(w, header)
		fmt.Fprintf(w, "  %s\n", strings.Join(r.Texts, " | "))
	}
}
