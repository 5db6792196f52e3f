package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"prefixhider/cmd/prefixhider/ui"
	"prefixhider/internal/browser"
	"prefixhider/internal/config"
	"prefixhider/internal/notify"
	"prefixhider/internal/prefixes"
)

var statusRaw bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, stored prefixes and running engines",
	Args:  cobra.NoArgs,
	RunE:  showStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusRaw, "raw", false, "Print markdown without rendering")
}

func showStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var list []string
	var loadErr error
	if backend, err := prefixes.Open(cfg.Store); err != nil {
		loadErr = err
	} else {
		list, loadErr = backend.Load(ctx)
		backend.Close()
	}
	targets, _ := notify.Targets(cfg.Notify.RunDir)

	var pages []browser.PageInfo
	var pagesErr error
	if cfg.Browser.DebuggerURL != "" {
		mgr := browser.NewSessionManager(cfg.Browser)
		if pagesErr = mgr.Start(ctx); pagesErr == nil {
			pages, pagesErr = mgr.Pages(ctx)
			_ = mgr.Shutdown(ctx)
		}
	}

	md := statusMarkdown(cfg, configPath, list, loadErr, len(targets), pages, pagesErr)
	if statusRaw {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}

	style := "light"
	if ui.DetectTheme().IsDark {
		style = "dark"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}
	out, err := renderer.Render(md)
	if err != nil {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

// statusMarkdown renders the status report.
func statusMarkdown(c *config.Config, path string, list []string, loadErr error, engines int, pages []browser.PageInfo, pagesErr error) string {
	var b strings.Builder
	b.WriteString("# prefixhider status\n\n")

	b.WriteString("## Configuration\n\n")
	fmt.Fprintf(&b, "- Config: `%s`\n", path)
	fmt.Fprintf(&b, "- Root selector: `%s`\n", c.Selectors.Root)
	fmt.Fprintf(&b, "- Label selector: `%s`\n", c.Selectors.Label)
	switch c.Store.Source {
	case config.SourceFile:
		fmt.Fprintf(&b, "- Store: file `%s`\n", c.Store.FilePath)
	default:
		fmt.Fprintf(&b, "- Store: sqlite `%s`\n", c.Store.DatabasePath)
	}
	if c.Metrics.Listen != "" {
		fmt.Fprintf(&b, "- Metrics: `%s/metrics`\n", c.Metrics.Listen)
	}

	b.WriteString("\n## Prefixes\n\n")
	switch {
	case loadErr != nil:
		fmt.Fprintf(&b, "Failed to load: %v\n", loadErr)
	case len(list) == 0:
		b.WriteString("_No prefixes configured._\n")
	default:
		for _, p := range list {
			fmt.Fprintf(&b, "- `%s`\n", p)
		}
	}

	b.WriteString("\n## Engines\n\n")
	fmt.Fprintf(&b, "%d running engine(s) listening in `%s`.\n", engines, c.Notify.RunDir)

	if c.Browser.DebuggerURL != "" {
		b.WriteString("\n## Browser pages\n\n")
		switch {
		case pagesErr != nil:
			fmt.Fprintf(&b, "Could not reach `%s`: %v\n", c.Browser.DebuggerURL, pagesErr)
		case len(pages) == 0:
			fmt.Fprintf(&b, "_No page matches `%s`._\n", c.Browser.URLPattern)
		default:
			for _, p := range pages {
				fmt.Fprintf(&b, "- %s (%s)\n", p.Title, p.URL)
			}
		}
	}
	return b.String()
}
