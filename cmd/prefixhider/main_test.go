package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prefixhider/internal/browser"
	"prefixhider/internal/config"
	"prefixhider/internal/prefixes"
	"prefixhider/internal/simulate"
)

func TestNotifiedSummary(t *testing.T) {
	assert.Contains(t, notifiedSummary(0), "No running engine")
	assert.Equal(t, "Applied to 2 running engine(s).", notifiedSummary(2))
}

func TestSettingsBackendSave(t *testing.T) {
	dir := t.TempDir()
	c := config.DefaultConfigIn(dir)
	c.Notify.RunDir = filepath.Join(dir, "run")
	store := prefixes.NewFileSource(filepath.Join(dir, "prefixes.yaml"))

	b := &settingsBackend{store: store, cfg: c}
	n, err := b.Save(context.Background(), "  team-\n\nteam-\nproj-  \n")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"team-", "proj-"}, got)
}

func TestSettingsBackendBroadcastFailureFailsSave(t *testing.T) {
	dir := t.TempDir()
	c := config.DefaultConfigIn(dir)
	c.Notify.RunDir = filepath.Join(dir, "bad[") // not a valid glob
	store := prefixes.NewFileSource(filepath.Join(dir, "prefixes.yaml"))

	b := &settingsBackend{store: store, cfg: c}
	_, err := b.Save(context.Background(), "team-")
	require.Error(t, err)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"team-"}, got, "the list itself is stored")
}

func TestStatusMarkdown(t *testing.T) {
	c := config.DefaultConfigIn(t.TempDir())

	md := statusMarkdown(c, "/etc/ph.yaml", []string{"team-"}, nil, 1, nil, nil)
	assert.Contains(t, md, "`/etc/ph.yaml`")
	assert.Contains(t, md, "- `team-`")
	assert.Contains(t, md, "1 running engine(s)")
	assert.NotContains(t, md, "Browser pages")

	md = statusMarkdown(c, "x", nil, errors.New("boom"), 0, nil, nil)
	assert.Contains(t, md, "Failed to load: boom")

	md = statusMarkdown(c, "x", nil, nil, 0, nil, nil)
	assert.Contains(t, md, "No prefixes configured")

	c.Browser.DebuggerURL = "ws://127.0.0.1:9222"
	md = statusMarkdown(c, "x", nil, nil, 0, []browser.PageInfo{{Title: "Slack", URL: "https://app.slack.com/client"}}, nil)
	assert.Contains(t, md, "- Slack (https://app.slack.com/client)")
}

func TestPrintResults(t *testing.T) {
	results := []simulate.StepResult{
		{Step: 0, Note: "initial", Texts: []string{"ops", "alpha"}},
		{Step: 1, Texts: []string{"beta"}},
	}
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	simJSON = false
	printResults(cmd, results)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"step 0: initial", "  ops | alpha", "step 1", "  beta"}, lines)

	buf.Reset()
	simJSON = true
	t.Cleanup(func() { simJSON = false })
	printResults(cmd, results)
	assert.Contains(t, buf.String(), `"note": "initial"`)
}
