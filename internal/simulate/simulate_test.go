package simulate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><body>
<nav class="p-channel_sidebar">
  <span class="p-channel_sidebar__name">team-design</span>
  <span class="p-channel_sidebar__name">proj alpha</span>
  <span class="p-channel_sidebar__name">random</span>
</nav>
</body></html>`

func newSim(t *testing.T, prefixes ...string) *Simulator {
	t.Helper()
	s, err := New(strings.NewReader(page), ".p-channel_sidebar", ".p-channel_sidebar__name", prefixes)
	require.NoError(t, err)
	return s
}

func TestNewStripsOnStart(t *testing.T) {
	s := newSim(t, "team", "proj")
	assert.Equal(t, []string{"design", "alpha", "random"}, s.Texts())

	out, err := s.HTML()
	require.NoError(t, err)
	assert.Contains(t, out, `<span class="p-channel_sidebar__name">design</span>`)
}

func TestScenarioSteps(t *testing.T) {
	s := newSim(t, "team")

	prefixes := []string{"proj"}
	results, err := s.Run(&Scenario{Steps: []Step{
		{Note: "host rewrites", SetText: &TextEdit{Label: 0, Text: "team-ops"}},
		{Note: "switch list", Prefixes: &prefixes},
		{Note: "new channel", Append: &AppendOp{Text: "proj_beta"}},
		{Note: "edit in place", SetData: &TextEdit{Label: 2, Text: "proj-random"}},
		{Note: "leave", Remove: &LabelRef{Label: 0}},
	}})
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.Equal(t, []string{"ops", "proj alpha", "random"}, results[0].Texts)
	assert.Equal(t, []string{"team-ops", "alpha", "random"}, results[1].Texts, "originals come back")
	assert.Equal(t, []string{"team-ops", "alpha", "random", "beta"}, results[2].Texts)
	assert.Equal(t, []string{"team-ops", "alpha", "random", "beta"}, results[3].Texts)
	assert.Equal(t, []string{"alpha", "random", "beta"}, results[4].Texts)
	assert.Equal(t, 3, s.Engine().Store().Len(), "removed label is forgotten")
}

func TestScenarioOutOfRange(t *testing.T) {
	s := newSim(t)
	_, err := s.Run(&Scenario{Steps: []Step{{Remove: &LabelRef{Label: 9}}}})
	assert.Error(t, err)
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
steps:
  - note: rename
    set_text: {label: 1, text: proj-gamma}
  - prefixes: []
`), 0644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	require.Len(t, sc.Steps, 2)
	require.NotNil(t, sc.Steps[0].SetText)
	assert.Equal(t, "proj-gamma", sc.Steps[0].SetText.Text)
	require.NotNil(t, sc.Steps[1].Prefixes)
	assert.Empty(t, *sc.Steps[1].Prefixes)
}
