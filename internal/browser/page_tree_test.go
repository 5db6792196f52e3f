package browser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prefixhider/internal/labels"
)

func newDetachedTree() *PageTree {
	return &PageTree{nodes: make(map[string]*pageNode)}
}

func TestToMutationsClassifiesRecords(t *testing.T) {
	tree := newDetachedTree()

	raw := `{"live":true,"batches":[[
		{"kind":"childList","added":[["e:2","e:3"],[]],"removed":[["e:4"]]},
		{"kind":"text","owner":"e:2"},
		{"kind":"text","owner":""}
	]]}`
	var res drainResult
	require.NoError(t, json.Unmarshal([]byte(raw), &res))
	require.True(t, res.Live)
	require.Len(t, res.Batches, 1)

	muts := tree.toMutations(res.Batches[0])
	require.Len(t, muts, 3)

	assert.Equal(t, labels.ChildListMutation, muts[0].Kind)
	assert.Nil(t, muts[0].Target)
	assert.Empty(t, tree.nodes, "nothing is interned until labels are read")
	require.Len(t, muts[0].Added, 2)
	added := tree.LabelsWithin(muts[0].Added[0])
	require.Len(t, added, 2)
	assert.Same(t, tree.node("e:2"), added[0], "labels are interned by id")
	assert.Empty(t, tree.LabelsWithin(muts[0].Added[1]))
	removed := tree.LabelsWithin(muts[0].Removed[0])
	require.Len(t, removed, 1)
	assert.Same(t, tree.node("e:4"), removed[0])

	assert.Equal(t, labels.TextMutation, muts[1].Kind)
	owner, ok := tree.TextOwner(muts[1].Target)
	require.True(t, ok)
	assert.Same(t, tree.node("e:2"), owner)

	_, ok = tree.TextOwner(muts[2].Target)
	assert.False(t, ok, "text outside any label has no owner")
}

func TestToMutationsIgnoresUnknownKinds(t *testing.T) {
	tree := newDetachedTree()
	muts := tree.toMutations([]rawRecord{{Kind: "attributes", Owner: "e:1"}})
	assert.Empty(t, muts)
}

func TestForgetEvictsHandle(t *testing.T) {
	tree := newDetachedTree()
	removed := tree.LabelsWithin(&subtree{labels: []string{"e:4", "e:5"}})
	require.Len(t, removed, 2)
	require.Len(t, tree.nodes, 2)

	tree.Forget(removed[0])
	assert.NotContains(t, tree.nodes, "e:4")
	assert.Contains(t, tree.nodes, "e:5")
	assert.NotSame(t, removed[0], tree.node("e:4"), "a forgotten id gets a fresh handle")

	tree.Forget(newDetachedTree().node("e:5")) // foreign handles are ignored
	assert.Contains(t, tree.nodes, "e:5")

	assert.Equal(t, []string{"e:4"}, tree.takeReleased())
	assert.Empty(t, tree.takeReleased(), "released ids are handed over once")

	tree.release("e:9")
	assert.Equal(t, []string{"e:9"}, tree.takeReleased())
}

func TestObserveRejectsForeignRoots(t *testing.T) {
	a, b := newDetachedTree(), newDetachedTree()
	_, err := a.Observe([]labels.Node{b.node("e:1")}, func([]labels.Mutation) {})
	assert.Error(t, err)
}

func TestParseFlag(t *testing.T) {
	tests := []struct {
		raw    string
		name   string
		val    string
		hasVal bool
	}{
		{"--headless", "headless", "", false},
		{"--window-size=800,600", "window-size", "800,600", true},
		{"  -no-sandbox ", "no-sandbox", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		name, val, hasVal := parseFlag(tt.raw)
		assert.Equal(t, tt.name, name, tt.raw)
		assert.Equal(t, tt.val, val, tt.raw)
		assert.Equal(t, tt.hasVal, hasVal, tt.raw)
	}
}

func TestMatchesURL(t *testing.T) {
	assert.True(t, matchesURL("https://app.slack.com/client/T1/C2", "app.slack.com"))
	assert.False(t, matchesURL("https://example.com", "app.slack.com"))
	assert.True(t, matchesURL("about:blank", ""))
}
