package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sidebarHTML = `<html><body>
<nav class="p-channel_sidebar">
  <div class="row"><span class="p-channel_sidebar__name">team-design</span></div>
  <div class="row"><span class="p-channel_sidebar__name">general</span></div>
</nav>
<main><span class="p-channel_sidebar__name">outside</span></main>
</body></html>`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := ParseString(s)
	require.NoError(t, err)
	return doc
}

func TestParseAndQuery(t *testing.T) {
	doc := mustParse(t, sidebarHTML)

	names := doc.QuerySelectorAll(MustParseSelector(".p-channel_sidebar__name"))
	require.Len(t, names, 3)
	assert.Equal(t, "team-design", names[0].Text())
	assert.Equal(t, "general", names[1].Text())
	assert.Equal(t, "outside", names[2].Text())
	for _, n := range names {
		assert.True(t, n.Connected())
	}

	roots := doc.QuerySelectorAll(MustParseSelector("nav.p-channel_sidebar"))
	require.Len(t, roots, 1)
	assert.Len(t, roots[0].QuerySelectorAll(MustParseSelector("span")), 2)
}

func TestSelectorParsing(t *testing.T) {
	tests := []struct {
		name    string
		sel     string
		wantErr bool
	}{
		{name: "class", sel: ".a"},
		{name: "tag and classes", sel: "span.a.b"},
		{name: "id", sel: "#main"},
		{name: "list", sel: ".a, .b"},
		{name: "descendant", sel: ".a .b", wantErr: true},
		{name: "empty item", sel: ".a,", wantErr: true},
		{name: "empty class", sel: "span.", wantErr: true},
		{name: "attribute", sel: "[data-x]", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSelector(tt.sel)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSetTextRecordsChildList(t *testing.T) {
	doc := mustParse(t, sidebarHTML)
	nav := doc.QuerySelectorAll(MustParseSelector(".p-channel_sidebar"))[0]
	span := nav.QuerySelector(MustParseSelector(".p-channel_sidebar__name"))

	var got [][]Record
	obs := doc.NewObserver(func(r []Record) { got = append(got, r) })
	obs.Observe(nav)

	require.NoError(t, span.SetText("design"))
	assert.Equal(t, "design", span.Text())
	assert.Empty(t, got, "delivery is deferred")

	doc.DeliverMutations()
	require.Len(t, got, 1)
	require.Len(t, got[0], 1)
	rec := got[0][0]
	assert.Equal(t, ChildList, rec.Kind)
	assert.Same(t, span, rec.Target)
	require.Len(t, rec.Added, 1)
	assert.Equal(t, TextNode, rec.Added[0].Type())
	require.Len(t, rec.Removed, 1)
	assert.Equal(t, "team-design", rec.Removed[0].Data())
}

func TestSetDataRecordsCharacterData(t *testing.T) {
	doc := mustParse(t, sidebarHTML)
	nav := doc.QuerySelectorAll(MustParseSelector(".p-channel_sidebar"))[0]
	span := nav.QuerySelector(MustParseSelector(".p-channel_sidebar__name"))
	text := span.Children()[0]

	obs := doc.NewObserver(func([]Record) {})
	obs.Observe(nav)
	text.SetData("team-research")

	records := obs.TakeRecords()
	require.Len(t, records, 1)
	assert.Equal(t, CharacterData, records[0].Kind)
	assert.Same(t, text, records[0].Target)
	assert.Equal(t, "team-research", span.Text())
}

func TestObserverIgnoresOutsideMutations(t *testing.T) {
	doc := mustParse(t, sidebarHTML)
	nav := doc.QuerySelectorAll(MustParseSelector(".p-channel_sidebar"))[0]
	outside := doc.QuerySelectorAll(MustParseSelector("main"))[0]

	obs := doc.NewObserver(func([]Record) {})
	obs.Observe(nav)
	outside.AppendChild(doc.CreateElement("p"))

	assert.Empty(t, obs.TakeRecords())
}

func TestRemoveDetachesSubtree(t *testing.T) {
	doc := mustParse(t, sidebarHTML)
	row := doc.QuerySelectorAll(MustParseSelector(".row"))[0]
	span := row.QuerySelector(MustParseSelector("span"))

	row.Remove()
	assert.False(t, row.Connected())
	assert.False(t, span.Connected())
	assert.Equal(t, "team-design", span.Text(), "detached subtree keeps its content")
	assert.ErrorIs(t, doc.Body().RemoveChild(row), ErrNotChild)
}

func TestSchedulerDefersDelivery(t *testing.T) {
	doc := mustParse(t, sidebarHTML)
	nav := doc.QuerySelectorAll(MustParseSelector(".p-channel_sidebar"))[0]

	var scheduled []func()
	doc.SetScheduler(func(fn func()) bool {
		scheduled = append(scheduled, fn)
		return true
	})

	batches := 0
	obs := doc.NewObserver(func([]Record) { batches++ })
	obs.Observe(nav)

	for i := 0; i < 10; i++ {
		nav.AppendChild(doc.CreateElement("div"))
	}
	require.Len(t, scheduled, 1, "one delivery per batch")
	assert.Equal(t, 10, doc.PendingRecords())

	scheduled[0]()
	assert.Equal(t, 1, batches)
	assert.Zero(t, doc.PendingRecords())
}

func TestDisconnectDropsQueue(t *testing.T) {
	doc := mustParse(t, sidebarHTML)
	nav := doc.QuerySelectorAll(MustParseSelector(".p-channel_sidebar"))[0]

	called := false
	obs := doc.NewObserver(func([]Record) { called = true })
	obs.Observe(nav)
	nav.AppendChild(doc.CreateElement("div"))
	obs.Disconnect()
	doc.DeliverMutations()

	assert.False(t, called)
}

func TestRenderRoundTrip(t *testing.T) {
	doc := mustParse(t, `<div class="p-channel_sidebar"><span class="p-channel_sidebar__name">a</span></div>`)
	span := doc.QuerySelectorAll(MustParseSelector("span"))[0]
	require.NoError(t, span.SetText("b"))

	out, err := span.OuterHTML()
	require.NoError(t, err)
	assert.Equal(t, `<span class="p-channel_sidebar__name">b</span>`, out)

	full, err := doc.HTML()
	require.NoError(t, err)
	assert.Contains(t, full, `<div class="p-channel_sidebar"><span class="p-channel_sidebar__name">b</span></div>`)
}
