package dom

import (
	"fmt"

	"prefixhider/internal/labels"
)

// Tree exposes a Document to the label engine. Roots and labels are found with the
// configured selectors; every *Node is its own labels.Node handle.
type Tree struct {
	doc      *Document
	rootSel  Selector
	labelSel Selector
}

var _ labels.Tree = (*Tree)(nil)

// NewTree creates a labels.Tree over doc.
func NewTree(doc *Document, rootSelector, labelSelector string) (*Tree, error) {
	rootSel, err := ParseSelector(rootSelector)
	if err != nil {
		return nil, fmt.Errorf("root selector: %w", err)
	}
	labelSel, err := ParseSelector(labelSelector)
	if err != nil {
		return nil, fmt.Errorf("label selector: %w", err)
	}
	return &Tree{doc: doc, rootSel: rootSel, labelSel: labelSel}, nil
}

// Document returns the underlying document.
func (t *Tree) Document() *Document { return t.doc }

// Roots returns the elements matching the root selector.
func (t *Tree) Roots() ([]labels.Node, error) {
	found := t.doc.QuerySelectorAll(t.rootSel)
	out := make([]labels.Node, 0, len(found))
	for _, n := range found {
		out = append(out, n)
	}
	return out, nil
}

// Labels returns every element in the document matching the label selector.
func (t *Tree) Labels() []labels.Label {
	return toLabels(t.doc.QuerySelectorAll(t.labelSel))
}

// LabelsWithin returns n (if it is a label) and its matching descendants.
func (t *Tree) LabelsWithin(n labels.Node) []labels.Label {
	node, ok := n.(*Node)
	if !ok || node.typ != ElementNode {
		return nil
	}
	var found []*Node
	if t.labelSel.Matches(node) {
		found = append(found, node)
	}
	found = append(found, node.QuerySelectorAll(t.labelSel)...)
	return toLabels(found)
}

// TextOwner returns the parent of text node n when the parent is a label.
func (t *Tree) TextOwner(n labels.Node) (labels.Label, bool) {
	node, ok := n.(*Node)
	if !ok || node.typ != TextNode || node.parent == nil {
		return nil, false
	}
	if !t.labelSel.Matches(node.parent) {
		return nil, false
	}
	return node.parent, true
}

// IsLabel reports whether n matches the label selector.
func (t *Tree) IsLabel(n *Node) bool {
	return t.labelSel.Matches(n)
}

// Observe attaches one observer to all roots and translates its records.
func (t *Tree) Observe(roots []labels.Node, fn func([]labels.Mutation)) (labels.Subscription, error) {
	obs := t.doc.NewObserver(func(records []Record) {
		fn(toMutations(records))
	})
	for _, r := range roots {
		node, ok := r.(*Node)
		if !ok {
			obs.Disconnect()
			return nil, fmt.Errorf("dom: foreign root %T", r)
		}
		obs.Observe(node)
	}
	return obs, nil
}

func toLabels(nodes []*Node) []labels.Label {
	out := make([]labels.Label, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	return out
}

func toNodes(nodes []*Node) []labels.Node {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]labels.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	return out
}

func toMutations(records []Record) []labels.Mutation {
	out := make([]labels.Mutation, 0, len(records))
	for _, r := range records {
		m := labels.Mutation{Target: r.Target, Added: toNodes(r.Added), Removed: toNodes(r.Removed)}
		if r.Kind == CharacterData {
			m.Kind = labels.TextMutation
		} else {
			m.Kind = labels.ChildListMutation
		}
		out = append(out, m)
	}
	return out
}
