// Package labels keeps the visible text of host-owned UI labels in sync with a prefix list.
//
// The host tree is owned by someone else (a browser page, an in-memory document) and is
// mutated at any time. The package remembers each label's original text, rewrites the
// displayed text with the first matching prefix removed, and re-derives the display when
// either the prefix list or the host text changes.
//
// All types in this package are confined to the goroutine running the Loop. Collaborators
// on other goroutines hand work to the core with Loop.Post.
package labels

// Node is an opaque handle to a node of the host tree.
// Implementations must be comparable; the handle is the node's identity.
type Node interface {
	// Connected reports whether the node is still attached to the live tree.
	Connected() bool
}

// Label is a host node that carries visible text.
type Label interface {
	Node
	// ReadText returns the label's current text. A failed read must return an error,
	// never a placeholder: the result may become the label's original.
	ReadText() (string, error)
	SetText(text string) error
}

// MutationKind classifies a mutation record.
type MutationKind int

const (
	// ChildListMutation reports nodes inserted under or removed from Target.
	ChildListMutation MutationKind = iota
	// TextMutation reports that the character data of Target changed.
	TextMutation
)

func (k MutationKind) String() string {
	switch k {
	case ChildListMutation:
		return "childList"
	case TextMutation:
		return "characterData"
	default:
		return "unknown"
	}
}

// Mutation is one record of a notification batch. Target may be nil for
// ChildListMutation; only Added and Removed are read.
type Mutation struct {
	Kind    MutationKind
	Target  Node
	Added   []Node
	Removed []Node
}

// Forgetter is implemented by trees that keep handles of their own for labels.
// The watcher calls Forget after a label left the tree and its state was dropped.
type Forgetter interface {
	Forget(l Label)
}

// Subscription is a live mutation subscription.
type Subscription interface {
	Disconnect()
}

// Tree is the host tree as seen by the engine.
type Tree interface {
	// Roots returns the nodes matching the root selection criterion.
	Roots() ([]Node, error)
	// Labels returns every label currently in the tree, queried fresh.
	Labels() []Label
	// LabelsWithin returns the labels in the subtree rooted at n, n included.
	// It must also work for a subtree that was just detached.
	LabelsWithin(n Node) []Label
	// TextOwner returns the label owning the text node n, if any.
	TextOwner(n Node) (Label, bool)
	// Observe subscribes fn to structural and text mutations under roots.
	// fn must be invoked on the loop goroutine.
	Observe(roots []Node, fn func([]Mutation)) (Subscription, error)
}
