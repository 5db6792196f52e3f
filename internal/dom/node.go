// Package dom is a small in-memory UI tree with DOM-like mutation observers.
//
// It stands in for a browser page: documents are parsed from HTML, mutated through
// element and text node operations, and every change is reported to observers as
// childList or characterData records, delivered asynchronously in batches.
// A Document is not safe for concurrent use; drive it from a single goroutine.
package dom

import (
	"errors"
	"strings"
)

// ErrDetached is returned when an operation needs a node that is part of a document tree.
var ErrDetached = errors.New("dom: node is not attached")

// ErrNotChild is returned when removing a node from a parent it does not belong to.
var ErrNotChild = errors.New("dom: node is not a child of this parent")

// NodeType distinguishes document, element and text nodes.
type NodeType int

const (
	DocumentNode NodeType = iota
	ElementNode
	TextNode
)

// Node is a node of a Document. Pointer identity is node identity.
type Node struct {
	doc      *Document
	typ      NodeType
	tag      string
	attrs    []Attr
	data     string
	parent   *Node
	children []*Node
}

// Attr is an element attribute.
type Attr struct {
	Key string
	Val string
}

// Type returns the node type.
func (n *Node) Type() NodeType { return n.typ }

// Tag returns the lower-case element name, or "" for non-elements.
func (n *Node) Tag() string { return n.tag }

// Parent returns the parent node or nil.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// Attr returns the value of attribute key.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets attribute key. Attribute changes are not observed.
func (n *Node) SetAttr(key, val string) {
	for i, a := range n.attrs {
		if a.Key == key {
			n.attrs[i].Val = val
			return
		}
	}
	n.attrs = append(n.attrs, Attr{Key: key, Val: val})
}

// ID returns the id attribute.
func (n *Node) ID() string {
	v, _ := n.Attr("id")
	return v
}

// HasClass reports whether the class attribute contains class.
func (n *Node) HasClass(class string) bool {
	v, ok := n.Attr("class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// Data returns the character data of a text node.
func (n *Node) Data() string { return n.data }

// Connected reports whether n is reachable from its document root.
func (n *Node) Connected() bool {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur.typ == DocumentNode && cur.doc != nil && cur == cur.doc.root
}

// Text returns the concatenated character data of n and its descendants.
func (n *Node) Text() string {
	if n.typ == TextNode {
		return n.data
	}
	var b strings.Builder
	n.collectText(&b)
	return b.String()
}

// ReadText implements labels.Label. Reading an in-memory node cannot fail.
func (n *Node) ReadText() (string, error) {
	return n.Text(), nil
}

func (n *Node) collectText(b *strings.Builder) {
	for _, c := range n.children {
		if c.typ == TextNode {
			b.WriteString(c.data)
			continue
		}
		c.collectText(b)
	}
}

// SetText replaces the children of n with a single text node holding text, the way
// assigning textContent does in a browser. For text nodes it behaves like SetData.
func (n *Node) SetText(text string) error {
	if n.typ == TextNode {
		n.SetData(text)
		return nil
	}
	removed := n.children
	n.children = nil
	for _, c := range removed {
		c.parent = nil
	}

	var added []*Node
	if text != "" {
		t := n.doc.CreateText(text)
		t.parent = n
		n.children = []*Node{t}
		added = []*Node{t}
	}
	if len(removed) > 0 || len(added) > 0 {
		n.doc.record(Record{Kind: ChildList, Target: n, Added: added, Removed: removed})
	}
	return nil
}

// SetData changes the character data of a text node.
func (n *Node) SetData(data string) {
	if n.typ != TextNode {
		return
	}
	n.data = data
	n.doc.record(Record{Kind: CharacterData, Target: n})
}

// AppendChild appends child to n, detaching it from any previous parent first.
func (n *Node) AppendChild(child *Node) {
	n.InsertBefore(child, nil)
}

// InsertBefore inserts child before ref, or at the end when ref is nil.
func (n *Node) InsertBefore(child, ref *Node) {
	if child.parent != nil {
		_ = child.parent.RemoveChild(child)
	}
	idx := len(n.children)
	if ref != nil {
		for i, c := range n.children {
			if c == ref {
				idx = i
				break
			}
		}
	}
	n.children = append(n.children, nil)
	copy(n.children[idx+1:], n.children[idx:])
	n.children[idx] = child
	child.parent = n
	n.doc.record(Record{Kind: ChildList, Target: n, Added: []*Node{child}})
}

// RemoveChild detaches child from n.
func (n *Node) RemoveChild(child *Node) error {
	for i, c := range n.children {
		if c != child {
			continue
		}
		n.children = append(n.children[:i], n.children[i+1:]...)
		child.parent = nil
		n.doc.record(Record{Kind: ChildList, Target: n, Removed: []*Node{child}})
		return nil
	}
	return ErrNotChild
}

// Remove detaches n from its parent, if any.
func (n *Node) Remove() {
	if n.parent != nil {
		_ = n.parent.RemoveChild(n)
	}
}

// ReplaceChildren swaps all children of n for nodes in one record.
func (n *Node) ReplaceChildren(nodes ...*Node) {
	for _, c := range nodes {
		if c.parent != nil {
			_ = c.parent.RemoveChild(c)
		}
	}
	removed := n.children
	for _, c := range removed {
		c.parent = nil
	}
	n.children = append([]*Node(nil), nodes...)
	for _, c := range nodes {
		c.parent = n
	}
	n.doc.record(Record{Kind: ChildList, Target: n, Added: nodes, Removed: removed})
}

// contains reports whether other is n or one of its descendants.
func (n *Node) contains(other *Node) bool {
	for cur := other; cur != nil; cur = cur.parent {
		if cur == n {
			return true
		}
	}
	return false
}

// walk visits n and its descendants in document order until fn returns false.
func (n *Node) walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !c.walk(fn) {
			return false
		}
	}
	return true
}
