package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document owns a node tree and its mutation observers.
type Document struct {
	root      *Node
	observers []*Observer

	// schedule arranges a later call to DeliverMutations. Nil means callers deliver by hand.
	schedule  func(func()) bool
	scheduled bool
}

// NewDocument creates an empty document with html, head and body elements.
func NewDocument() *Document {
	d := &Document{}
	d.root = &Node{doc: d, typ: DocumentNode}
	htmlEl := d.CreateElement("html")
	htmlEl.parent = d.root
	d.root.children = []*Node{htmlEl}
	head := d.CreateElement("head")
	body := d.CreateElement("body")
	head.parent, body.parent = htmlEl, htmlEl
	htmlEl.children = []*Node{head, body}
	return d
}

// Parse builds a document from HTML.
func Parse(r io.Reader) (*Document, error) {
	src, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	d := &Document{}
	d.root = &Node{doc: d, typ: DocumentNode}
	d.adopt(d.root, src)
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func (d *Document) adopt(dst *Node, src *html.Node) {
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		var n *Node
		switch c.Type {
		case html.ElementNode:
			n = d.CreateElement(c.Data)
			for _, a := range c.Attr {
				n.attrs = append(n.attrs, Attr{Key: a.Key, Val: a.Val})
			}
			d.adopt(n, c)
		case html.TextNode:
			n = d.CreateText(c.Data)
		default:
			continue
		}
		n.parent = dst
		dst.children = append(dst.children, n)
	}
}

// SetScheduler installs the function used to defer mutation delivery, typically a
// loop's Post. Records queued before the call are delivered at the next mutation.
func (d *Document) SetScheduler(schedule func(func()) bool) {
	d.schedule = schedule
}

// Root returns the document node.
func (d *Document) Root() *Node { return d.root }

// Body returns the body element, if present.
func (d *Document) Body() *Node {
	return d.root.QuerySelector(MustParseSelector("body"))
}

// CreateElement creates a detached element. classes are joined into the class attribute.
func (d *Document) CreateElement(tag string, classes ...string) *Node {
	n := &Node{doc: d, typ: ElementNode, tag: strings.ToLower(tag)}
	if len(classes) > 0 {
		n.attrs = append(n.attrs, Attr{Key: "class", Val: strings.Join(classes, " ")})
	}
	return n
}

// CreateText creates a detached text node.
func (d *Document) CreateText(data string) *Node {
	return &Node{doc: d, typ: TextNode, data: data}
}

// QuerySelectorAll queries the whole document.
func (d *Document) QuerySelectorAll(sel Selector) []*Node {
	return d.root.QuerySelectorAll(sel)
}

// HTML renders the document.
func (d *Document) HTML() (string, error) {
	var b strings.Builder
	for _, c := range d.root.children {
		if err := html.Render(&b, toHTML(c)); err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
	}
	return b.String(), nil
}

// OuterHTML renders n and its subtree.
func (n *Node) OuterHTML() (string, error) {
	var b strings.Builder
	if err := html.Render(&b, toHTML(n)); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return b.String(), nil
}

func toHTML(n *Node) *html.Node {
	var out *html.Node
	switch n.typ {
	case TextNode:
		return &html.Node{Type: html.TextNode, Data: n.data}
	case DocumentNode:
		out = &html.Node{Type: html.DocumentNode}
	default:
		out = &html.Node{Type: html.ElementNode, Data: n.tag, DataAtom: atom.Lookup([]byte(n.tag))}
		for _, a := range n.attrs {
			out.Attr = append(out.Attr, html.Attribute{Key: a.Key, Val: a.Val})
		}
	}
	for _, c := range n.children {
		out.AppendChild(toHTML(c))
	}
	return out
}
