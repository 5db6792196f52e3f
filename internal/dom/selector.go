package dom

import (
	"fmt"
	"strings"
)

// Selector is a parsed selector list of compound selectors such as
// "span.p-channel_sidebar__name, #sidebar". Combinators are not supported.
type Selector struct {
	raw   string
	parts []compound
}

type compound struct {
	tag     string
	id      string
	classes []string
}

// ParseSelector parses a comma-separated list of compound selectors.
func ParseSelector(s string) (Selector, error) {
	sel := Selector{raw: s}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			return Selector{}, fmt.Errorf("dom: empty selector in %q", s)
		}
		if strings.ContainsAny(item, " >+~[]:*") {
			return Selector{}, fmt.Errorf("dom: unsupported selector %q", item)
		}
		c, err := parseCompound(item)
		if err != nil {
			return Selector{}, err
		}
		sel.parts = append(sel.parts, c)
	}
	return sel, nil
}

// MustParseSelector is ParseSelector that panics on error; for constants and tests.
func MustParseSelector(s string) Selector {
	sel, err := ParseSelector(s)
	if err != nil {
		panic(err)
	}
	return sel
}

func parseCompound(item string) (compound, error) {
	var c compound
	i := 0
	for i < len(item) && item[i] != '.' && item[i] != '#' {
		i++
	}
	c.tag = strings.ToLower(item[:i])
	for i < len(item) {
		kind := item[i]
		j := i + 1
		for j < len(item) && item[j] != '.' && item[j] != '#' {
			j++
		}
		name := item[i+1 : j]
		if name == "" {
			return compound{}, fmt.Errorf("dom: empty name in selector %q", item)
		}
		if kind == '.' {
			c.classes = append(c.classes, name)
		} else {
			c.id = name
		}
		i = j
	}
	return c, nil
}

// String returns the selector source.
func (s Selector) String() string { return s.raw }

// Matches reports whether element n matches any compound of the list.
func (s Selector) Matches(n *Node) bool {
	if n == nil || n.typ != ElementNode {
		return false
	}
	for _, c := range s.parts {
		if c.matches(n) {
			return true
		}
	}
	return false
}

func (c compound) matches(n *Node) bool {
	if c.tag != "" && c.tag != n.tag {
		return false
	}
	if c.id != "" && n.ID() != c.id {
		return false
	}
	for _, cls := range c.classes {
		if !n.HasClass(cls) {
			return false
		}
	}
	return true
}

// QuerySelectorAll returns the descendants of n (n excluded) matching sel, in document order.
func (n *Node) QuerySelectorAll(sel Selector) []*Node {
	var out []*Node
	for _, c := range n.children {
		c.walk(func(m *Node) bool {
			if sel.Matches(m) {
				out = append(out, m)
			}
			return true
		})
	}
	return out
}

// QuerySelector returns the first descendant of n matching sel.
func (n *Node) QuerySelector(sel Selector) *Node {
	var found *Node
	for _, c := range n.children {
		if !c.walk(func(m *Node) bool {
			if sel.Matches(m) {
				found = m
				return false
			}
			return true
		}) {
			break
		}
	}
	return found
}
