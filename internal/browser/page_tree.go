package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"prefixhider/internal/labels"
	"prefixhider/internal/logging"
)

// DefaultCallTimeout bounds a single call into the page.
const DefaultCallTimeout = 5 * time.Second

// PageTreeOptions configures a PageTree.
type PageTreeOptions struct {
	RootSelector  string
	LabelSelector string

	// Dispatch hands mutation batches to the engine loop.
	Dispatch     func(fn func()) bool
	PollInterval time.Duration
	CallTimeout  time.Duration
}

// PageTree implements labels.Tree over a live page. Its methods, other than the
// internal drain goroutine, run on the engine loop.
type PageTree struct {
	ctx  context.Context
	page *rod.Page
	opts PageTreeOptions

	nodes      map[string]*pageNode
	removeInit func() error

	// released holds ids of forgotten labels, handed to the page on the next drain.
	mu       sync.Mutex
	released []string
}

var (
	_ labels.Tree      = (*PageTree)(nil)
	_ labels.Forgetter = (*PageTree)(nil)
)

// NewPageTree installs the in-page runtime, also on every future document of page.
func NewPageTree(ctx context.Context, page *rod.Page, opts PageTreeOptions) (*PageTree, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	t := &PageTree{
		ctx:   ctx,
		page:  page,
		opts:  opts,
		nodes: make(map[string]*pageNode),
	}

	remove, err := page.Context(ctx).EvalOnNewDocument("(" + runtimeJS + ")()")
	if err != nil {
		return nil, fmt.Errorf("register runtime: %w", err)
	}
	t.removeInit = remove
	if _, err := t.eval(runtimeJS); err != nil {
		_ = remove()
		return nil, fmt.Errorf("install runtime: %w", err)
	}
	return t, nil
}

// Close unregisters the runtime from future documents.
func (t *PageTree) Close() error {
	if t.removeInit == nil {
		return nil
	}
	err := t.removeInit()
	t.removeInit = nil
	return err
}

func (t *PageTree) eval(js string, args ...interface{}) ([]byte, error) {
	ctx, cancel := context.WithTimeout(t.ctx, t.opts.CallTimeout)
	defer cancel()
	res, err := t.page.Context(ctx).Evaluate(rod.Eval(js, args...))
	if err != nil {
		return nil, err
	}
	return res.Value.MarshalJSON()
}

func (t *PageTree) evalInto(out interface{}, js string, args ...interface{}) error {
	raw, err := t.eval(js, args...)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (t *PageTree) node(id string) *pageNode {
	if n, ok := t.nodes[id]; ok {
		return n
	}
	n := &pageNode{tree: t, id: id}
	t.nodes[id] = n
	return n
}

// Forget implements labels.Forgetter. The handle is evicted now; the page drops its
// reference on the next drain if the node is still detached then.
func (t *PageTree) Forget(l labels.Label) {
	pn, ok := l.(*pageNode)
	if !ok || pn.tree != t {
		return
	}
	if t.nodes[pn.id] == pn {
		delete(t.nodes, pn.id)
	}
	t.release(pn.id)
}

func (t *PageTree) release(ids ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.released = append(t.released, ids...)
}

func (t *PageTree) takeReleased() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := t.released
	t.released = nil
	return ids
}

func (t *PageTree) query(sel string) ([]string, error) {
	var ids []string
	err := t.evalInto(&ids, `(sel) => window.__prefixhider.query(sel)`, sel)
	return ids, err
}

// Roots implements labels.Tree.
func (t *PageTree) Roots() ([]labels.Node, error) {
	ids, err := t.query(t.opts.RootSelector)
	if err != nil {
		return nil, err
	}
	out := make([]labels.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.node(id))
	}
	return out, nil
}

// Labels implements labels.Tree.
func (t *PageTree) Labels() []labels.Label {
	ids, err := t.query(t.opts.LabelSelector)
	if err != nil {
		logging.BrowserWarn("label query failed: %v", err)
		return nil
	}
	return t.toLabels(ids)
}

// LabelsWithin implements labels.Tree. Subtrees reported by a mutation batch carry
// the labels found when the record was taken, so detached nodes need no page call.
func (t *PageTree) LabelsWithin(n labels.Node) []labels.Label {
	switch v := n.(type) {
	case *subtree:
		return t.toLabels(v.labels)
	case *pageNode:
		var ids []string
		if err := t.evalInto(&ids, `(id, sel) => window.__prefixhider.within(id, sel)`, v.id, t.opts.LabelSelector); err != nil {
			logging.BrowserWarn("within query failed: %v", err)
			return nil
		}
		return t.toLabels(ids)
	default:
		return nil
	}
}

// TextOwner implements labels.Tree.
func (t *PageTree) TextOwner(n labels.Node) (labels.Label, bool) {
	if v, ok := n.(*textNode); ok && v.owner != "" {
		return t.node(v.owner), true
	}
	return nil, false
}

func (t *PageTree) toLabels(ids []string) []labels.Label {
	out := make([]labels.Label, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.node(id))
	}
	return out
}

// Observe implements labels.Tree. The page buffers records; a goroutine drains them
// every PollInterval and dispatches each batch to fn.
func (t *PageTree) Observe(roots []labels.Node, fn func([]labels.Mutation)) (labels.Subscription, error) {
	ids := make([]string, 0, len(roots))
	for _, r := range roots {
		pn, ok := r.(*pageNode)
		if !ok || pn.tree != t {
			return nil, fmt.Errorf("root %v does not belong to this page", r)
		}
		ids = append(ids, pn.id)
	}
	if _, err := t.eval(`(ids, sel) => window.__prefixhider.observe(ids, sel)`, ids, t.opts.LabelSelector); err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}

	s := &pageSubscription{
		tree: t,
		fn:   fn,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.poll()
	return s, nil
}

type drainResult struct {
	Live    bool          `json:"live"`
	Batches [][]rawRecord `json:"batches"`
}

type rawRecord struct {
	Kind    string     `json:"kind"`
	Owner   string     `json:"owner"`
	Added   [][]string `json:"added"`
	Removed [][]string `json:"removed"`
}

// toMutations converts one drained batch. Child list targets are left nil; only the
// labels inside added and removed subtrees are interned, and only when read.
func (t *PageTree) toMutations(batch []rawRecord) []labels.Mutation {
	out := make([]labels.Mutation, 0, len(batch))
	for _, r := range batch {
		switch r.Kind {
		case "text":
			out = append(out, labels.Mutation{Kind: labels.TextMutation, Target: &textNode{owner: r.Owner}})
		case "childList":
			m := labels.Mutation{Kind: labels.ChildListMutation}
			for _, ids := range r.Added {
				m.Added = append(m.Added, &subtree{labels: ids})
			}
			for _, ids := range r.Removed {
				m.Removed = append(m.Removed, &subtree{labels: ids})
			}
			out = append(out, m)
		}
	}
	return out
}

type pageSubscription struct {
	tree *PageTree
	fn   func([]labels.Mutation)
	once sync.Once
	stop chan struct{}
	done chan struct{}
}

func (s *pageSubscription) poll() {
	defer close(s.done)
	ticker := time.NewTicker(s.tree.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.tree.ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
		}

		var res drainResult
		released := s.tree.takeReleased()
		if err := s.tree.evalInto(&res, `(ids) => window.__prefixhider ? window.__prefixhider.drain(ids) : { live: false, batches: [] }`, released); err != nil {
			logging.BrowserDebug("drain failed: %v", err)
			s.tree.release(released...)
			continue
		}
		for _, batch := range res.Batches {
			s.tree.opts.Dispatch(func() { s.fn(s.tree.toMutations(batch)) })
		}
		if !res.Live {
			// The document was replaced. An empty batch makes the watcher look for roots again.
			logging.Browser("page observer lost, requesting rediscovery")
			s.tree.opts.Dispatch(func() { s.fn(nil) })
			return
		}
	}
}

// Disconnect stops draining and tears down the in-page observer.
func (s *pageSubscription) Disconnect() {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
		if _, err := s.tree.eval(`() => window.__prefixhider && window.__prefixhider.disconnect()`); err != nil {
			logging.BrowserDebug("disconnect failed: %v", err)
		}
	})
}

// pageNode is an interned handle to a page node.
type pageNode struct {
	tree *PageTree
	id   string
}

func (n *pageNode) Connected() bool {
	var ok bool
	if err := n.tree.evalInto(&ok, `(id) => window.__prefixhider.connected(id)`, n.id); err != nil {
		return false
	}
	return ok
}

func (n *pageNode) ReadText() (string, error) {
	var s string
	if err := n.tree.evalInto(&s, `(id) => window.__prefixhider.text(id)`, n.id); err != nil {
		return "", fmt.Errorf("text of %s: %w", n.id, err)
	}
	return s, nil
}

func (n *pageNode) SetText(text string) error {
	if _, err := n.tree.eval(`(id, text) => window.__prefixhider.setText(id, text)`, n.id, text); err != nil {
		return fmt.Errorf("set text of %s: %w", n.id, err)
	}
	return nil
}

func (n *pageNode) String() string { return n.id }

// subtree is an added or removed node as reported by a mutation record.
type subtree struct {
	labels []string
}

func (*subtree) Connected() bool { return false }

// textNode is the target of a character data record.
type textNode struct {
	owner string
}

func (*textNode) Connected() bool { return false }
