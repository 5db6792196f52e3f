package labels

import (
	"errors"
	"testing"
)

// fakeLabel is a minimal Label for package-internal tests.
type fakeLabel struct {
	text      string
	attached  bool
	failSet   bool
	failReads int
	writes    int
}

func newFakeLabel(text string) *fakeLabel {
	return &fakeLabel{text: text, attached: true}
}

func (l *fakeLabel) Connected() bool { return l.attached }

func (l *fakeLabel) ReadText() (string, error) {
	if l.failReads > 0 {
		l.failReads--
		return "", errors.New("call timed out")
	}
	return l.text, nil
}

func (l *fakeLabel) SetText(text string) error {
	if l.failSet {
		return errors.New("write refused")
	}
	l.text = text
	l.writes++
	return nil
}

// resolve calls ResolveOriginal on a label whose reads succeed.
func resolve(t *testing.T, s *StateStore, l Label) string {
	t.Helper()
	got, err := s.ResolveOriginal(l)
	if err != nil {
		t.Fatalf("ResolveOriginal: %v", err)
	}
	return got
}

func TestResolveOriginalCapturesFirstRead(t *testing.T) {
	s := NewStateStore()
	l := newFakeLabel("team-design")

	if got := resolve(t, s, l); got != "team-design" {
		t.Fatalf("got %q", got)
	}
	st, ok := s.Lookup(l)
	if !ok || st.Original != "team-design" || st.HasApplied {
		t.Errorf("unexpected state %+v ok=%v", st, ok)
	}
}

func TestResolveOriginalKeepsOriginalAfterOwnWrite(t *testing.T) {
	s := NewStateStore()
	l := newFakeLabel("team-design")

	resolve(t, s, l)
	l.text = "design"
	s.RecordApplied(l, "design")

	if got := resolve(t, s, l); got != "team-design" {
		t.Errorf("engine-written text must not become the original, got %q", got)
	}
}

func TestResolveOriginalDetectsExternalOverwrite(t *testing.T) {
	s := NewStateStore()
	l := newFakeLabel("foo-baz")

	resolve(t, s, l)
	l.text = "baz"
	s.RecordApplied(l, "baz")

	l.text = "foo-qux" // host replaces the content
	if got := resolve(t, s, l); got != "foo-qux" {
		t.Fatalf("got %q, want foo-qux", got)
	}
	st, _ := s.Lookup(l)
	if st.HasApplied {
		t.Error("lastApplied should be cleared after an external overwrite")
	}
}

func TestResolveOriginalEmptyAppliedStillTracked(t *testing.T) {
	s := NewStateStore()
	l := newFakeLabel("foo")

	resolve(t, s, l)
	l.text = ""
	s.RecordApplied(l, "")

	if got := resolve(t, s, l); got != "foo" {
		t.Errorf("empty applied text: got %q, want foo", got)
	}

	l.text = "bar"
	if got := resolve(t, s, l); got != "bar" {
		t.Errorf("overwrite after empty applied text: got %q, want bar", got)
	}
}

func TestForget(t *testing.T) {
	s := NewStateStore()
	a, b := newFakeLabel("a"), newFakeLabel("b")
	resolve(t, s, a)
	resolve(t, s, b)
	if s.Len() != 2 {
		t.Fatalf("Len = %d", s.Len())
	}

	s.Forget(a)
	if _, ok := s.Lookup(a); ok {
		t.Error("state for a should be gone")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
	s.Forget(a) // no-op
}

func TestReconcileSkipsDetachedAndRetriesFailures(t *testing.T) {
	s := NewStateStore()
	cell := NewPrefixCell([]string{"team"})
	r := NewReconciler(nil, s, cell, nil)

	ok := newFakeLabel("team-a")
	gone := newFakeLabel("team-b")
	gone.attached = false
	broken := newFakeLabel("team-c")
	broken.failSet = true

	res := r.Reconcile([]Label{ok, gone, broken, nil})
	want := PassResult{Visited: 2, Written: 1, Skipped: 2, Failed: 1}
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	if ok.text != "a" {
		t.Errorf("ok.text = %q", ok.text)
	}
	if _, tracked := s.Lookup(gone); tracked {
		t.Error("detached label must not get state")
	}
	if st, _ := s.Lookup(broken); st.HasApplied {
		t.Error("failed write must not be recorded as applied")
	}

	broken.failSet = false
	r.Reconcile([]Label{broken})
	if broken.text != "c" {
		t.Errorf("retry: broken.text = %q", broken.text)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	s := NewStateStore()
	r := NewReconciler(nil, s, NewPrefixCell([]string{"team"}), nil)
	l := newFakeLabel("team-design")

	r.Reconcile([]Label{l})
	first, firstOrig := l.text, resolve(t, s, l)
	res := r.Reconcile([]Label{l})

	if l.text != first || resolve(t, s, l) != firstOrig {
		t.Errorf("second pass changed state: text %q→%q", first, l.text)
	}
	if res.Written != 0 || l.writes != 1 {
		t.Errorf("second pass wrote: %+v writes=%d", res, l.writes)
	}
}

func TestResolveOriginalReadFailureKeepsState(t *testing.T) {
	s := NewStateStore()
	l := newFakeLabel("team-design")
	resolve(t, s, l)
	l.text = "design"
	s.RecordApplied(l, "design")

	l.failReads = 1
	if _, err := s.ResolveOriginal(l); err == nil {
		t.Fatal("expected the read error")
	}
	st, _ := s.Lookup(l)
	if st.Original != "team-design" || !st.HasApplied || st.LastApplied != "design" {
		t.Errorf("failed read changed state: %+v", st)
	}
}

func TestReconcileReadFailureLeavesLabelAlone(t *testing.T) {
	s := NewStateStore()
	cell := NewPrefixCell([]string{"team"})
	stats := &Stats{}
	r := NewReconciler(nil, s, cell, stats)
	l := newFakeLabel("team-design")

	r.Reconcile([]Label{l})
	if l.text != "design" {
		t.Fatalf("first pass: %q", l.text)
	}

	l.failReads = 1
	res := r.Reconcile([]Label{l})
	if want := (PassResult{Failed: 1}); res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}
	if l.text != "design" || l.writes != 1 {
		t.Errorf("failed read must not write: text %q writes %d", l.text, l.writes)
	}
	if stats.ReadFailures.Load() != 1 || stats.WriteFailures.Load() != 0 {
		t.Errorf("read failures %d, write failures %d", stats.ReadFailures.Load(), stats.WriteFailures.Load())
	}

	cell.Replace(nil)
	r.Reconcile([]Label{l})
	if l.text != "team-design" {
		t.Errorf("original lost after failed read: %q", l.text)
	}
}

func TestPrefixCellReplaceNotifies(t *testing.T) {
	cell := NewPrefixCell([]string{"a"})
	var seen [][]string
	cell.OnReplace(func(list []string) { seen = append(seen, list) })

	src := []string{"x", "y"}
	cell.Replace(src)
	src[0] = "mutated"

	if got := cell.Load(); len(got) != 2 || got[0] != "x" {
		t.Errorf("cell must hold a copy, got %v", got)
	}
	if len(seen) != 1 || seen[0][1] != "y" {
		t.Errorf("listener calls = %v", seen)
	}
}
