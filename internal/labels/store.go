package labels

// LabelState is the bookkeeping kept for one label.
type LabelState struct {
	Original    string
	LastApplied string
	HasApplied  bool
}

// StateStore associates original and last-applied text with labels.
// It never owns a label; entries are dropped with Forget when the label leaves the tree.
type StateStore struct {
	entries map[Label]*LabelState
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{entries: make(map[Label]*LabelState)}
}

// ResolveOriginal reads label and returns its authoritative text.
// When the label is new, or its text no longer matches what the engine last wrote,
// the current text becomes the new original. A failed read leaves the state untouched.
func (s *StateStore) ResolveOriginal(label Label) (string, error) {
	current, err := label.ReadText()
	if err != nil {
		return "", err
	}
	return s.Resolve(label, current), nil
}

// Resolve is ResolveOriginal for text the caller has already read from label.
func (s *StateStore) Resolve(label Label, current string) string {
	st, ok := s.entries[label]
	if !ok || (st.HasApplied && st.LastApplied != current) {
		s.entries[label] = &LabelState{Original: current}
		return current
	}
	return st.Original
}

// RecordApplied remembers text as the value the engine last wrote into label.
func (s *StateStore) RecordApplied(label Label, text string) {
	st, ok := s.entries[label]
	if !ok {
		// Unreachable through the Reconciler, which always resolves first.
		st = &LabelState{Original: text}
		s.entries[label] = st
	}
	st.LastApplied = text
	st.HasApplied = true
}

// Forget drops every piece of state held for label.
func (s *StateStore) Forget(label Label) {
	delete(s.entries, label)
}

// Lookup returns a copy of the state held for label.
func (s *StateStore) Lookup(label Label) (LabelState, bool) {
	st, ok := s.entries[label]
	if !ok {
		return LabelState{}, false
	}
	return *st, true
}

// Len returns the number of labels with state.
func (s *StateStore) Len() int {
	return len(s.entries)
}
