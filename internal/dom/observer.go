package dom

// RecordKind is the type of a mutation record.
type RecordKind int

const (
	ChildList RecordKind = iota
	CharacterData
)

// Record describes one mutation.
type Record struct {
	Kind    RecordKind
	Target  *Node
	Added   []*Node
	Removed []*Node
}

// Observer receives batches of records for mutations inside its observed subtrees.
type Observer struct {
	doc      *Document
	callback func([]Record)
	targets  []*Node
	queue    []Record
}

// NewObserver creates an observer that is not observing anything yet.
func (d *Document) NewObserver(callback func([]Record)) *Observer {
	return &Observer{doc: d, callback: callback}
}

// Observe adds root's subtree (childList, characterData) to the observed set.
func (o *Observer) Observe(root *Node) {
	for _, t := range o.targets {
		if t == root {
			return
		}
	}
	if len(o.targets) == 0 {
		o.doc.observers = append(o.doc.observers, o)
	}
	o.targets = append(o.targets, root)
}

// Disconnect stops observing and drops queued records.
func (o *Observer) Disconnect() {
	o.targets = nil
	o.queue = nil
	obs := o.doc.observers[:0]
	for _, other := range o.doc.observers {
		if other != o {
			obs = append(obs, other)
		}
	}
	o.doc.observers = obs
}

// TakeRecords empties and returns the queue without invoking the callback.
func (o *Observer) TakeRecords() []Record {
	q := o.queue
	o.queue = nil
	return q
}

func (o *Observer) interested(target *Node) bool {
	for _, t := range o.targets {
		if t.contains(target) {
			return true
		}
	}
	return false
}

// record queues r for every observer watching its target and arranges delivery.
func (d *Document) record(r Record) {
	if d == nil {
		return
	}
	queued := false
	for _, o := range d.observers {
		if o.interested(r.Target) {
			o.queue = append(o.queue, r)
			queued = true
		}
	}
	if queued && !d.scheduled && d.schedule != nil {
		if d.schedule(d.DeliverMutations) {
			d.scheduled = true
		}
	}
}

// PendingRecords returns the number of queued records across observers.
func (d *Document) PendingRecords() int {
	n := 0
	for _, o := range d.observers {
		n += len(o.queue)
	}
	return n
}

// DeliverMutations hands every non-empty queue to its observer's callback.
// Records produced by callbacks are delivered in a later round.
func (d *Document) DeliverMutations() {
	d.scheduled = false
	observers := append([]*Observer(nil), d.observers...)
	for _, o := range observers {
		batch := o.TakeRecords()
		if len(batch) > 0 {
			o.callback(batch)
		}
	}
}
