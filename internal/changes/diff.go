// Package changes computes field-level diffs of a record against a watch-list.
//
// A ChangeSet is the raw field -> [old, new] map a persistence layer reports
// for one record. The Builder filters it down to watched fields whose
// normalized values differ and attaches labels and display strings, producing
// a Diff. Building is pure: no I/O and no logging.
package changes

// WatchedField is a field eligible for change detection.
type WatchedField struct {
	Name  string
	Label string
}

// ChangeSet maps a field name to its [old, new] pair. Entries whose slice is
// not exactly two elements long are malformed and ignored.
type ChangeSet map[string][]any

// Pair returns the before/after values for field and whether the entry is a
// well-formed pair.
func (cs ChangeSet) Pair(field string) (before, after any, ok bool) {
	v, found := cs[field]
	if !found || len(v) != 2 {
		return nil, nil, false
	}
	return v[0], v[1], true
}

// Change is one reportable field change.
type Change struct {
	Field        string `json:"field"`
	Label        string `json:"label"`
	Old          any    `json:"old"`
	New          any    `json:"new"`
	OldFormatted string `json:"old_formatted"`
	NewFormatted string `json:"new_formatted"`
}

// Diff is the ordered set of changes for a single detection event.
type Diff struct {
	changes []Change
	index   map[string]int
}

// NewDiff returns an empty Diff.
func NewDiff() *Diff {
	return &Diff{index: make(map[string]int)}
}

// Add records a change. Adding the same field twice replaces the earlier
// entry in place.
func (d *Diff) Add(c Change) {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if i, ok := d.index[c.Field]; ok {
		d.changes[i] = c
		return
	}
	d.index[c.Field] = len(d.changes)
	d.changes = append(d.changes, c)
}

// Changes returns a copy of the changes in detection order.
func (d *Diff) Changes() []Change {
	if d == nil {
		return nil
	}
	out := make([]Change, len(d.changes))
	copy(out, d.changes)
	return out
}

// Get returns the change recorded for field.
func (d *Diff) Get(field string) (Change, bool) {
	if d == nil {
		return Change{}, false
	}
	i, ok := d.index[field]
	if !ok {
		return Change{}, false
	}
	return d.changes[i], true
}

// Fields returns the changed field names in detection order.
func (d *Diff) Fields() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.changes))
	for _, c := range d.changes {
		out = append(out, c.Field)
	}
	return out
}

// Len is the number of changed fields.
func (d *Diff) Len() int {
	if d == nil {
		return 0
	}
	return len(d.changes)
}

// IsEmpty reports whether no watched field changed. A nil Diff is empty.
func (d *Diff) IsEmpty() bool { return d.Len() == 0 }
