package domain

import (
	"reflect"

	"github.com/corvusHold/changenotify/internal/changes"
)

// Field maps a watched field identifier to its accessor.
type Field struct {
	Name  string
	Label string
	Get   func(Customer) any
}

// Fields is the watch-list. It is the only place that knows how to read a
// watched field off a Customer; both the diff builder and snapshot
// comparison use it.
var Fields = []Field{
	{Name: "name01", Label: "Last name", Get: func(c Customer) any { return c.Name01 }},
	{Name: "name02", Label: "First name", Get: func(c Customer) any { return c.Name02 }},
	{Name: "kana01", Label: "Last name (kana)", Get: func(c Customer) any { return c.Kana01 }},
	{Name: "kana02", Label: "First name (kana)", Get: func(c Customer) any { return c.Kana02 }},
	{Name: "email", Label: "Email address", Get: func(c Customer) any { return c.Email }},
	{Name: "tel01", Label: "Phone (area code)", Get: func(c Customer) any { return c.Tel01 }},
	{Name: "tel02", Label: "Phone (exchange)", Get: func(c Customer) any { return c.Tel02 }},
	{Name: "tel03", Label: "Phone (subscriber)", Get: func(c Customer) any { return c.Tel03 }},
	{Name: "zip01", Label: "Postal code (3 digits)", Get: func(c Customer) any { return c.Zip01 }},
	{Name: "zip02", Label: "Postal code (4 digits)", Get: func(c Customer) any { return c.Zip02 }},
	{Name: "addr01", Label: "Address 1", Get: func(c Customer) any { return c.Addr01 }},
	{Name: "addr02", Label: "Address 2", Get: func(c Customer) any { return c.Addr02 }},
}

// WatchedFields returns the watch-list in diff-engine form.
func WatchedFields() []changes.WatchedField {
	out := make([]changes.WatchedField, 0, len(Fields))
	for _, f := range Fields {
		out = append(out, changes.WatchedField{Name: f.Name, Label: f.Label})
	}
	return out
}

// Snapshot is a value copy of a customer taken before an edit.
type Snapshot struct {
	customer Customer
}

// TakeSnapshot copies c.
func TakeSnapshot(c Customer) Snapshot { return Snapshot{customer: c} }

// Customer returns the captured state.
func (s Snapshot) Customer() Customer { return s.customer }

// ID is the captured customer's id.
func (s Snapshot) ID() int64 { return s.customer.ID }

// ChangeSetBetween reports every watched field whose values differ
// strictly between before and after. No normalization happens here; the
// diff builder decides what is reportable.
func ChangeSetBetween(before, after Customer) changes.ChangeSet {
	cs := changes.ChangeSet{}
	for _, f := range Fields {
		o, n := f.Get(before), f.Get(after)
		if reflect.DeepEqual(o, n) {
			continue
		}
		cs[f.Name] = []any{o, n}
	}
	return cs
}

// View exposes a customer to the diff builder through the field table.
func View(c Customer) changes.View {
	return func(field string) (any, bool) {
		for _, f := range Fields {
			if f.Name == field {
				return f.Get(c), true
			}
		}
		return nil, false
	}
}
