package changes

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateField is returned when a watch-list names a field twice.
var ErrDuplicateField = errors.New("duplicate watched field")

// View resolves the value of a field on one side of a comparison.
type View func(field string) (any, bool)

// Builder produces Diffs restricted to a watch-list.
type Builder struct {
	fields    []WatchedField
	formatter Formatter
}

// Option customizes a Builder.
type Option func(*Builder)

// WithFormatter overrides the display formatter.
func WithFormatter(f Formatter) Option {
	return func(b *Builder) { b.formatter = f }
}

// WithLabels applies a label table: field labels override the watch-list's
// labels and the yes/no tokens replace the formatter's.
func WithLabels(t LabelTable) Option {
	return func(b *Builder) {
		for i, f := range b.fields {
			if l, ok := t.Fields[f.Name]; ok && strings.TrimSpace(l) != "" {
				b.fields[i].Label = l
			}
		}
		if t.Yes != "" {
			b.formatter.Yes = t.Yes
		}
		if t.No != "" {
			b.formatter.No = t.No
		}
	}
}

// NewBuilder validates the watch-list and returns a Builder. A field with an
// empty label is labelled by its name.
func NewBuilder(fields []WatchedField, opts ...Option) (*Builder, error) {
	seen := make(map[string]struct{}, len(fields))
	own := make([]WatchedField, 0, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, errors.New("watched field name is required")
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateField, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Label == "" {
			f.Label = f.Name
		}
		own = append(own, f)
	}
	b := &Builder{fields: own, formatter: Formatter{Yes: DefaultLabels.Yes, No: DefaultLabels.No}}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// MustBuilder is NewBuilder for static watch-lists; it panics on error.
func MustBuilder(fields []WatchedField, opts ...Option) *Builder {
	b, err := NewBuilder(fields, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// Fields returns the watch-list.
func (b *Builder) Fields() []WatchedField {
	out := make([]WatchedField, len(b.fields))
	copy(out, b.fields)
	return out
}

// Label returns the label of a watched field, or the name itself.
func (b *Builder) Label(field string) string {
	for _, f := range b.fields {
		if f.Name == field {
			return f.Label
		}
	}
	return field
}

// Build diffs a raw change set. Unwatched and malformed entries are skipped.
func (b *Builder) Build(cs ChangeSet) *Diff {
	d := NewDiff()
	for _, f := range b.fields {
		before, after, ok := cs.Pair(f.Name)
		if !ok {
			continue
		}
		b.add(d, f, before, after)
	}
	return d
}

// BuildFromViews diffs two views of the same record across the watch-list.
// Fields either view cannot resolve are skipped.
func (b *Builder) BuildFromViews(previous, current View) *Diff {
	d := NewDiff()
	for _, f := range b.fields {
		before, ok := previous(f.Name)
		if !ok {
			continue
		}
		after, ok := current(f.Name)
		if !ok {
			continue
		}
		b.add(d, f, before, after)
	}
	return d
}

func (b *Builder) add(d *Diff, f WatchedField, before, after any) {
	if Equal(before, after) {
		return
	}
	d.Add(Change{
		Field:        f.Name,
		Label:        f.Label,
		Old:          before,
		New:          after,
		OldFormatted: b.formatter.Format(before),
		NewFormatted: b.formatter.Format(after),
	})
}
