package changes

import (
	"reflect"
	"strings"
	"time"
)

// fullWidthSpace is U+3000 IDEOGRAPHIC SPACE.
const fullWidthSpace = '\u3000'

func isTrimSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r', fullWidthSpace:
		return true
	}
	return false
}

// normalize maps a raw value to its comparison form. Strings lose leading
// and trailing ASCII and full-width spaces; times collapse to a canonical
// UTC timestamp so that equal instants compare equal.
func normalize(v any) any {
	switch t := v.(type) {
	case string:
		return strings.TrimFunc(t, isTrimSpace)
	case time.Time:
		return canonicalTime(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return canonicalTime(*t)
	}
	return v
}

func canonicalTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Equal reports whether a and b are the same after normalization.
// Comparison is type-sensitive: int 1 and string "1" differ.
func Equal(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}
