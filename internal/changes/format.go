package changes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// DisplayTimeLayout is the layout used for dates in notification bodies.
const DisplayTimeLayout = "2006-01-02 15:04:05"

const encodingErrorText = "[encoding error]"

// Formatter renders raw values for display. It is independent from the
// equality normalization.
type Formatter struct {
	Yes string
	No  string
}

// Format renders v as display text.
func (f Formatter) Format(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format(DisplayTimeLayout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format(DisplayTimeLayout)
	case bool:
		if t {
			return f.Yes
		}
		return f.No
	case fmt.Stringer:
		if isNilPointer(v) {
			return ""
		}
		return t.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return ""
		}
		return fmt.Sprintf("%T", v)
	case reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return ""
		}
		return compactJSON(v)
	case reflect.Array:
		return compactJSON(v)
	case reflect.Struct:
		return fmt.Sprintf("%T", v)
	}
	return fmt.Sprint(v)
}

func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return encodingErrorText
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
