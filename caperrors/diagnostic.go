package caperrors

import (
	"fmt"
	"reflect"
	"sort"
)

const (
	maxDiagnosticBytes  = 64
	maxDiagnosticString = 128
	maxDiagnosticItems  = 16
)

// Diagnostic renders v as a bounded, sanitized string: byte slices and
// strings are truncated past the caps above, containers are summarized
// by length past maxDiagnosticItems rather than fully expanded. It
// never panics — any reflection failure degrades to a type-name
// placeholder rather than propagating.
func Diagnostic(v any) (out string) {
	defer func() {
		if recover() != nil {
			out = fmt.Sprintf("<%T>", v)
		}
	}()
	return diagnostic(v, 0)
}

func diagnostic(v any, depth int) string {
	if depth > 6 {
		return "<max-depth>"
	}
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return fmt.Sprintf("%t", val)
	case string:
		return truncateString(val)
	case []byte:
		return truncateBytes(val)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", val)
	case []any:
		return summarizeSlice(val, depth)
	case map[string]any:
		return summarizeMap(val, depth)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("<%s len=%d>", rv.Type(), rv.Len())
	case reflect.Map:
		return fmt.Sprintf("<%s len=%d>", rv.Type(), rv.Len())
	default:
		return fmt.Sprintf("<%T>", v)
	}
}

func truncateString(s string) string {
	if len(s) <= maxDiagnosticString {
		return s
	}
	return s[:maxDiagnosticString] + fmt.Sprintf("...(%d bytes total)", len(s))
}

func truncateBytes(b []byte) string {
	n := len(b)
	if n > maxDiagnosticBytes {
		n = maxDiagnosticBytes
	}
	return fmt.Sprintf("%x...(%d bytes total)", b[:n], len(b))
}

func summarizeSlice(s []any, depth int) string {
	n := len(s)
	if n > maxDiagnosticItems {
		out := "["
		for i := 0; i < maxDiagnosticItems; i++ {
			if i > 0 {
				out += ", "
			}
			out += diagnostic(s[i], depth+1)
		}
		return out + fmt.Sprintf(", ...(%d items total)]", n)
	}
	out := "["
	for i, e := range s {
		if i > 0 {
			out += ", "
		}
		out += diagnostic(e, depth+1)
	}
	return out + "]"
}

func summarizeMap(m map[string]any, depth int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	n := len(keys)
	shown := n
	if shown > maxDiagnosticItems {
		shown = maxDiagnosticItems
	}
	out := "{"
	for i := 0; i < shown; i++ {
		if i > 0 {
			out += ", "
		}
		k := keys[i]
		out += fmt.Sprintf("%s: %s", truncateString(k), diagnostic(m[k], depth+1))
	}
	if n > shown {
		out += fmt.Sprintf(", ...(%d keys total)", n)
	}
	return out + "}"
}
