package template

import "strconv"

// strFloat renders a float64 in its shortest round-tripping decimal form,
// used as the interpreter's "default string form" when no FORMAT is given.
func strFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func toStringAny(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
