package agent

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// StringParam returns data[key] as a trimmed string. Non-string scalars are
// formatted; missing, nil and blank values report false.
func StringParam(data map[string]any, key string) (string, bool) {
	v, ok := data[key]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case int, int64, bool:
		s = fmt.Sprint(val)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// IntParam returns data[key] as an int. It accepts JSON numbers, integer
// strings and strings like "#2".
func IntParam(data map[string]any, key string) (int, bool) {
	switch val := data[key].(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		if val != math.Trunc(val) {
			return 0, false
		}
		return int(val), true
	case string:
		s := strings.TrimPrefix(strings.TrimSpace(val), "#")
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// StringsParam returns data[key] as a list of non-blank strings. A single
// string is split on commas.
func StringsParam(data map[string]any, key string) ([]string, bool) {
	var raw []string
	switch val := data[key].(type) {
	case []string:
		raw = val
	case []any:
		for _, item := range val {
			if item == nil {
				continue
			}
			raw = append(raw, fmt.Sprint(item))
		}
	case string:
		raw = strings.Split(val, ",")
	default:
		return nil, false
	}
	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, len(out) > 0
}
