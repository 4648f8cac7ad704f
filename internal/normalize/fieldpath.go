package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gramlytics/gramlytics-backend/internal/types"
)

// The provider renames and re-nests fields between schema versions. Every
// logical field is declared as an ordered list of candidate dot-paths; the
// first candidate that resolves AND converts to the expected type wins.
// Numeric path segments index into arrays.

func lookup(payload map[string]any, path string) (any, bool) {
	var cur any = payload
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case float64:
		// Provider ids frequently arrive as JSON numbers.
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10), true
		}
		return fmt.Sprintf("%v", t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return "", false
	default:
		return "", false
	}
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func resolveString(payload map[string]any, paths []string) string {
	for _, p := range paths {
		if v, ok := lookup(payload, p); ok {
			if s, ok := asString(v); ok {
				return s
			}
		}
	}
	return ""
}

// resolveCount returns types.CountUnknown when no candidate resolves, so the
// merge policy can tell "provider sent zero" apart from "provider sent
// nothing". Present negative values clamp to zero.
func resolveCount(payload map[string]any, paths []string) int64 {
	for _, p := range paths {
		if v, ok := lookup(payload, p); ok {
			if n, ok := asInt64(v); ok {
				if n < 0 {
					return 0
				}
				return n
			}
		}
	}
	return types.CountUnknown
}

func resolveFloat(payload map[string]any, paths []string) float64 {
	for _, p := range paths {
		if v, ok := lookup(payload, p); ok {
			if f, ok := asFloat64(v); ok {
				return f
			}
		}
	}
	return 0
}

func resolveBool(payload map[string]any, paths []string) bool {
	for _, p := range paths {
		if v, ok := lookup(payload, p); ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
	}
	return false
}

// resolveTime accepts unix seconds (number or numeric string) or RFC3339.
func resolveTime(payload map[string]any, paths []string) *time.Time {
	for _, p := range paths {
		v, ok := lookup(payload, p)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			if t <= 0 {
				continue
			}
			ts := time.Unix(int64(t), 0).UTC()
			return &ts
		case string:
			if n, err := strconv.ParseInt(t, 10, 64); err == nil && n > 0 {
				ts := time.Unix(n, 0).UTC()
				return &ts
			}
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				parsed = parsed.UTC()
				return &parsed
			}
		}
	}
	return nil
}

func resolveMap(payload map[string]any, paths []string) map[string]any {
	for _, p := range paths {
		if v, ok := lookup(payload, p); ok {
			if m, ok := v.(map[string]any); ok && len(m) > 0 {
				return m
			}
		}
	}
	return nil
}

func resolveList(payload map[string]any, paths []string) []any {
	for _, p := range paths {
		if v, ok := lookup(payload, p); ok {
			if l, ok := v.([]any); ok {
				return l
			}
		}
	}
	return nil
}

func resolveStringList(payload map[string]any, paths []string) []string {
	raw := resolveList(payload, paths)
	if raw == nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := asString(v); ok {
			out = append(out, s)
		}
	}
	return out
}

// itemMap coerces one list element into a map, unwrapping the graphql-style
// {"node": {...}} envelope when present.
func itemMap(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	if node, ok := m["node"].(map[string]any); ok && len(m) == 1 {
		return node
	}
	return m
}
