package engine

import "strings"

// CopyValue returns a deep copy of v. Maps and slices produced by decoding
// JSON or YAML are copied recursively; every other value is returned as is,
// which is safe for the immutable scalars those decoders produce.
func CopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CopyValue(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []byte:
		return append([]byte(nil), val...)
	default:
		return v
	}
}

// CopyMap returns a deep copy of m. A nil map yields an empty map.
func CopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CopyValue(v)
	}
	return out
}

// LowerKeys returns a deep copy of m with every map key lower-cased,
// including keys of maps nested in slices. yaml.v3 may decode nested mappings
// as map[string]any or map[any]any; both are normalised.
func LowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = lowerValue(v)
	}
	return out
}

func lowerValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return LowerKeys(val)
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if s, ok := k.(string); ok {
				out[strings.ToLower(s)] = lowerValue(item)
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = lowerValue(item)
		}
		return out
	default:
		return CopyValue(v)
	}
}
