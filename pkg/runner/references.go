package runner

import (
	"fmt"
	"regexp"

	"github.com/openfroyo/instrumenta/pkg/engine"
)

// referencePattern matches ${KVS:<key>} placeholders in spec strings.
var referencePattern = regexp.MustCompile(`\$\{KVS:([\w\-\s:.;|]+)\}`)

// ResolveReferences returns a copy of spec with every ${KVS:<key>} placeholder
// replaced by the value stored under key. A string that consists of a single
// placeholder takes the stored value as is, keeping its type; placeholders
// embedded in longer strings are formatted with %v.
func ResolveReferences(spec map[string]any, store *engine.KeyValueStore) (map[string]any, error) {
	out, err := resolveValue(spec, store)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func resolveValue(v any, store *engine.KeyValueStore) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			resolved, err := resolveValue(item, store)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			resolved, err := resolveValue(item, store)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case string:
		return resolveString(val, store)
	default:
		return engine.CopyValue(v), nil
	}
}

func resolveString(s string, store *engine.KeyValueStore) (any, error) {
	matches := referencePattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		key := s[matches[0][2]:matches[0][3]]
		value, ok := store.Get(key)
		if !ok {
			return nil, unresolvable(key)
		}
		return engine.CopyValue(value), nil
	}

	var missing string
	out := referencePattern.ReplaceAllStringFunc(s, func(ref string) string {
		key := referencePattern.FindStringSubmatch(ref)[1]
		value, ok := store.Get(key)
		if !ok {
			if missing == "" {
				missing = key
			}
			return ref
		}
		return fmt.Sprintf("%v", value)
	})
	if missing != "" {
		return nil, unresolvable(missing)
	}
	return out, nil
}

func unresolvable(key string) error {
	return engine.NewConfigurationError(fmt.Sprintf("reference to unknown key %q", key), nil).
		WithCode(engine.ErrCodeUnresolvableRef).
		WithResource(key)
}
