package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Result fields, the last segment of a result key.
const (
	FieldResult             = "RESULT"
	FieldResourceState      = "RESOURCE_STATE"
	FieldDriftRawData       = "DRIFT_RAW_DATA"
	FieldDriftHumanReadable = "DRIFT_HUMAN_READABLE"
	FieldFilePath           = "FILE_PATH"
	FieldWritten            = "WRITTEN"
	FieldExecutable         = "EXECUTABLE"
	FieldSize               = "SIZE"
	FieldSHA256Checksum     = "SHA256_CHECKSUM"
	FieldDeleted            = "DELETED"
	FieldStdout             = "STDOUT"
	FieldStderr             = "STDERR"
	FieldExitCode           = "EXIT_CODE"
)

// ResultKey builds "{kind}:{taskId}:{command}:{context}:{FIELD}".
func ResultKey(kind, taskID, command, execContext, field string) string {
	return strings.Join([]string{kind, taskID, command, execContext, field}, ":")
}

// KeyValueStore is the shared, ordered result namespace that processors
// publish into. It is not safe for concurrent mutation; processors receive a
// store and return a modified Clone of it.
type KeyValueStore struct {
	keys   []string
	values map[string]any
}

// NewKeyValueStore returns an empty store.
func NewKeyValueStore() *KeyValueStore {
	return &KeyValueStore{values: make(map[string]any)}
}

// KeyValueStoreFromMap builds a store from m. Keys are inserted in sorted
// order because map iteration order is undefined.
func KeyValueStoreFromMap(m map[string]any) *KeyValueStore {
	s := NewKeyValueStore()
	for _, k := range sortedKeys(m) {
		s.Save(k, m[k])
	}
	return s
}

// Save stores a deep copy of value under key, replacing any previous value
// while keeping the key's original position.
func (s *KeyValueStore) Save(key string, value any) {
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = CopyValue(value)
}

// Get returns the value stored under key.
func (s *KeyValueStore) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// GetString returns the value under key rendered as a string, or def when the
// key is missing or holds nil.
func (s *KeyValueStore) GetString(key, def string) string {
	v, ok := s.values[key]
	if !ok || v == nil {
		return def
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", v)
}

// Has reports whether key exists, even when its value is nil.
func (s *KeyValueStore) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Delete removes key.
func (s *KeyValueStore) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (s *KeyValueStore) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Len returns the number of keys.
func (s *KeyValueStore) Len() int {
	return len(s.keys)
}

// Clone returns a deep copy of the store.
func (s *KeyValueStore) Clone() *KeyValueStore {
	out := &KeyValueStore{
		keys:   append([]string(nil), s.keys...),
		values: make(map[string]any, len(s.values)),
	}
	for k, v := range s.values {
		out.values[k] = CopyValue(v)
	}
	return out
}

// Merge copies every key of other into s, overwriting existing values.
func (s *KeyValueStore) Merge(other *KeyValueStore) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		s.Save(k, other.values[k])
	}
}

// Map returns a deep copy of the contents as a plain map.
func (s *KeyValueStore) Map() map[string]any {
	return CopyMap(s.values)
}

// MarshalJSON encodes the store as a JSON object preserving insertion order.
func (s *KeyValueStore) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.values[k])
		if err != nil {
			return nil, fmt.Errorf("failed to encode value for key %s: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, preserving the key order of the input.
func (s *KeyValueStore) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("key value store must be a JSON object")
	}

	fresh := NewKeyValueStore()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to decode value for key %s: %w", key, err)
		}
		fresh.Save(key, value)
	}
	*s = *fresh
	return nil
}
