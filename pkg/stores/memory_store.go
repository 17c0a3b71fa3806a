package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore keeps state in memory. Values are stored in their JSON form so
// callers see the same types they would get back from the file backend.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// RetrieveAll returns a copy of the stored state.
func (s *MemoryStore) RetrieveAll(_ context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := map[string]any{}
	if s.data == nil {
		return state, nil
	}
	if err := json.Unmarshal(s.data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return state, nil
}

// PersistAll replaces the stored state.
func (s *MemoryStore) PersistAll(_ context.Context, state map[string]any) error {
	if state == nil {
		state = map[string]any{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}
