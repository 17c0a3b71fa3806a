package runner

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/openfroyo/instrumenta/pkg/engine"
)

// Top-level entries of the persisted state.
const (
	StateKeyKeyValueStore = "KeyValueStore"
	StateKeyTaskStates    = "TaskStates"
)

// State is the runner's view of everything carried between runs.
type State struct {
	Store      *engine.KeyValueStore
	TaskStates map[string]*engine.TaskState
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Store:      engine.NewKeyValueStore(),
		TaskStates: map[string]*engine.TaskState{},
	}
}

// StateKey identifies a task in the persisted task states.
func StateKey(t *engine.Task) string {
	return t.Kind + ":" + t.ID
}

// DecodeState rebuilds a State from what a persistence backend returned.
func DecodeState(raw map[string]any) (*State, error) {
	state := NewState()

	if v, ok := raw[StateKeyKeyValueStore]; ok && v != nil {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, engine.NewStateError(
				fmt.Sprintf("persisted %s has unexpected type %T", StateKeyKeyValueStore, v), nil)
		}
		state.Store = engine.KeyValueStoreFromMap(m)
	}

	if v, ok := raw[StateKeyTaskStates]; ok && v != nil {
		d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			Result:     &state.TaskStates,
			TagName:    "json",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create decoder: %w", err)
		}
		if err := d.Decode(v); err != nil {
			return nil, engine.NewStateError("persisted task states are malformed", err)
		}
	}

	return state, nil
}

// Encode returns the state in the form handed to a persistence backend. The
// sink keeps its insertion order when the backend encodes it as JSON.
func (s *State) Encode() map[string]any {
	return map[string]any{
		StateKeyKeyValueStore: s.Store.Clone(),
		StateKeyTaskStates:    s.TaskStates,
	}
}
