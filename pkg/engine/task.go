package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/openfroyo/instrumenta/pkg/checksum"
)

// IdentifierTypeManifestName marks the identifier whose key becomes the task ID.
const IdentifierTypeManifestName = "ManifestName"

// Identifier is a typed key/value label attached to a task.
type Identifier struct {
	Type  string `json:"type" yaml:"type" validate:"required"`
	Key   string `json:"key" yaml:"key" validate:"required"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
}

// ScopeContext lists names of one context type (Environment or Command).
type ScopeContext struct {
	Type  string   `json:"type" yaml:"type" validate:"required,oneof=Environment Command"`
	Names []string `json:"names" yaml:"names"`
}

// ContextualIdentifier limits where a task is processed. Key is INCLUDE or
// EXCLUDE; Type is ExecutionScope.
type ContextualIdentifier struct {
	Type     string         `json:"type" yaml:"type" validate:"required"`
	Key      string         `json:"key" yaml:"key" validate:"required,oneof=INCLUDE EXCLUDE"`
	Contexts []ScopeContext `json:"contexts" yaml:"contexts" validate:"dive"`
}

// Metadata describes a task independently of its spec.
type Metadata struct {
	Identifiers           []Identifier           `json:"identifiers,omitempty" yaml:"identifiers,omitempty" validate:"dive"`
	ContextualIdentifiers []ContextualIdentifier `json:"contextualIdentifiers,omitempty" yaml:"contextualIdentifiers,omitempty" validate:"dive"`
}

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	out := Metadata{
		Identifiers: append([]Identifier(nil), m.Identifiers...),
	}
	for _, ci := range m.ContextualIdentifiers {
		c := ContextualIdentifier{Type: ci.Type, Key: ci.Key}
		for _, sc := range ci.Contexts {
			c.Contexts = append(c.Contexts, ScopeContext{
				Type:  sc.Type,
				Names: append([]string(nil), sc.Names...),
			})
		}
		out.ContextualIdentifiers = append(out.ContextualIdentifiers, c)
	}
	return out
}

// Task is a unit of declarative work handled by exactly one processor.
type Task struct {
	// Kind selects the processor.
	Kind string `json:"kind"`

	// Version selects the processor version.
	Version string `json:"version"`

	// ID identifies the task within its kind.
	ID string `json:"id"`

	// Spec holds the processor input. Keys are lower-cased.
	Spec map[string]any `json:"spec"`

	// Metadata holds identifiers and execution scope rules.
	Metadata Metadata `json:"metadata"`

	// State is the previously applied state, nil when never applied.
	State *TaskState `json:"state,omitempty"`
}

// NewTask builds a task, normalising spec keys to lower case and deriving the
// task ID from the ManifestName identifier.
func NewTask(kind, version string, spec map[string]any, metadata Metadata) *Task {
	t := &Task{
		Kind:     kind,
		Version:  version,
		Spec:     LowerKeys(spec),
		Metadata: metadata.Clone(),
	}
	t.ID = t.deriveID()
	return t
}

func (t *Task) deriveID() string {
	for _, id := range t.Metadata.Identifiers {
		if id.Type == IdentifierTypeManifestName && id.Key != "" {
			return id.Key
		}
	}
	sum := checksum.MustValue(map[string]any{
		"kind":    t.Kind,
		"version": t.Version,
		"spec":    t.Spec,
	})
	return sum[:12]
}

// Label returns "kind:id".
func (t *Task) Label() string {
	return fmt.Sprintf("%s:%s", t.Kind, t.ID)
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	out := &Task{
		Kind:     t.Kind,
		Version:  t.Version,
		ID:       t.ID,
		Spec:     CopyMap(t.Spec),
		Metadata: t.Metadata.Clone(),
	}
	if t.State != nil {
		out.State = t.State.Clone()
	}
	return out
}

// SpecChecksum returns the checksum of the task spec.
func (t *Task) SpecChecksum() string {
	return checksum.MustValue(t.Spec)
}

// ShouldProcess evaluates the contextual identifiers against a command and
// execution context. A task without INCLUDE rules for a context type is
// processed for every name of that type; any matching EXCLUDE rule wins.
func (t *Task) ShouldProcess(command, execContext string) bool {
	values := map[string]string{
		"Environment": execContext,
		"Command":     command,
	}

	included := map[string]bool{}
	hasInclude := map[string]bool{}
	for _, ci := range t.Metadata.ContextualIdentifiers {
		for _, sc := range ci.Contexts {
			value, known := values[sc.Type]
			if !known {
				continue
			}
			matched := containsFold(sc.Names, value)
			switch strings.ToUpper(ci.Key) {
			case "EXCLUDE":
				if matched {
					return false
				}
			case "INCLUDE":
				hasInclude[sc.Type] = true
				if matched {
					included[sc.Type] = true
				}
			}
		}
	}

	for contextType := range hasInclude {
		if !included[contextType] {
			return false
		}
	}
	return true
}

func containsFold(names []string, value string) bool {
	for _, n := range names {
		if strings.EqualFold(n, value) {
			return true
		}
	}
	return false
}

// TaskState records what was last applied for a task.
type TaskState struct {
	AppliedSpec             map[string]any `json:"appliedSpec"`
	AppliedSpecChecksum     string         `json:"appliedSpecChecksum"`
	AppliedResourceChecksum string         `json:"appliedResourceChecksum"`
	CreatedAt               time.Time      `json:"createdAt"`
}

// NewTaskState captures the applied state of a task whose resource value
// hashes to resourceChecksum.
func NewTaskState(t *Task, resourceChecksum string, at time.Time) *TaskState {
	return &TaskState{
		AppliedSpec:             CopyMap(t.Spec),
		AppliedSpecChecksum:     t.SpecChecksum(),
		AppliedResourceChecksum: resourceChecksum,
		CreatedAt:               at.UTC(),
	}
}

// Clone returns a deep copy of the state.
func (s *TaskState) Clone() *TaskState {
	if s == nil {
		return nil
	}
	out := *s
	out.AppliedSpec = CopyMap(s.AppliedSpec)
	return &out
}
