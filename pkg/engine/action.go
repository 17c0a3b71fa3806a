package engine

import "fmt"

// Action is the internal operation a processor performs. Commands given by
// users are free-form strings; a processor's router maps each command onto
// one of these actions.
type Action string

const (
	// ActionCreate creates or converges the resource.
	ActionCreate Action = "create"

	// ActionDestroy removes the resource.
	ActionDestroy Action = "destroy"

	// ActionDescribe reports the resource state without changing it.
	ActionDescribe Action = "describe"

	// ActionRollback restores the resource to its declared state.
	ActionRollback Action = "rollback"

	// ActionDetectDrift compares the resource against what was last applied.
	ActionDetectDrift Action = "detect-drift"
)

// Actions lists every action in a stable order.
func Actions() []Action {
	return []Action{ActionCreate, ActionDestroy, ActionDescribe, ActionRollback, ActionDetectDrift}
}

// IsMutating returns true if the action may change the resource.
func (a Action) IsMutating() bool {
	return a == ActionCreate || a == ActionDestroy || a == ActionRollback
}

// Validate checks if the action is valid.
func (a Action) Validate() error {
	switch a {
	case ActionCreate, ActionDestroy, ActionDescribe, ActionRollback, ActionDetectDrift:
		return nil
	default:
		return fmt.Errorf("invalid action: %q", string(a))
	}
}

// String implements fmt.Stringer.
func (a Action) String() string {
	return string(a)
}
