package processors

import (
	"fmt"
	"sort"

	"github.com/openfroyo/instrumenta/pkg/engine"
)

// LinkTable maps each action to the commands that trigger it.
type LinkTable map[engine.Action][]string

// DefaultLinks returns the command table shared by processors that support
// the full action set.
func DefaultLinks() LinkTable {
	return LinkTable{
		engine.ActionCreate:      {"apply", "update"},
		engine.ActionDestroy:     {"delete"},
		engine.ActionDescribe:    {"describe", "info"},
		engine.ActionRollback:    {"rollback"},
		engine.ActionDetectDrift: {"drift", "changes", "diff"},
	}
}

// Router resolves commands to actions.
type Router struct {
	commands      map[string]engine.Action
	defaultAction engine.Action
}

// NewRouter builds a router. It fails when the default action is missing or
// invalid, or when one command is linked to more than one action.
func NewRouter(links LinkTable, defaultAction engine.Action) (*Router, error) {
	if defaultAction == "" {
		return nil, engine.NewConfigurationError("no default action configured", nil).
			WithCode(engine.ErrCodeNoHandler)
	}
	if err := defaultAction.Validate(); err != nil {
		return nil, engine.NewConfigurationError("invalid default action", err)
	}

	r := &Router{
		commands:      make(map[string]engine.Action),
		defaultAction: defaultAction,
	}
	for action, commands := range links {
		if err := action.Validate(); err != nil {
			return nil, engine.NewConfigurationError("invalid linked action", err)
		}
		for _, cmd := range commands {
			if existing, ok := r.commands[cmd]; ok && existing != action {
				return nil, engine.NewConfigurationError(
					fmt.Sprintf("command %q linked to both %s and %s", cmd, existing, action), nil,
				).WithCode(engine.ErrCodeAmbiguousLink)
			}
			r.commands[cmd] = action
		}
	}
	return r, nil
}

// Resolve returns the action linked to command, or the default action.
func (r *Router) Resolve(command string) engine.Action {
	if action, ok := r.commands[command]; ok {
		return action
	}
	return r.defaultAction
}

// Default returns the default action.
func (r *Router) Default() engine.Action {
	return r.defaultAction
}

// Actions returns every action the router can resolve to, sorted.
func (r *Router) Actions() []engine.Action {
	seen := map[engine.Action]bool{r.defaultAction: true}
	for _, a := range r.commands {
		seen[a] = true
	}
	out := make([]engine.Action, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
