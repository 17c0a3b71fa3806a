package processors

import (
	"testing"

	"github.com/openfroyo/instrumenta/pkg/engine"
)

func TestDefaultLinksResolution(t *testing.T) {
	router, err := NewRouter(DefaultLinks(), engine.ActionCreate)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	tests := []struct {
		command string
		want    engine.Action
	}{
		{"apply", engine.ActionCreate},
		{"update", engine.ActionCreate},
		{"delete", engine.ActionDestroy},
		{"describe", engine.ActionDescribe},
		{"info", engine.ActionDescribe},
		{"rollback", engine.ActionRollback},
		{"drift", engine.ActionDetectDrift},
		{"changes", engine.ActionDetectDrift},
		{"diff", engine.ActionDetectDrift},
		{"something-else", engine.ActionCreate},
		{"", engine.ActionCreate},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			if got := router.Resolve(tt.command); got != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.command, got, tt.want)
			}
		})
	}
}

func TestNewRouterErrors(t *testing.T) {
	if _, err := NewRouter(DefaultLinks(), ""); !engine.IsConfigurationError(err) {
		t.Errorf("expected configuration error for missing default, got %v", err)
	}
	if _, err := NewRouter(nil, engine.Action("explode")); !engine.IsConfigurationError(err) {
		t.Errorf("expected configuration error for invalid default, got %v", err)
	}

	ambiguous := LinkTable{
		engine.ActionCreate:  {"apply"},
		engine.ActionDestroy: {"apply"},
	}
	if _, err := NewRouter(ambiguous, engine.ActionCreate); !engine.IsConfigurationError(err) {
		t.Errorf("expected configuration error for ambiguous link, got %v", err)
	}
}

func TestRouterActions(t *testing.T) {
	router, err := NewRouter(nil, engine.ActionCreate)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	actions := router.Actions()
	if len(actions) != 1 || actions[0] != engine.ActionCreate {
		t.Errorf("Actions() = %v, want [create]", actions)
	}
	if router.Default() != engine.ActionCreate {
		t.Errorf("Default() = %s", router.Default())
	}
}
