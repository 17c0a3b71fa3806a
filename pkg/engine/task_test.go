package engine

import (
	"testing"
	"time"
)

func TestNewTaskDerivesIDAndLowersKeys(t *testing.T) {
	task := NewTask("CliInputPrompt", "v1", map[string]any{
		"promptText": "Name?",
		"Proxy": map[string]any{
			"basicAuthentication": map[string]any{"UserName": "u"},
		},
		"extraHeaders": []any{map[string]any{"Name": "X-A", "Value": "1"}},
	}, Metadata{
		Identifiers: []Identifier{
			{Type: "Label", Key: "is_unittest", Value: "TRUE"},
			{Type: IdentifierTypeManifestName, Key: "test1"},
		},
	})

	if task.ID != "test1" {
		t.Errorf("ID = %s, want test1", task.ID)
	}
	if _, ok := task.Spec["prompttext"]; !ok {
		t.Errorf("expected lower-cased key, got %v", task.Spec)
	}
	auth := task.Spec["proxy"].(map[string]any)["basicauthentication"].(map[string]any)
	if auth["username"] != "u" {
		t.Errorf("nested keys not lower-cased: %v", auth)
	}
	header := task.Spec["extraheaders"].([]any)[0].(map[string]any)
	if header["name"] != "X-A" {
		t.Errorf("keys in slices not lower-cased: %v", header)
	}
	if task.Label() != "CliInputPrompt:test1" {
		t.Errorf("Label() = %s", task.Label())
	}
}

func TestNewTaskFallbackID(t *testing.T) {
	a := NewTask("WriteFile", "v1", map[string]any{"data": "x"}, Metadata{})
	b := NewTask("WriteFile", "v1", map[string]any{"data": "x"}, Metadata{})
	c := NewTask("WriteFile", "v1", map[string]any{"data": "y"}, Metadata{})

	if len(a.ID) != 12 {
		t.Errorf("fallback ID = %q, want 12 characters", a.ID)
	}
	if a.ID != b.ID {
		t.Error("fallback ID should be deterministic")
	}
	if a.ID == c.ID {
		t.Error("fallback ID should depend on the spec")
	}
}

func TestTaskCloneIsIndependent(t *testing.T) {
	task := NewTask("WriteFile", "v1", map[string]any{"nested": map[string]any{"k": "v"}}, Metadata{})
	task.State = &TaskState{AppliedSpec: map[string]any{"k": "v"}, CreatedAt: time.Now()}

	clone := task.Clone()
	clone.Spec["nested"].(map[string]any)["k"] = "changed"
	clone.State.AppliedSpec["k"] = "changed"

	if task.Spec["nested"].(map[string]any)["k"] != "v" {
		t.Error("clone shares spec with original")
	}
	if task.State.AppliedSpec["k"] != "v" {
		t.Error("clone shares state with original")
	}
}

func TestShouldProcess(t *testing.T) {
	metadata := Metadata{
		ContextualIdentifiers: []ContextualIdentifier{
			{
				Type: "ExecutionScope",
				Key:  "INCLUDE",
				Contexts: []ScopeContext{
					{Type: "Environment", Names: []string{"sandbox", "test", "prod"}},
				},
			},
			{
				Type: "ExecutionScope",
				Key:  "EXCLUDE",
				Contexts: []ScopeContext{
					{Type: "Command", Names: []string{"delete"}},
				},
			},
		},
	}
	task := NewTask("ShellScript", "v1", map[string]any{}, metadata)

	tests := []struct {
		command string
		context string
		want    bool
	}{
		{"apply", "prod", true},
		{"apply", "dev", false},
		{"delete", "prod", false},
		{"describe", "TEST", true},
	}
	for _, tt := range tests {
		if got := task.ShouldProcess(tt.command, tt.context); got != tt.want {
			t.Errorf("ShouldProcess(%s, %s) = %v, want %v", tt.command, tt.context, got, tt.want)
		}
	}

	unscoped := NewTask("ShellScript", "v1", map[string]any{}, Metadata{})
	if !unscoped.ShouldProcess("anything", "anywhere") {
		t.Error("task without contextual identifiers should always be processed")
	}
}

func TestNewTaskState(t *testing.T) {
	task := NewTask("WriteFile", "v1", map[string]any{"data": "x"}, Metadata{})
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))

	state := NewTaskState(task, "abc", at)
	if state.AppliedSpecChecksum != task.SpecChecksum() {
		t.Error("applied spec checksum mismatch")
	}
	if state.AppliedResourceChecksum != "abc" {
		t.Error("resource checksum mismatch")
	}
	if state.CreatedAt.Location() != time.UTC {
		t.Error("expected UTC timestamp")
	}
	if (*TaskState)(nil).Clone() != nil {
		t.Error("nil clone should be nil")
	}
}
