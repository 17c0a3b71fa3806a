package writefile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openfroyo/instrumenta/pkg/checksum"
	"github.com/openfroyo/instrumenta/pkg/engine"
)

func fileTask(spec map[string]any) *engine.Task {
	return engine.NewTask(Kind, "v1", spec, engine.Metadata{
		Identifiers: []engine.Identifier{{Type: engine.IdentifierTypeManifestName, Key: "motd"}},
	})
}

func process(t *testing.T, task *engine.Task, command string) (*engine.KeyValueStore, error) {
	t.Helper()
	p, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p.Process(context.Background(), task, command, "test", engine.NewKeyValueStore())
}

func get(t *testing.T, store *engine.KeyValueStore, command, field string) any {
	t.Helper()
	v, ok := store.Get("WriteFile:motd:" + command + ":test:" + field)
	if !ok {
		t.Fatalf("key %s not set", field)
	}
	return v
}

func TestWriteNewFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "etc", "motd")

	store, err := process(t, fileTask(map[string]any{"targetFile": target, "data": "welcome"}), "apply")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("failed to read target: %v", err)
	}
	if string(data) != "welcome" {
		t.Errorf("content = %q", data)
	}
	info, _ := os.Stat(target)
	if info.Mode().Perm() != ModeNormal {
		t.Errorf("mode = %o, want %o", info.Mode().Perm(), ModeNormal)
	}

	if get(t, store, "apply", "WRITTEN") != true {
		t.Error("WRITTEN should be true")
	}
	if get(t, store, "apply", "EXECUTABLE") != false {
		t.Error("EXECUTABLE should be false")
	}
	if get(t, store, "apply", "SIZE") != int64(7) {
		t.Errorf("SIZE = %v", get(t, store, "apply", "SIZE"))
	}
	sum := checksum.String("welcome")
	if get(t, store, "apply", "SHA256_CHECKSUM") != sum {
		t.Error("SHA256_CHECKSUM mismatch")
	}
	if get(t, store, "apply", "RESULT") != sum {
		t.Error("RESULT should be the file checksum")
	}
	if get(t, store, "apply", "FILE_PATH") != target {
		t.Error("FILE_PATH mismatch")
	}
}

func TestWriteExecutable(t *testing.T) {
	target := filepath.Join(t.TempDir(), "run.sh")

	store, err := process(t, fileTask(map[string]any{
		"targetFile": target,
		"data":       "#!/bin/sh\necho hi\n",
		"fileMode":   "executable",
	}), "apply")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	info, _ := os.Stat(target)
	if info.Mode().Perm() != ModeExecutable {
		t.Errorf("mode = %o, want %o", info.Mode().Perm(), ModeExecutable)
	}
	if get(t, store, "apply", "EXECUTABLE") != true {
		t.Error("EXECUTABLE should be true")
	}
}

func TestWriteSkippedWhenContentMatches(t *testing.T) {
	target := filepath.Join(t.TempDir(), "motd")
	if err := os.WriteFile(target, []byte("same"), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(target, old, old); err != nil {
		t.Fatal(err)
	}

	store, err := process(t, fileTask(map[string]any{"targetFile": target, "data": "same"}), "apply")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if get(t, store, "apply", "WRITTEN") == true {
		t.Error("WRITTEN must not be true when content matches")
	}
	info, _ := os.Stat(target)
	if !info.ModTime().Equal(old) {
		t.Error("file must not be rewritten")
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("mode changed to %o", info.Mode().Perm())
	}
}

func TestWriteOverwritesDifferentContent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "motd")
	if err := os.WriteFile(target, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := process(t, fileTask(map[string]any{
		"targetFile":                target,
		"data":                      "new",
		"actionIfFileAlreadyExists": "overwrite",
	}), "update")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	data, _ := os.ReadFile(target)
	if string(data) != "new" {
		t.Errorf("content = %q", data)
	}
	if get(t, store, "update", "WRITTEN") != true {
		t.Error("WRITTEN should be true")
	}
}

func TestWriteSkipPolicy(t *testing.T) {
	target := filepath.Join(t.TempDir(), "motd")
	if err := os.WriteFile(target, []byte("keep me"), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := process(t, fileTask(map[string]any{
		"targetFile":                target,
		"data":                      "replace me",
		"actionIfFileAlreadyExists": "skip",
	}), "apply")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	data, _ := os.ReadFile(target)
	if string(data) != "keep me" {
		t.Errorf("content = %q, want untouched", data)
	}
	if get(t, store, "apply", "WRITTEN") != false {
		t.Error("WRITTEN should be false")
	}
	if get(t, store, "apply", "RESULT") != checksum.String("keep me") {
		t.Error("RESULT should describe the existing file")
	}
}

func TestWriteTargetIsDirectory(t *testing.T) {
	_, err := process(t, fileTask(map[string]any{"targetFile": t.TempDir(), "data": "x"}), "apply")
	if !engine.IsStateError(err) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestWriteConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		spec map[string]any
	}{
		{"missing target", map[string]any{"data": "x"}},
		{"missing data", map[string]any{"targetFile": "/tmp/x"}},
		{"data not a string", map[string]any{"targetFile": "/tmp/x", "data": 12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := process(t, fileTask(tt.spec), "apply"); !engine.IsConfigurationError(err) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestDeleteFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "motd")
	if err := os.WriteFile(target, []byte("bye"), 0644); err != nil {
		t.Fatal(err)
	}
	task := fileTask(map[string]any{"targetFile": target, "data": "bye"})

	store, err := process(t, task, "delete")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("file should be gone")
	}
	if get(t, store, "delete", "DELETED") != true {
		t.Error("DELETED should be true")
	}

	store, err = process(t, task, "delete")
	if err != nil {
		t.Fatalf("second delete error = %v", err)
	}
	if get(t, store, "delete", "DELETED") != false {
		t.Error("DELETED should be false for a missing file")
	}
}

func TestDescribeUnappliedTask(t *testing.T) {
	target := filepath.Join(t.TempDir(), "motd")
	store, err := process(t, fileTask(map[string]any{"targetFile": target, "data": "x"}), "describe")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	state, ok := get(t, store, "describe", "RESOURCE_STATE").(map[string]any)
	if !ok {
		t.Fatal("RESOURCE_STATE should be a map")
	}
	if state["IsCreated"] != "No" || state["ResourceDrifted"] != "Unknown" || state["CreatedTimestamp"] != "-" {
		t.Errorf("unexpected descriptor %v", state)
	}
	if get(t, store, "describe", "RESULT") != "" {
		t.Error("RESULT should be empty for a missing file")
	}
}

func TestDriftAgainstAppliedState(t *testing.T) {
	target := filepath.Join(t.TempDir(), "motd")
	if err := os.WriteFile(target, []byte("applied"), 0600); err != nil {
		t.Fatal(err)
	}
	task := fileTask(map[string]any{"targetFile": target, "data": "applied"})
	task.State = engine.NewTaskState(task, checksum.MustValue(checksum.String("applied")), time.Now())

	store, err := process(t, task, "drift")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	raw := get(t, store, "drift", "DRIFT_RAW_DATA").(map[string]any)
	if raw["ResourceDrifted"] != false || raw["SpecDrifted"] != false {
		t.Errorf("expected no drift, got %v", raw)
	}

	if err := os.WriteFile(target, []byte("tampered"), 0600); err != nil {
		t.Fatal(err)
	}
	store, err = process(t, task, "drift")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	raw = get(t, store, "drift", "DRIFT_RAW_DATA").(map[string]any)
	if raw["ResourceDrifted"] != true {
		t.Errorf("expected resource drift, got %v", raw)
	}
	human := get(t, store, "drift", "DRIFT_HUMAN_READABLE").(map[string]any)
	if human["ResourceDrifted"] != "Yes" {
		t.Errorf("human ResourceDrifted = %v", human["ResourceDrifted"])
	}
}
