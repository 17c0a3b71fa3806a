package stores

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setupTestStore creates a migrated SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleState() map[string]any {
	return map[string]any{
		"KeyValueStore": map[string]any{
			"WriteFile:motd:apply:default:RESULT": "abc",
			"ShellScript:s:apply:default:EXIT_CODE": 0,
		},
		"TaskStates": map[string]any{
			"WriteFile:motd": map[string]any{"appliedSpecChecksum": "123"},
		},
	}
}

func TestPersistenceBackends(t *testing.T) {
	backends := map[string]func(t *testing.T) StatePersistence{
		"file": func(t *testing.T) StatePersistence {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "state.json"))
			if err != nil {
				t.Fatal(err)
			}
			return s
		},
		"memory": func(t *testing.T) StatePersistence { return NewMemoryStore() },
		"sqlite": func(t *testing.T) StatePersistence { return setupTestStore(t) },
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)

			state, err := store.RetrieveAll(ctx)
			if err != nil {
				t.Fatalf("RetrieveAll() on empty store error = %v", err)
			}
			if len(state) != 0 {
				t.Fatalf("expected empty state, got %v", state)
			}

			if err := store.PersistAll(ctx, sampleState()); err != nil {
				t.Fatalf("PersistAll() error = %v", err)
			}
			state, err = store.RetrieveAll(ctx)
			if err != nil {
				t.Fatalf("RetrieveAll() error = %v", err)
			}
			kvs, ok := state["KeyValueStore"].(map[string]any)
			if !ok {
				t.Fatalf("KeyValueStore entry missing: %v", state)
			}
			if kvs["WriteFile:motd:apply:default:RESULT"] != "abc" {
				t.Errorf("unexpected sink %v", kvs)
			}
			// JSON numbers come back as float64 from every backend.
			if kvs["ShellScript:s:apply:default:EXIT_CODE"] != float64(0) {
				t.Errorf("EXIT_CODE = %#v", kvs["ShellScript:s:apply:default:EXIT_CODE"])
			}

			if err := store.PersistAll(ctx, map[string]any{"KeyValueStore": map[string]any{}}); err != nil {
				t.Fatalf("PersistAll() error = %v", err)
			}
			state, _ = store.RetrieveAll(ctx)
			if _, ok := state["TaskStates"]; ok {
				t.Error("PersistAll should replace the previous state")
			}
		})
	}
}

func TestFileStoreCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.RetrieveAll(context.Background()); err != nil {
		t.Fatalf("RetrieveAll() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("state file not created: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("state file content = %q, want {}", data)
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	store, _ := NewFileStore(path)
	if _, err := store.RetrieveAll(context.Background()); err == nil {
		t.Error("expected error for corrupt state file")
	}
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestSQLiteMigrationsAreIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	for _, table := range []string{"state_entries", "runs"} {
		var count int
		if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestSQLiteInMemory(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLiteStore(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLiteStore() error = %v", err)
	}
	defer store.Close()

	if err := store.PersistAll(ctx, sampleState()); err != nil {
		t.Fatalf("PersistAll() error = %v", err)
	}
	state, err := store.RetrieveAll(ctx)
	if err != nil {
		t.Fatalf("RetrieveAll() error = %v", err)
	}
	if len(state) != 2 {
		t.Errorf("expected 2 entries, got %d", len(state))
	}
}

func TestSQLiteRunHistory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var recorder RunRecorder = store
	first := &Run{ID: "run-1", Command: "apply", Context: "default", Status: RunStatusRunning, TasksTotal: 3, StartedAt: time.Now().Add(-time.Minute)}
	second := &Run{ID: "run-2", Command: "delete", Context: "prod", Status: RunStatusRunning, TasksTotal: 1, StartedAt: time.Now()}
	for _, run := range []*Run{first, second} {
		if err := recorder.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
	}

	msg := "boom"
	if err := recorder.CompleteRun(ctx, "run-1", RunStatusFailed, 2, &msg); err != nil {
		t.Fatalf("CompleteRun() error = %v", err)
	}
	if err := recorder.CompleteRun(ctx, "missing", RunStatusCompleted, 0, nil); err == nil {
		t.Error("expected error completing an unknown run")
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != RunStatusFailed || got.TasksProcessed != 2 || got.Error == nil || *got.Error != "boom" || got.CompletedAt == nil {
		t.Errorf("unexpected run %+v", got)
	}
	if _, err := store.GetRun(ctx, "missing"); err == nil {
		t.Error("expected error for unknown run")
	}

	runs, err := recorder.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" {
		t.Errorf("expected newest run first, got %d runs", len(runs))
	}
	if runs[0].CompletedAt != nil || runs[0].Error != nil {
		t.Error("running run should have no completion data")
	}
}
