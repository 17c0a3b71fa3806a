package stores

import (
	"context"
	"time"
)

// StatePersistence loads and saves the runner state as a whole.
type StatePersistence interface {
	// RetrieveAll returns every persisted top-level entry. A backend with
	// nothing stored yet returns an empty map.
	RetrieveAll(ctx context.Context) (map[string]any, error)

	// PersistAll replaces the stored state with state.
	PersistAll(ctx context.Context, state map[string]any) error
}

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one invocation of the runner.
type Run struct {
	ID             string     `json:"id" yaml:"id"`
	Command        string     `json:"command" yaml:"command"`
	Context        string     `json:"context" yaml:"context"`
	Status         RunStatus  `json:"status" yaml:"status"`
	TasksTotal     int        `json:"tasks_total" yaml:"tasks_total"`
	TasksProcessed int        `json:"tasks_processed" yaml:"tasks_processed"`
	Error          *string    `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// RunRecorder is implemented by backends that keep a run history.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *Run) error
	CompleteRun(ctx context.Context, id string, status RunStatus, processed int, errMsg *string) error
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
}
