// Package runner drives task processors over a set of tasks. It loads the
// persisted state, decides which tasks apply to the command and context,
// resolves key/value references in their specs, dispatches each task to its
// processor and persists the merged results.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/instrumenta/pkg/checksum"
	"github.com/openfroyo/instrumenta/pkg/engine"
	"github.com/openfroyo/instrumenta/pkg/processors"
	"github.com/openfroyo/instrumenta/pkg/stores"
	"github.com/openfroyo/instrumenta/pkg/telemetry"
)

// Runner processes tasks against persisted state.
type Runner struct {
	registry    *processors.Registry
	persistence stores.StatePersistence
	logger      zerolog.Logger
	now         func() time.Time
}

// New creates a runner. A nil persistence keeps state in memory only.
func New(registry *processors.Registry, persistence stores.StatePersistence, logger zerolog.Logger) *Runner {
	if persistence == nil {
		persistence = stores.NewMemoryStore()
	}
	return &Runner{
		registry:    registry,
		persistence: persistence,
		logger:      logger,
		now:         time.Now,
	}
}

// Summary describes a completed run.
type Summary struct {
	RunID     string
	Command   string
	Context   string
	Processed []string
	Skipped   []string
	Store     *engine.KeyValueStore
}

// LoadState returns the persisted state.
func (r *Runner) LoadState(ctx context.Context) (*State, error) {
	raw, err := r.persistence.RetrieveAll(ctx)
	if err != nil {
		return nil, engine.NewStateError("failed to load state", err)
	}
	return DecodeState(raw)
}

// Run processes tasks in order for command in execContext. Processing stops
// at the first failing task; results gathered up to that point are persisted.
func (r *Runner) Run(ctx context.Context, tasks []*engine.Task, command, execContext string) (*Summary, error) {
	runID := uuid.NewString()
	logger := r.logger.With().Str("run_id", runID).Str("command", command).Str("context", execContext).Logger()
	ctx = logger.WithContext(ctx)

	var span trace.Span
	if tel := telemetry.FromContext(ctx); tel != nil {
		ctx, span = tel.Tracer.StartRunSpan(ctx, runID, command)
		defer span.End()
	}

	state, err := r.LoadState(ctx)
	if err != nil {
		return nil, err
	}

	recorder, _ := r.persistence.(stores.RunRecorder)
	if recorder != nil {
		if err := recorder.CreateRun(ctx, &stores.Run{
			ID:         runID,
			Command:    command,
			Context:    execContext,
			Status:     stores.RunStatusRunning,
			TasksTotal: len(tasks),
			StartedAt:  r.now(),
		}); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run")
			recorder = nil
		}
	}

	summary := &Summary{RunID: runID, Command: command, Context: execContext}
	logger.Info().Int("tasks", len(tasks)).Msg("Starting run")

	var runErr error
	for _, task := range tasks {
		if !task.ShouldProcess(command, execContext) {
			logger.Debug().Str("task", task.Label()).Msg("Task excluded by its execution scope")
			summary.Skipped = append(summary.Skipped, task.Label())
			continue
		}
		if runErr = r.processTask(ctx, state, task, command, execContext); runErr != nil {
			break
		}
		summary.Processed = append(summary.Processed, task.Label())
	}

	summary.Store = state.Store.Clone()
	if err := r.persistence.PersistAll(ctx, state.Encode()); err != nil {
		persistErr := engine.NewStateError("failed to persist state", err)
		if runErr == nil {
			runErr = persistErr
		} else {
			logger.Error().Err(persistErr).Msg("Failed to persist state after task failure")
		}
	}

	status := stores.RunStatusCompleted
	var errMsg *string
	if runErr != nil {
		status = stores.RunStatusFailed
		msg := runErr.Error()
		errMsg = &msg
	}
	if recorder != nil {
		if err := recorder.CompleteRun(ctx, runID, status, len(summary.Processed), errMsg); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run completion")
		}
	}

	if span != nil {
		if runErr != nil {
			telemetry.RecordError(span, runErr)
		} else {
			telemetry.RecordSuccess(span)
		}
	}

	if runErr != nil {
		logger.Error().Err(runErr).Int("processed", len(summary.Processed)).Msg("Run failed")
		return summary, runErr
	}
	logger.Info().
		Int("processed", len(summary.Processed)).
		Int("skipped", len(summary.Skipped)).
		Msg("Run completed")
	return summary, nil
}

func (r *Runner) processTask(ctx context.Context, state *State, task *engine.Task, command, execContext string) error {
	processor, err := r.registry.For(task)
	if err != nil {
		return err
	}

	resolved := task.Clone()
	resolved.Spec, err = ResolveReferences(task.Spec, state.Store)
	if err != nil {
		return fmt.Errorf("task %s: %w", task.Label(), err)
	}
	key := StateKey(task)
	resolved.State = state.TaskStates[key].Clone()

	resultKey := engine.ResultKey(task.Kind, task.ID, command, execContext, engine.FieldResult)
	alreadyDone := state.Store.Has(resultKey)

	out, err := processor.Process(ctx, resolved, command, execContext, state.Store)
	if err != nil {
		return err
	}
	state.Store.Merge(out)

	if alreadyDone {
		return nil
	}
	switch processor.ResolveAction(command) {
	case engine.ActionCreate, engine.ActionRollback:
		if value, ok := out.Get(resultKey); ok {
			state.TaskStates[key] = engine.NewTaskState(resolved, checksum.MustValue(value), r.now())
		}
	case engine.ActionDestroy:
		delete(state.TaskStates, key)
	}
	return nil
}
