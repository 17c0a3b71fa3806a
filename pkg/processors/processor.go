package processors

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfroyo/instrumenta/pkg/engine"
	"github.com/openfroyo/instrumenta/pkg/telemetry"
)

// Processor handles every task of one kind.
type Processor interface {
	// Kind returns the task kind this processor handles.
	Kind() string

	// Versions returns the task versions this processor accepts.
	Versions() []string

	// ResolveAction maps a command onto the action the processor performs.
	ResolveAction(command string) engine.Action

	// Process runs the task for command in execContext. The received store is
	// never mutated; the returned store is a modified copy of it.
	Process(ctx context.Context, task *engine.Task, command, execContext string, store *engine.KeyValueStore) (*engine.KeyValueStore, error)
}

// Request is the input of an action handler.
type Request struct {
	Task    *engine.Task
	Command string
	Context string
	Action  engine.Action
	Store   *engine.KeyValueStore
	Logger  zerolog.Logger
}

// Key returns the result key for field in this request's tuple.
func (r *Request) Key(field string) string {
	return engine.ResultKey(r.Task.Kind, r.Task.ID, r.Command, r.Context, field)
}

// Save stores value under the result key for field.
func (r *Request) Save(field string, value any) {
	r.Store.Save(r.Key(field), value)
}

// HandlerFunc performs one action. It publishes results by saving into
// req.Store, which is already a private copy.
type HandlerFunc func(ctx context.Context, req *Request) error

// BaseConfig describes a processor built on Base.
type BaseConfig struct {
	Kind          string
	Versions      []string
	Links         LinkTable
	DefaultAction engine.Action
	Handlers      map[engine.Action]HandlerFunc
}

// Base implements Processor on top of a Router and a set of action handlers.
type Base struct {
	kind     string
	versions []string
	router   *Router
	handlers map[engine.Action]HandlerFunc
}

// NewBase validates the configuration and builds a Base. Every action the
// router can produce must have a handler.
func NewBase(cfg BaseConfig) (*Base, error) {
	if cfg.Kind == "" {
		return nil, engine.NewConfigurationError("processor kind is required", nil)
	}
	if len(cfg.Versions) == 0 {
		return nil, engine.NewConfigurationError("processor must support at least one version", nil).
			WithResource(cfg.Kind)
	}

	router, err := NewRouter(cfg.Links, cfg.DefaultAction)
	if err != nil {
		return nil, fmt.Errorf("processor %s: %w", cfg.Kind, err)
	}

	for _, action := range router.Actions() {
		if cfg.Handlers[action] == nil {
			return nil, engine.NewConfigurationError(
				fmt.Sprintf("no handler for action %s", action), nil,
			).WithResource(cfg.Kind).WithCode(engine.ErrCodeNoHandler)
		}
	}

	handlers := make(map[engine.Action]HandlerFunc, len(cfg.Handlers))
	for a, h := range cfg.Handlers {
		handlers[a] = h
	}

	return &Base{
		kind:     cfg.Kind,
		versions: append([]string(nil), cfg.Versions...),
		router:   router,
		handlers: handlers,
	}, nil
}

// Kind implements Processor.
func (b *Base) Kind() string { return b.kind }

// Versions implements Processor.
func (b *Base) Versions() []string { return append([]string(nil), b.versions...) }

// ResolveAction implements Processor.
func (b *Base) ResolveAction(command string) engine.Action {
	return b.router.Resolve(command)
}

// Supports reports whether the task's kind and version are handled.
func (b *Base) Supports(task *engine.Task) bool {
	if task.Kind != b.kind {
		return false
	}
	for _, v := range b.versions {
		if v == task.Version {
			return true
		}
	}
	return false
}

// Process implements Processor.
func (b *Base) Process(ctx context.Context, task *engine.Task, command, execContext string, store *engine.KeyValueStore) (*engine.KeyValueStore, error) {
	if task == nil {
		return nil, engine.NewConfigurationError("task is required", nil).WithResource(b.kind)
	}
	if !b.Supports(task) {
		return nil, engine.NewConfigurationError(
			fmt.Sprintf("processor %s does not handle %s version %s", b.kind, task.Kind, task.Version), nil,
		).WithResource(task.Label())
	}
	if store == nil {
		store = engine.NewKeyValueStore()
	}

	action := b.router.Resolve(command)
	op := telemetry.StartTask(ctx, task.Kind, task.ID, command, execContext, string(action))

	out := store.Clone()
	resultKey := engine.ResultKey(task.Kind, task.ID, command, execContext, engine.FieldResult)
	if out.Has(resultKey) {
		op.Logger.Info().Str("key", resultKey).Msg("Result already present, skipping")
		op.Metrics().RecordIdempotentSkip(task.Kind)
		op.End("skipped", "", nil)
		return out, nil
	}

	req := &Request{
		Task:    task.Clone(),
		Command: command,
		Context: execContext,
		Action:  action,
		Store:   out,
		Logger:  op.Logger,
	}

	op.Logger.Debug().Msg("Processing task")
	if err := b.handlers[action](op.Ctx, req); err != nil {
		class := engine.ClassOf(err)
		op.Logger.Error().Err(err).Str("class", string(class)).Msg("Task processing failed")
		op.End("failed", string(class), err)
		return nil, err
	}

	op.Logger.Info().Msg("Task processed")
	op.End("processed", "", nil)
	return req.Store, nil
}
