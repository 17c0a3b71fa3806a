// Package engine provides the core types shared by Instrumenta task processors.
//
// # Overview
//
// A Task carries a kind, a version, a spec and metadata. A processor for the
// task's kind receives the task together with a command, an execution context
// and the shared KeyValueStore, performs its side effect and returns a new
// store with its results added:
//
//	out, err := proc.Process(ctx, task, "apply", "prod", store)
//
// # Result keys
//
// Every result is published under a key of the form
//
//	{kind}:{taskId}:{command}:{context}:{FIELD}
//
// built with ResultKey. The RESULT field doubles as the idempotency marker:
// when it already exists for a (kind, task, command, context) tuple, the
// processor returns an unmodified copy of the store.
//
// # Actions
//
// Commands are free-form. Each processor maps them onto a closed set of
// Actions: create, destroy, describe, rollback and detect-drift.
//
// # State and drift
//
// TaskState records what was last applied. Describe compares it with the
// current spec and resource checksum and yields a StateDescriptor that can
// be rendered raw (booleans, nil) or human readable (Yes/No, "-").
//
// # Errors
//
// Failures are reported as *TaskError classified as configuration, state,
// transport or input-timeout; use IsConfigurationError and friends to
// inspect them.
package engine
