package telemetry

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the logger, tracer and metrics used while processing tasks.
type Telemetry struct {
	Logger  zerolog.Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger.With().Str("service", cfg.ServiceName).Logger(),
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromContext retrieves the telemetry instance from the context, or nil.
func FromContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// MetricsFromContext returns the metrics collector in ctx. The result may be
// nil, which every Metrics method treats as a no-op.
func MetricsFromContext(ctx context.Context) *Metrics {
	if t := FromContext(ctx); t != nil {
		return t.Metrics
	}
	return nil
}

// Shutdown flushes and stops the tracer.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.Tracer.Shutdown(ctx)
}

// TaskOperation tracks one processor invocation across logs, spans and metrics.
type TaskOperation struct {
	Ctx    context.Context
	Logger zerolog.Logger

	span    trace.Span
	metrics *Metrics
	timer   *Timer
	kind    string
	action  string
}

// StartTask begins an instrumented processor invocation. It works without
// telemetry in ctx, in which case only the returned logger is meaningful.
func StartTask(ctx context.Context, kind, taskID, command, execContext, action string) *TaskOperation {
	logger := TaskLogger(LoggerFromContext(ctx), kind, taskID, command, execContext).
		With().Str("action", action).Logger()

	op := &TaskOperation{
		Ctx:    ctx,
		Logger: logger,
		timer:  NewTimer(),
		kind:   kind,
		action: action,
	}

	tel := FromContext(ctx)
	if tel == nil {
		return op
	}

	op.metrics = tel.Metrics
	op.Ctx, op.span = tel.Tracer.StartTaskSpan(ctx, kind, taskID, command, action)
	if traceID := TraceID(op.Ctx); traceID != "" {
		op.Logger = op.Logger.With().Str("trace_id", traceID).Logger()
	}
	return op
}

// Metrics returns the collector for this invocation, possibly nil.
func (op *TaskOperation) Metrics() *Metrics {
	return op.metrics
}

// End records the outcome of the invocation. class is the error class of err,
// empty on success.
func (op *TaskOperation) End(outcome string, class string, err error) {
	op.metrics.RecordTask(op.kind, op.action, outcome, op.timer.Duration())
	if err != nil {
		op.metrics.RecordError(class)
	}

	if op.span == nil {
		return
	}
	op.span.SetAttributes(AttrOutcome.String(outcome))
	if err != nil {
		op.span.SetAttributes(AttrErrorClass.String(class))
		RecordError(op.span, err)
	} else {
		RecordSuccess(op.span)
	}
	op.span.End()
}
