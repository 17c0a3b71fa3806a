// Package telemetry instruments task processing with structured logging
// (zerolog), tracing (OpenTelemetry) and metrics (Prometheus).
//
// # Usage
//
// Build a Telemetry at startup and attach it to the context handed to the
// runner:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Metrics.ListenAddress = ":9090"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//	_ = tel.Metrics.StartMetricsServer(ctx, tel.Logger)
//
// # Processor invocations
//
// Processors wrap each action in a TaskOperation. It carries a logger with
// the kind, task ID, command and context fields, a span when tracing is on,
// and records the outcome when it ends:
//
//	op := telemetry.StartTask(ctx, "WriteFile", "motd", "apply", "default", "create")
//	err := doWork(op.Ctx)
//	op.End(outcome, class, err)
//
// Everything degrades to a no-op when ctx carries no Telemetry, so processors
// can be used in tests without any setup.
//
// # Metrics
//
// Metrics are registered on a private registry and served by
// StartMetricsServer. Methods on a nil *Metrics do nothing.
//
// # Tracing
//
// Supported exporters are otlp (gRPC), stdout and none. Each run gets a span
// and each processor invocation a child span.
package telemetry
