package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/openfroyo/instrumenta/pkg/runner"
	"github.com/openfroyo/instrumenta/pkg/stores"
	"github.com/openfroyo/instrumenta/pkg/telemetry"
)

// environment is everything a command needs to process tasks.
type environment struct {
	telemetry   *telemetry.Telemetry
	persistence stores.StatePersistence
	runner      *runner.Runner
	close       func()
}

func (o *globalOptions) telemetryConfig() *telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = o.version
	cfg.Environment = o.execContext
	cfg.Logging.Level = o.logLevel
	cfg.Logging.Format = o.logFormat
	cfg.Metrics.ListenAddress = o.metricsAddr
	if o.traceExporter != "" && o.traceExporter != "none" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = o.traceExporter
		cfg.Tracing.Endpoint = o.traceEndpoint
	}
	return cfg
}

func (o *globalOptions) openPersistence(ctx context.Context) (stores.StatePersistence, func(), error) {
	switch o.stateBackend {
	case "file", "":
		store, err := stores.NewFileStore(o.statePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "sqlite":
		store, err := stores.OpenSQLiteStore(ctx, o.statePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown state backend %q (must be 'file' or 'sqlite')", o.stateBackend)
	}
}

// setup builds telemetry, persistence and the runner. The returned context
// carries the telemetry instance.
func (o *globalOptions) setup(ctx context.Context) (context.Context, *environment, error) {
	tel, err := telemetry.NewTelemetry(o.telemetryConfig())
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	ctx = tel.WithContext(ctx)

	if err := tel.Metrics.StartMetricsServer(ctx, tel.Logger); err != nil {
		return ctx, nil, err
	}

	persistence, closeStore, err := o.openPersistence(ctx)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return ctx, nil, err
	}

	registry, err := runner.DefaultRegistry(os.Stdin, os.Stdout)
	if err != nil {
		closeStore()
		_ = tel.Shutdown(context.Background())
		return ctx, nil, err
	}

	env := &environment{
		telemetry:   tel,
		persistence: persistence,
		runner:      runner.New(registry, persistence, tel.Logger),
	}
	env.close = func() {
		if err := registry.Close(); err != nil {
			tel.Logger.Warn().Err(err).Msg("Failed to close processors")
		}
		closeStore()
		if err := tel.Shutdown(context.Background()); err != nil {
			tel.Logger.Warn().Err(err).Msg("Failed to shut down telemetry")
		}
	}
	return ctx, env, nil
}
