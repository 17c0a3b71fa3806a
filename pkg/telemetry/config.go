package telemetry

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config configures logging, tracing and metrics for a run.
type Config struct {
	ServiceName    string `validate:"required"`
	ServiceVersion string `validate:"required"`

	// Environment is the execution context tasks run in. It is attached to
	// spans as a resource attribute.
	Environment string

	Logging LoggingConfig
	Tracing TracingConfig
	Metrics MetricsConfig
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `validate:"oneof=trace debug info warn error fatal"`
	Format string `validate:"oneof=console json"`

	// Output is stderr, stdout or a file path. Files are appended to.
	Output string

	EnableCaller bool

	// TimeFormat is unix, unixms or rfc3339.
	TimeFormat string `validate:"omitempty,oneof=unix unixms rfc3339"`
}

// TracingConfig configures span export. Exporter is otlp, stdout or none.
type TracingConfig struct {
	Enabled       bool
	Exporter      string  `validate:"omitempty,oneof=otlp stdout none"`
	Endpoint      string  `validate:"omitempty,hostname_port"`
	SamplingRate  float64 `validate:"gte=0,lte=1"`
	ExportTimeout time.Duration
	Headers       map[string]string
	Insecure      bool
}

// MetricsConfig configures the Prometheus collectors. An empty ListenAddress
// keeps collecting without serving /metrics.
type MetricsConfig struct {
	Enabled                 bool
	ListenAddress           string
	Path                    string
	Namespace               string
	DefaultHistogramBuckets []float64
}

// DefaultConfig returns the CLI defaults. Tracing is off so a plain
// invocation prints no spans.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "instrumenta",
		ServiceVersion: "dev",
		Environment:    "default",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "rfc3339",
		},
		Tracing: TracingConfig{
			Exporter:      "none",
			SamplingRate:  1.0,
			ExportTimeout: 30 * time.Second,
			Headers:       map[string]string{},
			Insecure:      true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "instrumenta",
			// Prompts and downloads can take minutes.
			DefaultHistogramBuckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		},
	}
}

// Validate checks field values and the otlp endpoint requirement.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	if c.Tracing.Enabled && c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "" {
		return fmt.Errorf("invalid telemetry configuration: otlp exporter requires an endpoint")
	}
	return nil
}
