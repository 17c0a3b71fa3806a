package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics provides Prometheus metrics for task processing. A nil *Metrics or
// one created with metrics disabled is a valid no-op collector.
type Metrics struct {
	config MetricsConfig

	tasksProcessed  *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	idempotentSkips *prometheus.CounterVec
	errorsByClass   *prometheus.CounterVec

	downloadBytes   *prometheus.CounterVec
	downloadSkipped prometheus.Counter
	promptTimeouts  prometheus.Counter
	fileWrites      *prometheus.CounterVec
	driftDetections *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		tasksProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_processed_total",
				Help:      "Total number of processor invocations",
			},
			[]string{"kind", "action", "outcome"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Duration of processor invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"kind", "action"},
		),
		idempotentSkips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "idempotent_skips_total",
				Help:      "Invocations skipped because a result already existed",
			},
			[]string{"kind"},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by classification",
			},
			[]string{"class"},
		),
		downloadBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "download_bytes_total",
				Help:      "Bytes written by the download processor",
			},
			[]string{"strategy"},
		),
		downloadSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "download_skipped_total",
				Help:      "Downloads skipped because the local file already matched",
			},
		),
		promptTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prompt_timeouts_total",
				Help:      "Interactive prompts that fell back to their default value on timeout",
			},
		),
		fileWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "file_writes_total",
				Help:      "File write decisions by outcome",
			},
			[]string{"outcome"},
		),
		driftDetections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "drift_detections_total",
				Help:      "Drift checks by kind and result",
			},
			[]string{"kind", "drifted"},
		),
	}

	registry.MustRegister(
		m.tasksProcessed,
		m.taskDuration,
		m.idempotentSkips,
		m.errorsByClass,
		m.downloadBytes,
		m.downloadSkipped,
		m.promptTimeouts,
		m.fileWrites,
		m.driftDetections,
	)

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordTask records a processor invocation and its duration.
func (m *Metrics) RecordTask(kind, action, outcome string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.tasksProcessed.WithLabelValues(kind, action, outcome).Inc()
	m.taskDuration.WithLabelValues(kind, action).Observe(duration.Seconds())
}

// RecordIdempotentSkip records an invocation that found an existing result.
func (m *Metrics) RecordIdempotentSkip(kind string) {
	if !m.enabled() {
		return
	}
	m.idempotentSkips.WithLabelValues(kind).Inc()
}

// RecordError records an error by class.
func (m *Metrics) RecordError(class string) {
	if !m.enabled() {
		return
	}
	if class == "" {
		class = "unclassified"
	}
	m.errorsByClass.WithLabelValues(class).Inc()
}

// RecordDownload records bytes written by a download strategy.
func (m *Metrics) RecordDownload(strategy string, bytes int64) {
	if !m.enabled() {
		return
	}
	m.downloadBytes.WithLabelValues(strategy).Add(float64(bytes))
}

// RecordDownloadSkipped records a download that was not needed.
func (m *Metrics) RecordDownloadSkipped() {
	if !m.enabled() {
		return
	}
	m.downloadSkipped.Inc()
}

// RecordPromptTimeout records a prompt that timed out.
func (m *Metrics) RecordPromptTimeout() {
	if !m.enabled() {
		return
	}
	m.promptTimeouts.Inc()
}

// RecordFileWrite records a file write decision (written, unchanged, skipped, deleted).
func (m *Metrics) RecordFileWrite(outcome string) {
	if !m.enabled() {
		return
	}
	m.fileWrites.WithLabelValues(outcome).Inc()
}

// RecordDrift records the result of a drift check.
func (m *Metrics) RecordDrift(kind string, drifted bool) {
	if !m.enabled() {
		return
	}
	label := "false"
	if drifted {
		label = "true"
	}
	m.driftDetections.WithLabelValues(kind, label).Inc()
}

// Registry exposes the underlying registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves the metrics endpoint until ctx is cancelled.
func (m *Metrics) StartMetricsServer(ctx context.Context, logger zerolog.Logger) error {
	if !m.enabled() || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info().Str("address", m.config.ListenAddress).Str("path", path).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server error")
		}
	}()

	return nil
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
