// Package download implements the WebDownloadFile processor, which fetches a
// URL into a local file. Every command downloads; a file that already exists
// with the size the server reports is left alone.
package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/openfroyo/instrumenta/pkg/checksum"
	"github.com/openfroyo/instrumenta/pkg/engine"
	"github.com/openfroyo/instrumenta/pkg/processors"
	"github.com/openfroyo/instrumenta/pkg/telemetry"
)

// Kind is the task kind handled by this package.
const Kind = "WebDownloadFile"

// ResultNotApplicable is stored as RESULT when no transfer was needed.
const ResultNotApplicable = "n/a"

// Processor is the WebDownloadFile processor.
type Processor struct {
	*processors.Base
}

// New returns a WebDownloadFile processor.
func New() (*Processor, error) {
	p := &Processor{}
	base, err := processors.NewBase(processors.BaseConfig{
		Kind:          Kind,
		Versions:      []string{"v1"},
		DefaultAction: engine.ActionCreate,
		Handlers: map[engine.Action]processors.HandlerFunc{
			engine.ActionCreate: p.handleDownload,
		},
	})
	if err != nil {
		return nil, err
	}
	p.Base = base
	return p, nil
}

func downloadError(cfg *Config, err error) *engine.TaskError {
	return engine.NewTransportError(
		fmt.Sprintf("Failed to download \"%s\" to \"%s\"", cfg.SourceURL, cfg.TargetOutputFile), err,
	).WithResource(cfg.SourceURL.String()).WithCode(engine.ErrCodeDownloadFailed)
}

func (p *Processor) handleDownload(ctx context.Context, req *processors.Request) error {
	cfg, err := parseConfig(req.Task.Spec, req.Logger)
	if err != nil {
		return err
	}
	logger := req.Logger.With().Str("url", cfg.SourceURL.Redacted()).Str("target", cfg.TargetOutputFile).Logger()
	metrics := telemetry.MetricsFromContext(ctx)

	info, statErr := os.Stat(cfg.TargetOutputFile)
	exists := statErr == nil
	if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
		return engine.NewStateError("cannot inspect download target", statErr).WithResource(cfg.TargetOutputFile)
	}
	if exists && !info.Mode().IsRegular() {
		return engine.NewStateError("download target exists but is not a regular file", nil).
			WithResource(cfg.TargetOutputFile).
			WithCode(engine.ErrCodeNotRegularFile)
	}

	client := newHTTPClient(cfg)
	remoteSize := probeContentLength(ctx, client, cfg, logger)

	if exists && info.Size() == remoteSize {
		sum, err := checksum.File(cfg.TargetOutputFile)
		if err != nil {
			return engine.NewStateError("cannot read existing download target", err).WithResource(cfg.TargetOutputFile)
		}
		logger.Info().Int64("size", remoteSize).Msg("Local file already matches remote size, skipping download")
		metrics.RecordDownloadSkipped()
		req.Save(engine.FieldResult, ResultNotApplicable)
		req.Save(engine.FieldFilePath, cfg.TargetOutputFile)
		req.Save(engine.FieldSize, info.Size())
		req.Save(engine.FieldSHA256Checksum, sum)
		return nil
	}

	strategy := NewStrategy(SelectStrategy(cfg.Method, remoteSize))
	logger.Debug().Str("strategy", string(strategy.Kind())).Int64("expected_size", remoteSize).Msg("Starting download")

	httpReq, err := newRequest(ctx, cfg)
	if err != nil {
		return downloadError(cfg, err)
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return downloadError(cfg, err)
	}
	defer resp.Body.Close()

	if !cfg.SuccessCodes.Contains(resp.StatusCode) {
		if cfg.ExceptionOnError {
			return downloadError(cfg, fmt.Errorf("unexpected status %s", resp.Status)).
				WithCode(engine.ErrCodeUnexpectedCode).
				WithDetail("status", resp.StatusCode)
		}
		logger.Warn().Int("status", resp.StatusCode).Msg("Download returned an unexpected status, nothing written")
		req.Save(engine.FieldResult, resp.StatusCode)
		return nil
	}

	transfer, err := strategy.Write(resp.Body, cfg.TargetOutputFile)
	if err != nil {
		return downloadError(cfg, err)
	}
	metrics.RecordDownload(string(strategy.Kind()), transfer.Size)
	logger.Info().Int("status", resp.StatusCode).Int64("size", transfer.Size).Msg("Download complete")

	req.Save(engine.FieldResult, resp.StatusCode)
	req.Save(engine.FieldFilePath, cfg.TargetOutputFile)
	req.Save(engine.FieldSize, transfer.Size)
	req.Save(engine.FieldSHA256Checksum, transfer.Checksum)
	return nil
}
