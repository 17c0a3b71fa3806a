// Package writefile implements the WriteFile processor. It materialises a
// string payload at a path, skipping the write when the file on disk already
// holds the same content or when the task spec says existing files are left alone.
package writefile

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/openfroyo/instrumenta/pkg/checksum"
	"github.com/openfroyo/instrumenta/pkg/engine"
	"github.com/openfroyo/instrumenta/pkg/processors"
	"github.com/openfroyo/instrumenta/pkg/telemetry"
)

// Kind is the task kind handled by this package.
const Kind = "WriteFile"

// Processor is the WriteFile processor.
type Processor struct {
	*processors.Base
}

// New returns a WriteFile processor.
func New() (*Processor, error) {
	p := &Processor{}
	base, err := processors.NewBase(processors.BaseConfig{
		Kind:          Kind,
		Versions:      []string{"v1"},
		Links:         processors.DefaultLinks(),
		DefaultAction: engine.ActionCreate,
		Handlers: map[engine.Action]processors.HandlerFunc{
			engine.ActionCreate:      p.handleWrite,
			engine.ActionRollback:    p.handleWrite,
			engine.ActionDestroy:     p.handleDelete,
			engine.ActionDescribe:    p.handleDescribe,
			engine.ActionDetectDrift: p.handleDrift,
		},
	})
	if err != nil {
		return nil, err
	}
	p.Base = base
	return p, nil
}

// inspect returns the file info of path, or nil when it does not exist.
// Anything other than a regular file is a state error.
func inspect(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, engine.NewStateError("cannot inspect target file", err).WithResource(path)
	}
	if !info.Mode().IsRegular() {
		return nil, engine.NewStateError("target exists but is not a regular file", nil).
			WithResource(path).
			WithCode(engine.ErrCodeNotRegularFile)
	}
	return info, nil
}

// requiresUpdate reports whether opts.TargetFile must be (re)written.
func requiresUpdate(opts *Options) (bool, error) {
	info, err := inspect(opts.TargetFile)
	if err != nil {
		return false, err
	}
	if info == nil {
		return true, nil
	}
	if opts.Policy == PolicySkip {
		return false, nil
	}
	current, err := checksum.File(opts.TargetFile)
	if err != nil {
		return false, engine.NewStateError("cannot read target file", err).WithResource(opts.TargetFile)
	}
	return current != checksum.String(opts.Data), nil
}

func (p *Processor) handleWrite(ctx context.Context, req *processors.Request) error {
	opts, err := parseOptions(req.Task.Spec, req.Logger)
	if err != nil {
		return err
	}
	logger := req.Logger.With().Str("path", opts.TargetFile).Logger()
	metrics := telemetry.MetricsFromContext(ctx)

	update, err := requiresUpdate(opts)
	if err != nil {
		metrics.RecordFileWrite("failed")
		return err
	}

	if !update {
		info, err := os.Stat(opts.TargetFile)
		if err != nil {
			return engine.NewStateError("cannot inspect target file", err).WithResource(opts.TargetFile)
		}
		sum, err := checksum.File(opts.TargetFile)
		if err != nil {
			return engine.NewStateError("cannot read target file", err).WithResource(opts.TargetFile)
		}
		logger.Info().Str("policy", string(opts.Policy)).Msg("File already up to date, not writing")
		metrics.RecordFileWrite("skipped")
		saveFile(req, opts.TargetFile, false, info.Mode().Perm()&0100 != 0, info.Size(), sum)
		return nil
	}

	if err := os.Remove(opts.TargetFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		metrics.RecordFileWrite("failed")
		return engine.NewStateError("cannot remove previous file", err).WithResource(opts.TargetFile)
	}
	if err := os.MkdirAll(filepath.Dir(opts.TargetFile), 0755); err != nil {
		metrics.RecordFileWrite("failed")
		return engine.NewStateError("cannot create parent directory", err).WithResource(opts.TargetFile)
	}
	content := []byte(opts.Data)
	if err := os.WriteFile(opts.TargetFile, content, ModeNormal); err != nil {
		metrics.RecordFileWrite("failed")
		return engine.NewStateError("cannot write file", err).WithResource(opts.TargetFile)
	}
	if err := os.Chmod(opts.TargetFile, opts.Mode()); err != nil {
		metrics.RecordFileWrite("failed")
		return engine.NewStateError("cannot set file mode", err).WithResource(opts.TargetFile)
	}

	logger.Info().Int("size", len(content)).Bool("executable", opts.Executable).Msg("File written")
	metrics.RecordFileWrite("written")
	saveFile(req, opts.TargetFile, true, opts.Executable, int64(len(content)), checksum.Bytes(content))
	return nil
}

func saveFile(req *processors.Request, path string, written, executable bool, size int64, sum string) {
	req.Save(engine.FieldFilePath, path)
	req.Save(engine.FieldWritten, written)
	req.Save(engine.FieldExecutable, executable)
	req.Save(engine.FieldSize, size)
	req.Save(engine.FieldSHA256Checksum, sum)
	req.Save(engine.FieldResult, sum)
}

func (p *Processor) handleDelete(ctx context.Context, req *processors.Request) error {
	target, err := processors.NewSpecReader(req.Task.Spec, req.Logger).RequiredString("targetFile")
	if err != nil {
		return err
	}
	info, err := inspect(target)
	if err != nil {
		return err
	}

	deleted := false
	if info != nil {
		if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return engine.NewStateError("cannot delete file", err).WithResource(target)
		}
		deleted = true
		telemetry.MetricsFromContext(ctx).RecordFileWrite("deleted")
		req.Logger.Info().Str("path", target).Msg("File deleted")
	}

	req.Save(engine.FieldFilePath, target)
	req.Save(engine.FieldDeleted, deleted)
	req.Save(engine.FieldResult, "")
	return nil
}

// currentChecksum returns the checksum of the target as it is on disk, or
// the empty string when it does not exist.
func currentChecksum(req *processors.Request) (string, string, error) {
	target, err := processors.NewSpecReader(req.Task.Spec, req.Logger).RequiredString("targetFile")
	if err != nil {
		return "", "", err
	}
	info, err := inspect(target)
	if err != nil || info == nil {
		return target, "", err
	}
	sum, err := checksum.File(target)
	if err != nil {
		return target, "", engine.NewStateError("cannot read target file", err).WithResource(target)
	}
	return target, sum, nil
}

func (p *Processor) handleDescribe(_ context.Context, req *processors.Request) error {
	target, sum, err := currentChecksum(req)
	if err != nil {
		return err
	}
	descriptor := engine.Describe(req.Task, checksum.MustValue(sum))

	req.Save(engine.FieldFilePath, target)
	req.Save(engine.FieldResult, sum)
	req.Save(engine.FieldResourceState, descriptor.Map(engine.DescribeOptions{HumanReadable: true}))
	return nil
}

func (p *Processor) handleDrift(ctx context.Context, req *processors.Request) error {
	_, sum, err := currentChecksum(req)
	if err != nil {
		return err
	}
	descriptor := engine.Describe(req.Task, checksum.MustValue(sum))

	req.Save(engine.FieldResult, sum)
	req.Save(engine.FieldDriftRawData, descriptor.Map(engine.DescribeOptions{
		WithChecksums:      true,
		IncludeAppliedSpec: true,
	}))
	req.Save(engine.FieldDriftHumanReadable, descriptor.Map(engine.DescribeOptions{
		HumanReadable:      true,
		WithChecksums:      true,
		IncludeAppliedSpec: true,
	}))

	drifted := descriptor.ResourceDrifted != nil && *descriptor.ResourceDrifted
	telemetry.MetricsFromContext(ctx).RecordDrift(Kind, drifted)
	return nil
}
