// Package shellscript implements the ShellScript processor. The script runs
// for every command; contextual identifiers on the task decide whether it is
// considered at all.
package shellscript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/openfroyo/instrumenta/pkg/engine"
	"github.com/openfroyo/instrumenta/pkg/processors"
)

// Kind is the task kind handled by this package.
const Kind = "ShellScript"

// Processor is the ShellScript processor.
type Processor struct {
	*processors.Base
}

// New returns a ShellScript processor.
func New() (*Processor, error) {
	p := &Processor{}
	base, err := processors.NewBase(processors.BaseConfig{
		Kind:          Kind,
		Versions:      []string{"v1"},
		DefaultAction: engine.ActionCreate,
		Handlers: map[engine.Action]processors.HandlerFunc{
			engine.ActionCreate: p.handleRun,
		},
	})
	if err != nil {
		return nil, err
	}
	p.Base = base
	return p, nil
}

// Result is the outcome of one script execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// run executes the script described by opts.
func run(ctx context.Context, opts *Options) (*Result, error) {
	script := opts.Source
	if opts.SourceType == SourceInLine {
		f, err := os.CreateTemp(opts.WorkDir, "instrumenta-script-*")
		if err != nil {
			return nil, engine.NewStateError("cannot create temporary script", err).WithResource(opts.WorkDir)
		}
		defer os.Remove(f.Name())
		if _, err := f.WriteString(opts.Source); err != nil {
			f.Close()
			return nil, engine.NewStateError("cannot write temporary script", err).WithResource(f.Name())
		}
		if err := f.Close(); err != nil {
			return nil, engine.NewStateError("cannot write temporary script", err).WithResource(f.Name())
		}
		script = f.Name()
	}

	cmd := exec.CommandContext(ctx, opts.Interpreter, script)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, engine.NewStateError(fmt.Sprintf("failed to execute %s", opts.Interpreter), err).
				WithResource(script)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	return result, nil
}

func (p *Processor) handleRun(ctx context.Context, req *processors.Request) error {
	opts, err := parseOptions(req.Task.Spec, req.Logger)
	if err != nil {
		return err
	}
	logger := req.Logger.With().Str("interpreter", opts.Interpreter).Str("source_type", string(opts.SourceType)).Logger()

	result, err := run(ctx, opts)
	if err != nil {
		return err
	}
	logger.Info().Int("exit_code", result.ExitCode).Dur("duration", result.Duration).Msg("Script finished")

	if result.ExitCode != 0 && opts.RaiseExceptionOnError {
		return engine.NewStateError(fmt.Sprintf("script exited with code %d", result.ExitCode), nil).
			WithCode(engine.ErrCodeScriptFailed).
			WithDetail("exit_code", result.ExitCode).
			WithDetail("stderr", result.Stderr)
	}

	req.Save(engine.FieldStdout, opts.Clean(result.Stdout))
	req.Save(engine.FieldStderr, opts.Clean(result.Stderr))
	req.Save(engine.FieldExitCode, result.ExitCode)
	req.Save(engine.FieldResult, result.ExitCode)
	return nil
}
