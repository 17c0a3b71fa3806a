// Package cliinput implements the CliInputPrompt processor, which asks the
// operator for a single value on the terminal and publishes it as the task
// result. A default value is used when the operator just presses ENTER, when
// the optional timeout passes, or when reading fails.
package cliinput

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openfroyo/instrumenta/pkg/checksum"
	"github.com/openfroyo/instrumenta/pkg/engine"
	"github.com/openfroyo/instrumenta/pkg/processors"
	"github.com/openfroyo/instrumenta/pkg/telemetry"
)

// Kind is the task kind handled by this package.
const Kind = "CliInputPrompt"

// Processor is the CliInputPrompt processor.
type Processor struct {
	*processors.Base
	prompter *Prompter
	links    processors.LinkTable
}

// New returns a processor reading through prompter.
func New(prompter *Prompter) (*Processor, error) {
	p := &Processor{
		prompter: prompter,
		links:    processors.DefaultLinks(),
	}
	base, err := processors.NewBase(processors.BaseConfig{
		Kind:          Kind,
		Versions:      []string{"v1"},
		Links:         p.links,
		DefaultAction: engine.ActionCreate,
		Handlers: map[engine.Action]processors.HandlerFunc{
			engine.ActionCreate:      p.handleInput,
			engine.ActionDestroy:     p.handleInput,
			engine.ActionRollback:    p.handleInput,
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

// NewTerminal returns a processor reading from stdin and prompting on stdout.
func NewTerminal() (*Processor, error) {
	return New(NewPrompter(os.Stdin, os.Stdout))
}

// Close stops the prompter's input reader.
func (p *Processor) Close() error {
	return p.prompter.Close()
}

func (p *Processor) handleInput(ctx context.Context, req *processors.Request) error {
	value, err := p.ask(ctx, req)
	if err != nil {
		return err
	}
	req.Save(engine.FieldResult, value)
	return nil
}

func (p *Processor) handleDescribe(_ context.Context, req *processors.Request) error {
	value := p.appliedValue(req)
	descriptor := engine.Describe(req.Task, checksum.MustValue(value))

	req.Save(engine.FieldResult, value)
	req.Save(engine.FieldResourceState, descriptor.Map(engine.DescribeOptions{HumanReadable: true}))
	return nil
}

func (p *Processor) handleDrift(ctx context.Context, req *processors.Request) error {
	value, err := p.ask(ctx, req)
	if err != nil {
		return err
	}
	req.Save(engine.FieldResult, value)

	descriptor := engine.Describe(req.Task, checksum.MustValue(value))
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

// appliedValue returns the result of any command linked to create in the
// same context, or "" when the task has not been applied.
func (p *Processor) appliedValue(req *processors.Request) any {
	for _, command := range p.links[engine.ActionCreate] {
		key := engine.ResultKey(req.Task.Kind, req.Task.ID, command, req.Context, engine.FieldResult)
		if v, ok := req.Store.Get(key); ok {
			return v
		}
	}
	return ""
}

func (p *Processor) ask(ctx context.Context, req *processors.Request) (any, error) {
	opts := parseOptions(req.Task.Spec, req.Logger)

	if opts.PromptText != "" {
		fmt.Fprintln(p.prompter.out, opts.PromptText)
	}

	line, err := p.prompter.ReadLine(ctx, opts.Prompt(), opts.MaskInput, opts.WaitTimeout)
	switch {
	case err == nil:
	case engine.IsInputTimeout(err):
		req.Logger.Warn().Dur("timeout", opts.WaitTimeout).Msg("No input received in time, using default value")
		telemetry.MetricsFromContext(ctx).RecordPromptTimeout()
		line = ""
	case errors.Is(err, context.Canceled):
		return nil, err
	default:
		req.Logger.Error().Err(err).Msg("Failed to read input, using default value")
		line = ""
	}

	return opts.Finalize(line), nil
}
