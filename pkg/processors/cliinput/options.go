package cliinput

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/instrumenta/pkg/processors"
)

// DefaultPromptCharacter is used when promptCharacter is absent or invalid.
const DefaultPromptCharacter = ">"

// Options is the validated form of a CliInputPrompt spec.
type Options struct {
	PromptText              string
	PromptCharacter         string
	DefaultValue            string
	WaitTimeout             time.Duration
	MaskInput               bool
	ConvertEmptyInputToNone bool
}

// parseOptions reads the task spec once. Every field is optional; values that are
// of the wrong type or out of range are logged and replaced by defaults.
func parseOptions(spec map[string]any, logger zerolog.Logger) Options {
	r := processors.NewSpecReader(spec, logger)
	return Options{
		PromptText:              r.String("promptText", "", "min=2,max=79"),
		PromptCharacter:         r.String("promptCharacter", DefaultPromptCharacter, "min=1,max=7"),
		DefaultValue:            r.String("defaultValue", "", "min=2,max=255"),
		WaitTimeout:             time.Duration(r.Int("waitTimeoutSeconds", 0, "gt=0,lt=3600")) * time.Second,
		MaskInput:               r.Bool("maskInput", false),
		ConvertEmptyInputToNone: r.Bool("convertEmptyInputToNone", false),
	}
}

// Prompt returns the prompt string shown before the cursor.
func (o Options) Prompt() string {
	prompt := o.PromptCharacter + " "
	if o.DefaultValue != "" {
		prompt = fmt.Sprintf("[default=%s] %s", o.DefaultValue, prompt)
	}
	return prompt
}

// Finalize applies the default and the empty-to-nil conversion to a raw
// input line.
func (o Options) Finalize(input string) any {
	if input == "" {
		input = o.DefaultValue
	}
	if input == "" && o.ConvertEmptyInputToNone {
		return nil
	}
	return input
}
