package runner

import (
	"io"

	"github.com/openfroyo/instrumenta/pkg/processors"
	"github.com/openfroyo/instrumenta/pkg/processors/cliinput"
	"github.com/openfroyo/instrumenta/pkg/processors/download"
	"github.com/openfroyo/instrumenta/pkg/processors/shellscript"
	"github.com/openfroyo/instrumenta/pkg/processors/writefile"
)

// DefaultRegistry registers every built-in processor. Prompts read from in
// and are written to out.
func DefaultRegistry(in io.Reader, out io.Writer) (*processors.Registry, error) {
	registry := processors.NewRegistry()

	prompt, err := cliinput.New(cliinput.NewPrompter(in, out))
	if err != nil {
		return nil, err
	}
	dl, err := download.New()
	if err != nil {
		return nil, err
	}
	wf, err := writefile.New()
	if err != nil {
		return nil, err
	}
	sh, err := shellscript.New()
	if err != nil {
		return nil, err
	}

	for _, p := range []processors.Processor{prompt, dl, wf, sh} {
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
