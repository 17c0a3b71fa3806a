package writefile

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/instrumenta/pkg/engine"
	"github.com/openfroyo/instrumenta/pkg/processors"
)

// ExistingFilePolicy decides what happens when the target already exists.
type ExistingFilePolicy string

const (
	// PolicyOverwrite rewrites the file when its content differs.
	PolicyOverwrite ExistingFilePolicy = "overwrite"

	// PolicySkip never touches an existing file.
	PolicySkip ExistingFilePolicy = "skip"
)

const (
	// ModeNormal is the permission of a plain file.
	ModeNormal fs.FileMode = 0600

	// ModeExecutable is the permission of an executable file.
	ModeExecutable fs.FileMode = 0700
)

// Options is the validated form of a WriteFile spec.
type Options struct {
	TargetFile string
	Data       string
	Policy     ExistingFilePolicy
	Executable bool
}

// Mode returns the permission bits the file is written with.
func (o Options) Mode() fs.FileMode {
	if o.Executable {
		return ModeExecutable
	}
	return ModeNormal
}

func parseOptions(spec map[string]any, logger zerolog.Logger) (*Options, error) {
	r := processors.NewSpecReader(spec, logger)

	target, err := r.RequiredString("targetFile")
	if err != nil {
		return nil, err
	}

	raw, ok := r.Raw("data")
	if !ok || raw == nil {
		return nil, engine.NewConfigurationError(`required field "data" is missing`, nil).
			WithCode(engine.ErrCodeMissingField)
	}
	data, ok := raw.(string)
	if !ok {
		return nil, engine.NewConfigurationError(fmt.Sprintf(`field "data" must be a string, got %T`, raw), nil).
			WithCode(engine.ErrCodeInvalidField)
	}

	opts := &Options{TargetFile: target, Data: data, Policy: PolicyOverwrite}

	switch policy := strings.ToLower(r.String("actionIfFileAlreadyExists", string(PolicyOverwrite), "")); ExistingFilePolicy(policy) {
	case PolicyOverwrite, PolicySkip:
		opts.Policy = ExistingFilePolicy(policy)
	default:
		logger.Warn().Str("actionIfFileAlreadyExists", policy).Msg("Unknown policy, using overwrite")
	}

	switch mode := strings.ToLower(r.String("fileMode", "normal", "")); mode {
	case "normal":
	case "executable":
		opts.Executable = true
	default:
		logger.Warn().Str("fileMode", mode).Msg("Unknown file mode, using normal")
	}

	return opts, nil
}
