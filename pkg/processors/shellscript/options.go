package shellscript

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/instrumenta/pkg/engine"
	"github.com/openfroyo/instrumenta/pkg/processors"
)

// SourceType says where the script comes from.
type SourceType string

const (
	SourceInLine   SourceType = "inLine"
	SourceFilePath SourceType = "filePath"
)

// interpreters maps the supported shellInterpreter values to executables.
var interpreters = map[string]string{
	"sh":     "sh",
	"bash":   "bash",
	"zsh":    "zsh",
	"perl":   "perl",
	"python": "python3",
}

// DefaultInterpreter is used when shellInterpreter is absent or unsupported.
const DefaultInterpreter = "sh"

var repeatingSpaces = regexp.MustCompile(`[ \t]+`)

// Options is the validated form of a ShellScript spec.
type Options struct {
	SourceType  SourceType
	Source      string
	Interpreter string
	WorkDir     string

	StripNewline               bool
	ConvertRepeatingSpaces     bool
	StripLeadingTrailingSpaces bool
	RaiseExceptionOnError      bool
}

type sourceSpec struct {
	Type  string `spec:"type"`
	Value string `spec:"value"`
}

func parseOptions(spec map[string]any, logger zerolog.Logger) (*Options, error) {
	r := processors.NewSpecReader(spec, logger)

	var src sourceSpec
	found, err := r.Decode("source", &src)
	if err != nil {
		return nil, err
	}
	if !found || src.Value == "" {
		return nil, engine.NewConfigurationError(`required field "source.value" is missing`, nil).
			WithCode(engine.ErrCodeMissingField)
	}

	opts := &Options{
		SourceType:                 SourceInLine,
		Source:                     src.Value,
		Interpreter:                DefaultInterpreter,
		StripNewline:               r.Bool("stripNewline", false),
		ConvertRepeatingSpaces:     r.Bool("convertRepeatingSpaces", false),
		StripLeadingTrailingSpaces: r.Bool("stripLeadingTrailingSpaces", false),
		RaiseExceptionOnError:      r.Bool("raiseExceptionOnError", false),
	}

	switch strings.ToLower(src.Type) {
	case "", strings.ToLower(string(SourceInLine)):
	case strings.ToLower(string(SourceFilePath)):
		opts.SourceType = SourceFilePath
		info, err := os.Stat(src.Value)
		if err != nil || !info.Mode().IsRegular() {
			return nil, engine.NewConfigurationError(fmt.Sprintf("script file %q does not exist", src.Value), err).
				WithCode(engine.ErrCodeInvalidField)
		}
	default:
		return nil, engine.NewConfigurationError(fmt.Sprintf("unsupported source type %q", src.Type), nil).
			WithCode(engine.ErrCodeInvalidField)
	}

	name := strings.ToLower(r.String("shellInterpreter", DefaultInterpreter, ""))
	if exe, ok := interpreters[name]; ok {
		opts.Interpreter = exe
	} else {
		logger.Warn().Str("shellInterpreter", name).Msg("Unsupported interpreter, using " + DefaultInterpreter)
	}

	if wd, ok := r.Sub("workDir"); ok {
		opts.WorkDir = wd.String("path", "", "")
	}

	if r.Has("convertOutputToText") {
		logger.Debug().Msg("convertOutputToText has no effect, output is always text")
	}

	return opts, nil
}

// Clean applies the output conversions selected in the task spec.
func (o *Options) Clean(output string) string {
	if o.StripNewline {
		output = strings.NewReplacer("\r\n", "", "\n", "", "\r", "").Replace(output)
	}
	if o.ConvertRepeatingSpaces {
		output = repeatingSpaces.ReplaceAllString(output, " ")
	}
	if o.StripLeadingTrailingSpaces {
		output = strings.TrimSpace(output)
	}
	return output
}
