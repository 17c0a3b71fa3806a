package processors

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"

	"github.com/openfroyo/instrumenta/pkg/engine"
)

var validate = validator.New()

// SpecReader reads typed fields from a task spec. Required fields fail with a
// configuration error; optional fields that are missing, of the wrong type or
// outside their validation rules fall back to a default with a warning.
type SpecReader struct {
	spec   map[string]any
	path   string
	logger zerolog.Logger
}

// NewSpecReader returns a reader over spec. Field names are matched case
// insensitively.
func NewSpecReader(spec map[string]any, logger zerolog.Logger) *SpecReader {
	return &SpecReader{spec: spec, logger: logger}
}

func (r *SpecReader) fieldPath(key string) string {
	if r.path == "" {
		return key
	}
	return r.path + "." + key
}

func (r *SpecReader) lookup(key string) (any, bool) {
	v, ok := r.spec[strings.ToLower(key)]
	return v, ok
}

// Has reports whether key is present with a non-nil value.
func (r *SpecReader) Has(key string) bool {
	v, ok := r.lookup(key)
	return ok && v != nil
}

// Raw returns the untyped value under key.
func (r *SpecReader) Raw(key string) (any, bool) {
	return r.lookup(key)
}

// RequiredString returns the string under key, or a configuration error when
// it is missing, not a string or empty.
func (r *SpecReader) RequiredString(key string) (string, error) {
	raw, ok := r.lookup(key)
	if !ok || raw == nil {
		return "", engine.NewConfigurationError(
			fmt.Sprintf("required field %q is missing", r.fieldPath(key)), nil,
		).WithCode(engine.ErrCodeMissingField)
	}
	s, ok := raw.(string)
	if !ok {
		return "", engine.NewConfigurationError(
			fmt.Sprintf("field %q must be a string, got %T", r.fieldPath(key), raw), nil,
		).WithCode(engine.ErrCodeInvalidField)
	}
	if s == "" {
		return "", engine.NewConfigurationError(
			fmt.Sprintf("required field %q is empty", r.fieldPath(key)), nil,
		).WithCode(engine.ErrCodeMissingField)
	}
	return s, nil
}

// String returns the optional string under key. rules is a validator tag
// such as "min=2,max=79"; an empty rules string accepts any value.
func (r *SpecReader) String(key, def, rules string) string {
	var s string
	if !r.decodeOptional(key, &s) {
		return def
	}
	if !r.check(key, s, rules) {
		return def
	}
	return s
}

// Bool returns the optional boolean under key.
func (r *SpecReader) Bool(key string, def bool) bool {
	var b bool
	if !r.decodeOptional(key, &b) {
		return def
	}
	return b
}

// Int returns the optional integer under key, validated against rules.
func (r *SpecReader) Int(key string, def int, rules string) int {
	var i int
	if !r.decodeOptional(key, &i) {
		return def
	}
	if !r.check(key, i, rules) {
		return def
	}
	return i
}

// Sub returns a reader over the nested map under key.
func (r *SpecReader) Sub(key string) (*SpecReader, bool) {
	raw, ok := r.lookup(key)
	if !ok || raw == nil {
		return nil, false
	}
	m, ok := raw.(map[string]any)
	if !ok {
		r.logger.Warn().Str("field", r.fieldPath(key)).Msgf("Expected a mapping, got %T; ignoring", raw)
		return nil, false
	}
	return &SpecReader{spec: m, path: r.fieldPath(key), logger: r.logger}, true
}

// Decode decodes the value under key into out with mapstructure. It returns
// false when the key is absent.
func (r *SpecReader) Decode(key string, out any) (bool, error) {
	raw, ok := r.lookup(key)
	if !ok || raw == nil {
		return false, nil
	}
	if err := decode(raw, out); err != nil {
		return true, engine.NewConfigurationError(
			fmt.Sprintf("field %q is malformed", r.fieldPath(key)), err,
		).WithCode(engine.ErrCodeInvalidField)
	}
	return true, nil
}

func (r *SpecReader) decodeOptional(key string, out any) bool {
	raw, ok := r.lookup(key)
	if !ok || raw == nil {
		return false
	}
	if err := decode(raw, out); err != nil {
		r.logger.Warn().Str("field", r.fieldPath(key)).Err(err).Msg("Ignoring field with unexpected type")
		return false
	}
	return true
}

func (r *SpecReader) check(key string, value any, rules string) bool {
	if rules == "" {
		return true
	}
	if err := validate.Var(value, rules); err != nil {
		r.logger.Warn().
			Str("field", r.fieldPath(key)).
			Str("rules", rules).
			Msg("Ignoring field outside its allowed range")
		return false
	}
	return true
}

func decode(raw, out any) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.TextUnmarshallerHookFunc(),
		Result:     out,
		TagName:    "spec",
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return d.Decode(raw)
}
