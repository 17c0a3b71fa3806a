package download

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/instrumenta/pkg/engine"
	"github.com/openfroyo/instrumenta/pkg/processors"
)

// DefaultSuccessCodes is used when successCodes is absent or malformed.
const DefaultSuccessCodes = "200-399"

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodHead:   true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

// Credentials is a username and password pair.
type Credentials struct {
	Username string
	Password string
}

// Config is the validated form of a WebDownloadFile spec.
type Config struct {
	SourceURL           *url.URL
	TargetOutputFile    string
	SkipSSLVerification bool
	Proxy               *url.URL
	BasicAuth           *Credentials
	Headers             http.Header
	Method              string
	Body                string
	SuccessCodes        StatusCodes
	ExceptionOnError    bool
}

// parseConfig validates the task spec once before any network activity.
func parseConfig(spec map[string]any, logger zerolog.Logger) (*Config, error) {
	r := processors.NewSpecReader(spec, logger)

	rawURL, err := r.RequiredString("sourceUrl")
	if err != nil {
		return nil, err
	}
	sourceURL, err := url.Parse(rawURL)
	if err != nil || sourceURL.Scheme == "" || sourceURL.Host == "" {
		return nil, engine.NewConfigurationError(fmt.Sprintf("sourceUrl %q is not an absolute URL", rawURL), err).
			WithCode(engine.ErrCodeInvalidField)
	}

	target, err := r.RequiredString("targetOutputFile")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		SourceURL:        sourceURL,
		TargetOutputFile: target,
		Headers:          http.Header{},
		Method:           http.MethodGet,
		ExceptionOnError: r.Bool("exceptionOnError", true),
	}

	if r.Bool("skipSslVerification", false) {
		if strings.EqualFold(sourceURL.Scheme, "https") {
			cfg.SkipSSLVerification = true
		} else {
			logger.Debug().Msg("skipSslVerification only applies to https URLs, ignoring")
		}
	}

	cfg.Proxy = parseProxy(r, logger)
	cfg.BasicAuth = parseCredentials(r, "httpBasicAuthentication")
	cfg.Headers = parseHeaders(r, logger)

	method := strings.ToUpper(r.String("method", http.MethodGet, ""))
	if !allowedMethods[method] {
		logger.Warn().Str("method", method).Msg("Unsupported HTTP method, using GET")
		method = http.MethodGet
	}
	cfg.Method = method

	if body := r.String("body", "", ""); body != "" {
		if method == http.MethodGet {
			logger.Warn().Msg("Ignoring body for GET request")
		} else {
			cfg.Body = body
		}
	}

	codesSpec := r.String("successCodes", DefaultSuccessCodes, "")
	codes, err := ParseStatusCodes(codesSpec)
	if err != nil {
		logger.Warn().Err(err).Str("successCodes", codesSpec).Msg("Invalid successCodes, using " + DefaultSuccessCodes)
		codes, _ = ParseStatusCodes(DefaultSuccessCodes)
	}
	cfg.SuccessCodes = codes

	return cfg, nil
}

func parseProxy(r *processors.SpecReader, logger zerolog.Logger) *url.URL {
	proxy, ok := r.Sub("proxy")
	if !ok {
		return nil
	}
	host := proxy.String("host", "", "")
	if host == "" {
		return nil
	}
	if !strings.HasPrefix(strings.ToLower(host), "http") {
		logger.Warn().Str("host", host).Msg("Proxy host must start with http:// or https://, ignoring proxy")
		return nil
	}
	proxyURL, err := url.Parse(host)
	if err != nil {
		logger.Warn().Err(err).Str("host", host).Msg("Invalid proxy host, ignoring proxy")
		return nil
	}
	if creds := parseCredentials(proxy, "basicAuthentication"); creds != nil {
		proxyURL.User = url.UserPassword(creds.Username, creds.Password)
	}
	return proxyURL
}

func parseCredentials(r *processors.SpecReader, key string) *Credentials {
	auth, ok := r.Sub(key)
	if !ok {
		return nil
	}
	username := auth.String("username", "", "")
	password := auth.String("password", "", "")
	if username == "" && password == "" {
		return nil
	}
	return &Credentials{Username: username, Password: password}
}

func parseHeaders(r *processors.SpecReader, logger zerolog.Logger) http.Header {
	headers := http.Header{}
	raw, ok := r.Raw("extraHeaders")
	if !ok || raw == nil {
		return headers
	}
	items, ok := raw.([]any)
	if !ok {
		logger.Warn().Msgf("extraHeaders must be a list, got %T; ignoring", raw)
		return headers
	}

	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			logger.Warn().Int("index", i).Msg("Skipping malformed extra header")
			continue
		}
		hr := processors.NewSpecReader(entry, logger)
		name := hr.String("name", "", "")
		value, hasValue := entry["value"]
		if name == "" || !hasValue || value == nil {
			logger.Warn().Int("index", i).Msg("Skipping extra header without name or value")
			continue
		}
		headers.Add(name, fmt.Sprintf("%v", value))
	}
	return headers
}

// StatusCodes is a set of accepted HTTP status codes expressed as ranges.
type StatusCodes []codeRange

type codeRange struct {
	low, high int
}

// ParseStatusCodes parses a comma separated list of codes and ranges, for
// example "200,201,300-399".
func ParseStatusCodes(s string) (StatusCodes, error) {
	var codes StatusCodes
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lowStr, highStr, isRange := strings.Cut(part, "-")
		low, err := strconv.Atoi(strings.TrimSpace(lowStr))
		if err != nil {
			return nil, fmt.Errorf("invalid status code %q: %w", part, err)
		}
		high := low
		if isRange {
			high, err = strconv.Atoi(strings.TrimSpace(highStr))
			if err != nil {
				return nil, fmt.Errorf("invalid status code range %q: %w", part, err)
			}
		}
		if low < 100 || high > 599 || low > high {
			return nil, fmt.Errorf("status code range %q out of bounds", part)
		}
		codes = append(codes, codeRange{low: low, high: high})
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("no status codes given")
	}
	return codes, nil
}

// Contains reports whether code is accepted.
func (c StatusCodes) Contains(code int) bool {
	for _, r := range c {
		if code >= r.low && code <= r.high {
			return true
		}
	}
	return false
}
