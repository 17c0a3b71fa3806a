package processors

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/instrumenta/pkg/engine"
)

func TestSpecReaderRequiredString(t *testing.T) {
	r := NewSpecReader(map[string]any{"sourceurl": "http://x", "number": 5, "empty": ""}, zerolog.Nop())

	if s, err := r.RequiredString("sourceUrl"); err != nil || s != "http://x" {
		t.Errorf("RequiredString(sourceUrl) = %q, %v", s, err)
	}
	for _, key := range []string{"missing", "number", "empty"} {
		if _, err := r.RequiredString(key); !engine.IsConfigurationError(err) {
			t.Errorf("RequiredString(%s) error = %v, want configuration error", key, err)
		}
	}
}

func TestSpecReaderOptionalFields(t *testing.T) {
	r := NewSpecReader(map[string]any{
		"prompttext":         "What is your name?",
		"tooshort":           "x",
		"waittimeoutseconds": float64(30),
		"badtimeout":         "30",
		"outofrange":         4000,
		"maskinput":          true,
		"badbool":            "yes",
	}, zerolog.Nop())

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"valid string", r.String("promptText", "def", "min=2,max=79"), "What is your name?"},
		{"short string", r.String("tooShort", "def", "min=2,max=79"), "def"},
		{"missing string", r.String("nope", "def", ""), "def"},
		{"float as int", r.Int("waitTimeoutSeconds", 0, "gt=0,lt=3600"), 30},
		{"string as int", r.Int("badTimeout", 0, "gt=0,lt=3600"), 0},
		{"int out of range", r.Int("outOfRange", 0, "gt=0,lt=3600"), 0},
		{"bool", r.Bool("maskInput", false), true},
		{"string as bool", r.Bool("badBool", false), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestSpecReaderSubAndDecode(t *testing.T) {
	r := NewSpecReader(map[string]any{
		"proxy": map[string]any{
			"host": "http://proxy:3128",
			"basicauthentication": map[string]any{
				"username": "u",
				"password": "p",
			},
		},
		"extraheaders": []any{
			map[string]any{"name": "X-A", "value": "1"},
		},
		"notamap": "x",
	}, zerolog.Nop())

	proxy, ok := r.Sub("proxy")
	if !ok {
		t.Fatal("expected proxy sub reader")
	}
	auth, ok := proxy.Sub("basicAuthentication")
	if !ok {
		t.Fatal("expected nested sub reader")
	}
	if got := auth.String("username", "", ""); got != "u" {
		t.Errorf("username = %q", got)
	}
	if _, ok := r.Sub("notAMap"); ok {
		t.Error("expected Sub to reject non-map value")
	}

	var headers []struct {
		Name  string `spec:"name"`
		Value string `spec:"value"`
	}
	found, err := r.Decode("extraHeaders", &headers)
	if err != nil || !found {
		t.Fatalf("Decode() = %v, %v", found, err)
	}
	if len(headers) != 1 || headers[0].Name != "X-A" {
		t.Errorf("headers = %+v", headers)
	}

	var n int
	if _, err := r.Decode("notAMap", &n); !engine.IsConfigurationError(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
