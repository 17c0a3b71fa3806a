package download

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/openfroyo/instrumenta/pkg/checksum"
	"github.com/openfroyo/instrumenta/pkg/engine"
)

type fileServer struct {
	content   string
	status    int
	gets      atomic.Int32
	mu        sync.Mutex
	lastReq   *http.Request
	lastBody  string
	omitHeadL bool
}

func (s *fileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	if r.Method != http.MethodHead {
		s.lastReq = r
		s.lastBody = string(body)
	}
	s.mu.Unlock()

	status := s.status
	if status == 0 {
		status = http.StatusOK
	}

	if r.Method == http.MethodHead {
		if !s.omitHeadL {
			w.Header().Set("Content-Length", strconv.Itoa(len(s.content)))
		}
		w.WriteHeader(status)
		return
	}
	s.gets.Add(1)
	w.WriteHeader(status)
	_, _ = io.WriteString(w, s.content)
}

func (s *fileServer) last() (*http.Request, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq, s.lastBody
}

func downloadTask(spec map[string]any) *engine.Task {
	return engine.NewTask(Kind, "v1", spec, engine.Metadata{
		Identifiers: []engine.Identifier{{Type: engine.IdentifierTypeManifestName, Key: "dl"}},
	})
}

func run(t *testing.T, spec map[string]any) (*engine.KeyValueStore, error) {
	t.Helper()
	p, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p.Process(context.Background(), downloadTask(spec), "apply", "test", engine.NewKeyValueStore())
}

func key(field string) string {
	return "WebDownloadFile:dl:apply:test:" + field
}

func TestDownloadWritesFile(t *testing.T) {
	fs := &fileServer{content: "hello download"}
	srv := httptest.NewServer(fs)
	defer srv.Close()
	target := filepath.Join(t.TempDir(), "out.txt")

	store, err := run(t, map[string]any{"sourceUrl": srv.URL + "/file", "targetOutputFile": target})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("failed to read target: %v", err)
	}
	if string(data) != "hello download" {
		t.Errorf("content = %q", data)
	}
	if v, _ := store.Get(key("RESULT")); v != http.StatusOK {
		t.Errorf("RESULT = %v, want 200", v)
	}
	if v, _ := store.Get(key("SIZE")); v != int64(len("hello download")) {
		t.Errorf("SIZE = %v", v)
	}
	if v, _ := store.Get(key("SHA256_CHECKSUM")); v != checksum.String("hello download") {
		t.Errorf("SHA256_CHECKSUM = %v", v)
	}
	if v, _ := store.Get(key("FILE_PATH")); v != target {
		t.Errorf("FILE_PATH = %v", v)
	}
}

func TestDownloadSkippedWhenSizeMatches(t *testing.T) {
	fs := &fileServer{content: "0123456789"}
	srv := httptest.NewServer(fs)
	defer srv.Close()
	target := filepath.Join(t.TempDir(), "out.txt")
	if err := os.WriteFile(target, []byte("abcdefghij"), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := run(t, map[string]any{"sourceUrl": srv.URL, "targetOutputFile": target})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if v, _ := store.Get(key("RESULT")); v != ResultNotApplicable {
		t.Errorf("RESULT = %v, want n/a", v)
	}
	if n := fs.gets.Load(); n != 0 {
		t.Errorf("GET requests = %d, want 0", n)
	}
	data, _ := os.ReadFile(target)
	if string(data) != "abcdefghij" {
		t.Error("existing file must not be touched")
	}
}

func TestDownloadUnknownSizeStillDownloads(t *testing.T) {
	fs := &fileServer{content: "0123456789", omitHeadL: true}
	srv := httptest.NewServer(fs)
	defer srv.Close()
	target := filepath.Join(t.TempDir(), "out.txt")
	if err := os.WriteFile(target, []byte("abcdefghij"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, map[string]any{"sourceUrl": srv.URL, "targetOutputFile": target}); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if n := fs.gets.Load(); n != 1 {
		t.Errorf("GET requests = %d, want 1", n)
	}
	data, _ := os.ReadFile(target)
	if string(data) != "0123456789" {
		t.Errorf("content = %q", data)
	}
}

func TestDownloadTargetIsDirectory(t *testing.T) {
	fs := &fileServer{content: "x"}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	_, err := run(t, map[string]any{"sourceUrl": srv.URL, "targetOutputFile": t.TempDir()})
	if !engine.IsStateError(err) {
		t.Fatalf("expected state error, got %v", err)
	}
	if n := fs.gets.Load(); n != 0 {
		t.Errorf("GET requests = %d, want 0", n)
	}
}

func TestDownloadFailureMessage(t *testing.T) {
	fs := &fileServer{content: "missing", status: http.StatusNotFound}
	srv := httptest.NewServer(fs)
	defer srv.Close()
	target := filepath.Join(t.TempDir(), "out.txt")
	url := srv.URL + "/missing"

	_, err := run(t, map[string]any{"sourceUrl": url, "targetOutputFile": target})
	if !engine.IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	want := `Failed to download "` + url + `" to "` + target + `"`
	if !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want it to contain %q", err.Error(), want)
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Error("target must not be written on failure")
	}
}

func TestDownloadUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := run(t, map[string]any{"sourceUrl": url, "targetOutputFile": filepath.Join(t.TempDir(), "x")})
	if !engine.IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestDownloadWithoutExceptionOnError(t *testing.T) {
	fs := &fileServer{content: "nope", status: http.StatusForbidden}
	srv := httptest.NewServer(fs)
	defer srv.Close()
	target := filepath.Join(t.TempDir(), "out.txt")

	store, err := run(t, map[string]any{
		"sourceUrl":        srv.URL,
		"targetOutputFile": target,
		"exceptionOnError": false,
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if v, _ := store.Get(key("RESULT")); v != http.StatusForbidden {
		t.Errorf("RESULT = %v, want 403", v)
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Error("target must not be written for an unexpected status")
	}
}

func TestDownloadCustomSuccessCodes(t *testing.T) {
	fs := &fileServer{content: "accepted", status: http.StatusAccepted}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	_, err := run(t, map[string]any{
		"sourceUrl":        srv.URL,
		"targetOutputFile": filepath.Join(t.TempDir(), "out"),
		"successCodes":     "200",
	})
	if !engine.IsTransportError(err) {
		t.Fatalf("expected transport error for 202 outside success codes, got %v", err)
	}
}

func TestDownloadRequestOptions(t *testing.T) {
	fs := &fileServer{content: "ok"}
	srv := httptest.NewServer(fs)
	defer srv.Close()

	tests := []struct {
		name   string
		spec   map[string]any
		verify func(t *testing.T, r *http.Request, body string)
	}{
		{
			name: "unsupported method falls back to GET",
			spec: map[string]any{"method": "TRACE"},
			verify: func(t *testing.T, r *http.Request, _ string) {
				if r.Method != http.MethodGet {
					t.Errorf("method = %s, want GET", r.Method)
				}
			},
		},
		{
			name: "body ignored on GET",
			spec: map[string]any{"body": "payload"},
			verify: func(t *testing.T, r *http.Request, body string) {
				if body != "" {
					t.Errorf("body = %q, want empty", body)
				}
			},
		},
		{
			name: "body sent on POST",
			spec: map[string]any{"method": "post", "body": "payload"},
			verify: func(t *testing.T, r *http.Request, body string) {
				if r.Method != http.MethodPost || body != "payload" {
					t.Errorf("method = %s, body = %q", r.Method, body)
				}
			},
		},
		{
			name: "extra headers",
			spec: map[string]any{"extraHeaders": []any{
				map[string]any{"name": "X-Token", "value": "abc"},
				map[string]any{"name": "X-Missing-Value"},
				map[string]any{"value": "no-name"},
				"not-a-map",
			}},
			verify: func(t *testing.T, r *http.Request, _ string) {
				if r.Header.Get("X-Token") != "abc" {
					t.Errorf("X-Token = %q", r.Header.Get("X-Token"))
				}
				if _, ok := r.Header["X-Missing-Value"]; ok {
					t.Error("header without value should be skipped")
				}
			},
		},
		{
			name: "basic authentication",
			spec: map[string]any{"httpBasicAuthentication": map[string]any{"username": "user", "password": "secret"}},
			verify: func(t *testing.T, r *http.Request, _ string) {
				u, p, ok := r.BasicAuth()
				if !ok || u != "user" || p != "secret" {
					t.Errorf("basic auth = %s/%s/%v", u, p, ok)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := map[string]any{
				"sourceUrl":        srv.URL,
				"targetOutputFile": filepath.Join(t.TempDir(), "out"),
			}
			for k, v := range tt.spec {
				spec[k] = v
			}
			if _, err := run(t, spec); err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			r, body := fs.last()
			if r == nil {
				t.Fatal("server saw no request")
			}
			tt.verify(t, r, body)
		})
	}
}

func TestDownloadThroughProxy(t *testing.T) {
	var proxyAuth, requestedHost string
	var mu sync.Mutex
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		proxyAuth = r.Header.Get("Proxy-Authorization")
		requestedHost = r.URL.Host
		mu.Unlock()
		w.Header().Set("Content-Length", "9")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = io.WriteString(w, "via proxy")
	}))
	defer proxy.Close()
	target := filepath.Join(t.TempDir(), "out.txt")

	_, err := run(t, map[string]any{
		"sourceUrl":        "http://files.example.invalid/archive.tar",
		"targetOutputFile": target,
		"proxy": map[string]any{
			"host": proxy.URL,
			"basicAuthentication": map[string]any{
				"username": "proxyuser",
				"password": "proxypass",
			},
		},
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	data, _ := os.ReadFile(target)
	if string(data) != "via proxy" {
		t.Errorf("content = %q", data)
	}
	mu.Lock()
	defer mu.Unlock()
	if requestedHost != "files.example.invalid" {
		t.Errorf("proxy saw host %q", requestedHost)
	}
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("proxyuser:proxypass"))
	if proxyAuth != wantAuth {
		t.Errorf("Proxy-Authorization = %q, want %q", proxyAuth, wantAuth)
	}
}

func TestDownloadConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		spec map[string]any
	}{
		{"missing source", map[string]any{"targetOutputFile": "/tmp/x"}},
		{"source not a string", map[string]any{"sourceUrl": 42, "targetOutputFile": "/tmp/x"}},
		{"relative source", map[string]any{"sourceUrl": "files/x", "targetOutputFile": "/tmp/x"}},
		{"missing target", map[string]any{"sourceUrl": "http://example.invalid/x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.spec); !engine.IsConfigurationError(err) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestDownloadAlwaysRoutesToCreate(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}
	for _, command := range []string{"apply", "delete", "describe", "drift", "anything"} {
		if got := p.ResolveAction(command); got != engine.ActionCreate {
			t.Errorf("ResolveAction(%s) = %s, want create", command, got)
		}
	}
}
