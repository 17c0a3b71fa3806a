package checksum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", Empty},
		{"abc", "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := String(tt.input); got != tt.want {
				t.Errorf("String(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFileMatchesBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	content := []byte(strings.Repeat("hello world\n", 1000))
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	got, err := File(path)
	if err != nil {
		t.Fatalf("File() error = %v", err)
	}
	if want := Bytes(content); got != want {
		t.Errorf("File() = %s, want %s", got, want)
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReaderCountsBytes(t *testing.T) {
	sum, n, err := Reader(strings.NewReader("abc"))
	if err != nil {
		t.Fatalf("Reader() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Reader() n = %d, want 3", n)
	}
	if sum != String("abc") {
		t.Errorf("Reader() sum = %s, want %s", sum, String("abc"))
	}
}

func TestValueIsOrderIndependent(t *testing.T) {
	a := map[string]any{"b": 2, "a": 1, "nested": map[string]any{"y": "1", "x": "2"}}
	b := map[string]any{"nested": map[string]any{"x": "2", "y": "1"}, "a": 1, "b": 2}

	if MustValue(a) != MustValue(b) {
		t.Error("expected equal digests for maps with the same content")
	}
	if MustValue(a) == MustValue(map[string]any{"a": 1}) {
		t.Error("expected different digests for different maps")
	}
}

func TestValueScalars(t *testing.T) {
	if got := MustValue(nil); got != Empty {
		t.Errorf("MustValue(nil) = %s, want empty digest", got)
	}
	if got := MustValue("abc"); got != String("abc") {
		t.Errorf("MustValue(string) = %s, want raw string digest", got)
	}
	if got := MustValue(42); got != String("42") {
		t.Errorf("MustValue(42) = %s, want digest of JSON 42", got)
	}
}

func TestValueUnencodable(t *testing.T) {
	if _, err := Value(make(chan int)); err == nil {
		t.Fatal("expected error for channel value")
	}
	if MustValue(make(chan int)) == "" {
		t.Error("MustValue should fall back to a digest")
	}
}
