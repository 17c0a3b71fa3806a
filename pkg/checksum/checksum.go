// Package checksum computes the SHA-256 digests used for change and drift
// detection across task processors.
//
// All digests are lowercase hexadecimal strings. Values that are not strings
// or byte slices are hashed over their canonical JSON encoding, so maps with
// the same content always produce the same digest regardless of insertion
// order.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Empty is the digest of zero bytes.
const Empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// String returns the digest of s.
func String(s string) string {
	return Bytes([]byte(s))
}

// Bytes returns the digest of b.
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Reader streams r through the hash and returns the digest and byte count.
func Reader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("failed to hash stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// File returns the digest of the file at path without loading it into memory.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sum, _, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return sum, nil
}

// Value returns the digest of an arbitrary value.
//
// nil hashes like the empty string, strings and byte slices hash their raw
// content, anything else hashes its JSON encoding. encoding/json sorts map
// keys, which makes the result independent of map iteration order.
func Value(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return Empty, nil
	case string:
		return String(val), nil
	case []byte:
		return Bytes(val), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode value for checksum: %w", err)
	}
	return Bytes(data), nil
}

// MustValue is like Value but falls back to hashing the %v rendering when the
// value cannot be JSON encoded.
func MustValue(v any) string {
	sum, err := Value(v)
	if err != nil {
		return String(fmt.Sprintf("%v", v))
	}
	return sum
}
