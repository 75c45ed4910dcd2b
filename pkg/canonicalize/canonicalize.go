// Package canonicalize provides deterministic serialization and SHA-256
// hashing for kernel artifacts. Two logically equal values that differ only
// in key order must produce identical canonical bytes, across processes and
// across languages.
//
// The canonical form is RFC 8785 (JCS) applied after a normalization pass
// that maps JSON null to the empty string. Evidence hashes recorded by the
// upstream producers use the same normalization, so replay must too.
package canonicalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Canonical returns the canonical byte representation of v.
//
// v is first marshaled through encoding/json (respecting struct tags), then
// decoded generically with number preservation, normalized (null -> ""),
// and finally transformed per RFC 8785: object keys sorted by UTF-16 code
// units, no HTML escaping, shortest-round-trip number formatting.
func Canonical(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: pre-marshal failed: %w", err)
	}

	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(intermediate))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalize: intermediate decode failed: %w", err)
	}

	normalized, err := json.Marshal(normalize(generic))
	if err != nil {
		return nil, fmt.Errorf("canonicalize: normalized marshal failed: %w", err)
	}

	out, err := jcs.Transform(normalized)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: jcs transform failed: %w", err)
	}
	return out, nil
}

// CanonicalString returns the canonical form of v as a string.
func CanonicalString(v interface{}) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Hash returns the hex SHA-256 digest (64 characters, no prefix) of the
// canonical form of v.
func Hash(v interface{}) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the hex SHA-256 digest of raw bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// normalize walks a generically decoded JSON value and replaces null with
// the empty string. Arrays keep their order; element values are normalized
// in place. Map key order is irrelevant here, the JCS transform sorts keys.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return ""
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, elem := range t {
			out[i] = normalize(elem)
		}
		return out
	default:
		return v
	}
}
