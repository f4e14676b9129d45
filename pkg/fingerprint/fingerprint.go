// Package fingerprint derives deterministic identities for linkage requests
// so redelivered messages can be recognized and skipped.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
)

// GenerateRequest creates a deterministic fingerprint for a linkage request.
// The request id is excluded; two deliveries of the same payload fingerprint
// identically regardless of the id the producer stamped on them.
func GenerateRequest(req models.LinkageRequest) (string, error) {
	req.RequestID = ""

	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return GenerateFromJSON(raw)
}

// GenerateFromJSON creates a fingerprint from raw JSON.
func GenerateFromJSON(data json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return "", err
	}
	return Generate(m), nil
}

// Generate creates a deterministic fingerprint for a data map.
// The fingerprint is a SHA256 hash of the canonicalized JSON.
func Generate(data map[string]any) string {
	canonical := canonicalize(data)

	hash := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(hash[:])
}

// canonicalize creates a deterministic string representation of a value by
// sorting map keys and recursively processing nested structures. Array order
// is preserved; record order is meaningful to a run.
func canonicalize(data any) string {
	switch v := data.(type) {
	case map[string]any:
		return canonicalizeMap(v)
	case []any:
		return canonicalizeArray(v)
	default:
		// For primitives, use JSON encoding
		b, _ := json.Marshal(v)
		return string(b)
	}
}

func canonicalizeMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := "{"
	for i, k := range keys {
		if i > 0 {
			result += ","
		}
		keyJSON, _ := json.Marshal(k)
		result += string(keyJSON) + ":" + canonicalize(m[k])
	}
	result += "}"
	return result
}

func canonicalizeArray(arr []any) string {
	result := "["
	for i, v := range arr {
		if i > 0 {
			result += ","
		}
		result += canonicalize(v)
	}
	result += "]"
	return result
}
