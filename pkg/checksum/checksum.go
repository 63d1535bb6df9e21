// Package checksum computes the content hashes shared between scraper
// clients and the ingestion service. Both sides must agree on the exact
// byte representation of the record array, so uploaders serialize through
// Serialize and the service hashes the wire bytes it received.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Sum returns the lowercase hex SHA-256 of the given bytes.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Serialize produces the canonical byte representation of a record array:
// compact JSON with struct field order. A nil slice serializes as "[]".
func Serialize(records any) ([]byte, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		data = []byte("[]")
	}
	return data, nil
}

// SumRecords serializes records canonically and returns their checksum.
func SumRecords(records any) (string, error) {
	data, err := Serialize(records)
	if err != nil {
		return "", err
	}
	return Sum(data), nil
}

// Equal compares two hex digests case-insensitively.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}
