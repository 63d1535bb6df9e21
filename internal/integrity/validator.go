// Package integrity verifies that a submitted record array arrived intact.
package integrity

import (
	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
	"github.com/tenderflow-systems/tenderflow-ingest/pkg/checksum"
)

// Validator recomputes the content hash of a record payload and compares it
// against the caller-supplied checksum. It is a pure check with no side
// effects and must run before any storage mutation, idempotency lookups
// included.
type Validator struct{}

// New returns an integrity Validator.
func New() *Validator {
	return &Validator{}
}

// Validate hashes the record array exactly as received on the wire and
// compares it to the claimed digest (case-insensitive hex). An empty array
// hashed over "[]" is valid; integrity is not business validation.
func (v *Validator) Validate(rawRecords []byte, claimed string) error {
	computed := checksum.Sum(rawRecords)
	if !checksum.Equal(computed, claimed) {
		return &models.IntegrityError{Claimed: claimed, Computed: computed}
	}
	return nil
}
