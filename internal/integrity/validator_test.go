package integrity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
	"github.com/tenderflow-systems/tenderflow-ingest/pkg/checksum"
)

func TestValidate_AcceptsMatchingChecksum(t *testing.T) {
	v := New()
	payload := []byte(`[{"externalId":"T-1","sourcePortal":"goszakup","title":"Road works"}]`)

	assert.NoError(t, v.Validate(payload, checksum.Sum(payload)))
}

func TestValidate_ChecksumIsCaseInsensitive(t *testing.T) {
	v := New()
	payload := []byte(`[]`)

	assert.NoError(t, v.Validate(payload, "4F53CDA18C2BAA0C0354BB5F9A3ECBE5ED12AB4D8E11BA873C2F11161202B945"))
}

func TestValidate_RejectsTamperedPayload(t *testing.T) {
	v := New()
	payload := []byte(`[{"externalId":"T-1","title":"Road works"}]`)
	claimed := checksum.Sum(payload)

	tampered := []byte(`[{"externalId":"T-1","title":"Road works!"}]`)
	err := v.Validate(tampered, claimed)
	require.Error(t, err)

	var integrityErr *models.IntegrityError
	require.True(t, errors.As(err, &integrityErr))
	assert.Equal(t, claimed, integrityErr.Claimed)
	assert.Equal(t, checksum.Sum(tampered), integrityErr.Computed)
}

func TestValidate_ByteLevelSensitivity(t *testing.T) {
	// Semantically identical JSON with different whitespace must fail:
	// integrity covers the wire bytes, not the parsed value.
	v := New()
	compact := []byte(`[{"a":"b"}]`)
	spaced := []byte(`[{"a": "b"}]`)

	assert.Error(t, v.Validate(spaced, checksum.Sum(compact)))
}

func TestValidate_EmptyArray(t *testing.T) {
	v := New()
	payload := []byte(`[]`)

	assert.NoError(t, v.Validate(payload, checksum.Sum(payload)))
}
