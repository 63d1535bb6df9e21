package checksum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	// Known SHA-256 vectors
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Sum([]byte{}))
	assert.Equal(t,
		"4f53cda18c2baa0c0354bb5f9a3ecbe5ed12ab4d8e11ba873c2f11161202b945",
		Sum([]byte("[]")))
}

func TestSerialize(t *testing.T) {
	tests := []struct {
		name     string
		records  any
		expected string
	}{
		{
			name:     "nil slice serializes as empty array",
			records:  []map[string]string(nil),
			expected: "[]",
		},
		{
			name:     "empty slice",
			records:  []map[string]string{},
			expected: "[]",
		},
		{
			name:     "compact output without whitespace",
			records:  []map[string]string{{"a": "b"}},
			expected: `[{"a":"b"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Serialize(tt.records)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(data))
		})
	}
}

func TestSumRecords_MatchesWireBytes(t *testing.T) {
	records := []map[string]string{{"externalId": "T-1", "title": "Road works"}}

	sum, err := SumRecords(records)
	require.NoError(t, err)

	data, err := Serialize(records)
	require.NoError(t, err)
	assert.Equal(t, Sum(data), sum)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("ABCDEF", "abcdef"))
	assert.True(t, Equal("abc123", "abc123"))
	assert.False(t, Equal("abc123", "abc124"))
	assert.False(t, Equal("abc", ""))
}
