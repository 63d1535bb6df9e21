package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want models.TenderStatus
	}{
		{"open", models.StatusOpen},
		{"OPEN", models.StatusOpen},
		{"  published  ", models.StatusOpen},
		{"Прием заявок", models.StatusOpen},
		{"опубликовано", models.StatusOpen},
		{"closed", models.StatusClosed},
		{"завершен", models.StatusClosed},
		{"awarded", models.StatusAwarded},
		{"Итоги подведены", models.StatusAwarded},
		{"cancelled", models.StatusCancelled},
		{"canceled", models.StatusCancelled},
		{"отменен", models.StatusCancelled},
		{"", models.StatusUnknown},
		{"что-то новое", models.StatusUnknown},
		{"draft", models.StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.raw))
		})
	}
}

func TestCurrency(t *testing.T) {
	assert.Equal(t, "KZT", Currency(""))
	assert.Equal(t, "KZT", Currency("  "))
	assert.Equal(t, "USD", Currency("usd"))
	assert.Equal(t, "EUR", Currency(" EUR "))
}

func TestValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *float64
	}{
		{"plain integer", "12500000", f(12500000)},
		{"spaces and currency sign", "12 500 000,50 ₸", f(12500000.50)},
		{"us thousands separators", "1,250,000.00", f(1250000)},
		{"decimal point", "99.95", f(99.95)},
		{"decimal comma", "99,95", f(99.95)},
		{"empty", "", nil},
		{"no digits", "по запросу", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Value(tt.raw)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 0.001)
		})
	}
}

func f(v float64) *float64 { return &v }
