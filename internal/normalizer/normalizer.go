// Package normalizer maps raw source labels and values onto the canonical
// tender shape. The mapping is a closed set of known variants plus an
// explicit unknown fallback, so downstream diffing has no open-ended cases.
package normalizer

import (
	"strconv"
	"strings"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
)

// DefaultCurrency is assumed when a source omits the currency; the primary
// portals report values in tenge.
const DefaultCurrency = "KZT"

// statusLabels maps lowercased raw portal labels to canonical statuses.
// Kazakh portals publish Russian labels; scrapers may pre-translate.
var statusLabels = map[string]models.TenderStatus{
	"open":              models.StatusOpen,
	"published":         models.StatusOpen,
	"accepting bids":    models.StatusOpen,
	"открытый тендер":   models.StatusOpen,
	"опубликовано":      models.StatusOpen,
	"прием заявок":      models.StatusOpen,
	"closed":            models.StatusClosed,
	"completed":         models.StatusClosed,
	"завершен":          models.StatusClosed,
	"завершено":         models.StatusClosed,
	"awarded":           models.StatusAwarded,
	"итоги подведены":   models.StatusAwarded,
	"cancelled":         models.StatusCancelled,
	"canceled":          models.StatusCancelled,
	"отменен":           models.StatusCancelled,
	"отменено":          models.StatusCancelled,
}

// Status maps a raw status label to its canonical value, falling back to
// StatusUnknown for labels outside the known set.
func Status(raw string) models.TenderStatus {
	label := strings.ToLower(strings.TrimSpace(raw))
	if label == "" {
		return models.StatusUnknown
	}
	if status, ok := statusLabels[label]; ok {
		return status
	}
	return models.StatusUnknown
}

// Currency returns an upper-cased ISO currency code, defaulting when empty.
func Currency(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return DefaultCurrency
	}
	return code
}

// Value parses a lenient decimal string ("12 500 000,50 ₸", "1,250,000.00")
// into a numeric shadow value. Returns nil when nothing parseable remains;
// the original string column is authoritative either way.
func Value(raw string) *float64 {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			return r
		default:
			return -1
		}
	}, raw)
	if cleaned == "" {
		return nil
	}

	// Treat a trailing comma group as the decimal separator, all other
	// commas as thousands separators.
	if i := strings.LastIndexByte(cleaned, ','); i != -1 && strings.LastIndexByte(cleaned, '.') < i {
		cleaned = strings.ReplaceAll(cleaned[:i], ",", "") + "." + strings.ReplaceAll(cleaned[i+1:], ",", "")
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}
