// Package sanitize strips executable markup from untrusted scraper input.
package sanitize

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
)

// Sanitizer cleans every free-text field of a tender record before it can
// reach storage. Sanitization never fails and is idempotent: already-clean
// text passes through unchanged.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// New returns a Sanitizer backed by a strict policy that drops all markup.
func New() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean returns a copy of the record with all free-text fields sanitized and
// the source URL reduced to a safe scheme or dropped.
func (s *Sanitizer) Clean(rec models.TenderRecord) models.TenderRecord {
	rec.Title = s.Text(rec.Title)
	rec.Status = s.Text(rec.Status)
	rec.Description = s.Text(rec.Description)
	rec.BuyerName = s.Text(rec.BuyerName)
	rec.Location = s.Text(rec.Location)
	rec.Category = s.Text(rec.Category)
	rec.SourceURL = CleanURL(rec.SourceURL)
	return rec
}

// Text strips markup, inline event handlers, and script content from a
// free-text value. Residual angle brackets come back HTML-escaped, so the
// output never contains a literal "<".
func (s *Sanitizer) Text(value string) string {
	if value == "" {
		return value
	}
	cleaned := s.policy.Sanitize(value)
	// bluemonday entity-escapes text content; unescape and re-escape once so
	// repeated sanitization is a no-op.
	return html.EscapeString(html.UnescapeString(cleaned))
}

// CleanURL keeps http and https URLs and drops everything else, notably
// javascript:, data: and vbscript: schemes.
func CleanURL(raw string) string {
	if raw == "" {
		return ""
	}
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return trimmed
	default:
		return ""
	}
}
