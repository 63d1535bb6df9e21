package logging

import "log/slog"

// Common field names for consistent logging across the service.
const (
	FieldService  = "service"
	FieldTenantID = "tenant_id"
	FieldScraper  = "scraper_id"
	FieldBatchID  = "batch_id"
	FieldUploadID = "upload_id"
	FieldStatus   = "status"
	FieldError    = "error"
	FieldDuration = "duration_ms"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// TenantID returns a slog attribute for the tenant ID.
func TenantID(id string) slog.Attr {
	return slog.String(FieldTenantID, id)
}

// ScraperID returns a slog attribute for the scraper identity.
func ScraperID(id string) slog.Attr {
	return slog.String(FieldScraper, id)
}

// BatchID returns a slog attribute for the caller-supplied batch ID.
func BatchID(id string) slog.Attr {
	return slog.String(FieldBatchID, id)
}

// UploadID returns a slog attribute for the audit log entry ID.
func UploadID(id string) slog.Attr {
	return slog.String(FieldUploadID, id)
}

// BatchStatus returns a slog attribute for a batch status.
func BatchStatus(status string) slog.Attr {
	return slog.String(FieldStatus, status)
}

// Err returns a slog attribute for an error.
func Err(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}
