package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/models"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/ratelimit"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/service"
	"github.com/tenderflow-systems/tenderflow-ingest/pkg/tokens"
)

// IngestionHandler exposes the ingestion API over HTTP. It owns the concerns
// the pipeline core stays ignorant of: bearer-token authentication, rate
// limiting, and the mapping from the pipeline's error taxonomy to statuses.
type IngestionHandler struct {
	service *service.IngestService
	tokens  *tokens.TokenGenerator
	limiter ratelimit.RateLimiter
	logger  *slog.Logger
}

func NewIngestionHandler(svc *service.IngestService, tg *tokens.TokenGenerator,
	limiter ratelimit.RateLimiter, logger *slog.Logger) *IngestionHandler {
	if limiter == nil {
		limiter = &ratelimit.NoOpRateLimiter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionHandler{
		service: svc,
		tokens:  tg,
		limiter: limiter,
		logger:  logger,
	}
}

// HandleIngest accepts a batch of tender records.
func (h *IngestionHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	// Rate limit per scraper identity, before the body is even read.
	key := claims.TenantID + ":" + claims.ScraperID
	allowed, retryAfter, err := h.limiter.Allow(r.Context(), key)
	if err != nil {
		// Admission control failing open is preferable to rejecting valid
		// traffic on a limiter outage.
		h.logger.WarnContext(r.Context(), "Rate limiter unavailable", slog.String("error", err.Error()))
	} else if !allowed {
		h.sendRateLimited(w, &models.RateLimitError{RetryAfter: retryAfter})
		return
	}

	var req models.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	defer r.Body.Close()

	result, err := h.service.ProcessBatch(r.Context(), claims.TenantID, &req)
	if err != nil {
		h.sendPipelineError(w, err)
		return
	}

	h.sendJSON(w, http.StatusOK, result)
}

// HandleStatus reports the state of one upload by ID. The upload ID is the
// final path segment.
func (h *IngestionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	uploadID := strings.TrimPrefix(r.URL.Path, "/api/ingestion/status/")
	if uploadID == "" || strings.Contains(uploadID, "/") {
		h.sendError(w, http.StatusBadRequest, "Upload ID is required")
		return
	}

	status, err := h.service.Status(r.Context(), claims.TenantID, uploadID)
	if err != nil {
		if errors.Is(err, models.ErrUploadNotFound) {
			h.sendError(w, http.StatusNotFound, "Upload not found")
			return
		}
		h.sendError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.sendJSON(w, http.StatusOK, status)
}

// HandleMetrics reports the calling scraper's aggregated ingestion history.
func (h *IngestionHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	m, err := h.service.Metrics(r.Context(), claims.TenantID, claims.ScraperID)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]any{
		"scraperId": claims.ScraperID,
		"metrics":   m,
	})
}

// HandleHealth is the public, unauthenticated health check.
func (h *IngestionHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := h.service.Health(r.Context())
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	h.sendJSON(w, code, status)
}

// Ready reports readiness for the load balancer.
func (h *IngestionHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := h.service.Health(r.Context())
	if status.Status != "healthy" {
		h.sendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	h.sendJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// authenticate validates the bearer token and requires the scraper token
// type. On failure it writes the response and returns ok=false.
func (h *IngestionHandler) authenticate(w http.ResponseWriter, r *http.Request) (*tokens.Claims, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		h.sendError(w, http.StatusUnauthorized, "Missing or invalid authorization header")
		return nil, false
	}

	claims, err := h.tokens.ValidateScraper(strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		if errors.Is(err, tokens.ErrWrongTokenType) {
			h.sendError(w, http.StatusForbidden, "Token is not authorized for ingestion")
			return nil, false
		}
		h.sendError(w, http.StatusUnauthorized, "Invalid token")
		return nil, false
	}
	return claims, true
}

// sendPipelineError maps the pipeline error taxonomy onto HTTP statuses.
func (h *IngestionHandler) sendPipelineError(w http.ResponseWriter, err error) {
	var integrityErr *models.IntegrityError
	var schemaErr *models.SchemaError
	var reconcileErr *models.ReconciliationError

	switch {
	case errors.As(err, &integrityErr):
		h.sendError(w, http.StatusBadRequest, "Checksum verification failed")
	case errors.As(err, &schemaErr):
		h.sendError(w, http.StatusBadRequest, schemaErr.Reason)
	case errors.Is(err, models.ErrBatchInProgress):
		h.sendError(w, http.StatusConflict, "Batch is already being processed")
	case errors.As(err, &reconcileErr):
		h.sendError(w, http.StatusInternalServerError, "Batch processing failed")
	default:
		h.sendError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *IngestionHandler) sendRateLimited(w http.ResponseWriter, rlErr *models.RateLimitError) {
	seconds := int(rlErr.RetryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]any{
		"error":      "Rate limit exceeded",
		"retryAfter": seconds,
	})
}

func (h *IngestionHandler) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *IngestionHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, map[string]string{"error": message})
}
