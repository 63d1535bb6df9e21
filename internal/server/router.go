package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tenderflow-systems/tenderflow-ingest/internal/handlers"
	"github.com/tenderflow-systems/tenderflow-ingest/internal/middleware"
)

// NewRouter constructs a ServeMux with the ingestion API routes registered.
func NewRouter(h *handlers.IngestionHandler) http.Handler {
	mux := http.NewServeMux()

	// Ingestion API
	mux.HandleFunc("/api/ingestion/tenders", h.HandleIngest)
	mux.HandleFunc("/api/ingestion/status/", h.HandleStatus)
	mux.HandleFunc("/api/ingestion/metrics", h.HandleMetrics)
	mux.HandleFunc("/api/ingestion/health", h.HandleHealth)

	// Health endpoints
	mux.HandleFunc("/healthz", h.HandleHealth)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
