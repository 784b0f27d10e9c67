package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Runs
	mux.Handle("POST /api/v1/runs", chain(http.HandlerFunc(h.CreateRun)))
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/active", chain(http.HandlerFunc(h.ListActiveRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("GET /api/v1/runs/{id}/snapshots", chain(http.HandlerFunc(h.ListRunSnapshots)))

	// Pipeline
	mux.Handle("GET /api/v1/pipeline", chain(http.HandlerFunc(h.GetPipeline)))

	// Service
	mux.Handle("GET /healthz", http.HandlerFunc(h.Health))
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}
