package api

import (
	"net/http"
)

// GetPipeline возвращает узлы и переходы графа.
// GET /api/v1/pipeline
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	Success(w, h.service.Pipeline().Describe())
}

// Health сообщает о готовности сервиса.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		ActiveRuns: h.service.ActiveRunsCount(),
		Storage:    h.runs != nil,
	})
}
