package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/zatekoja/hospitalintelligence/internal/domain/providers"
)

// ModelSource hands out the loaded model set
type ModelSource interface {
	Load() (*providers.ModelSet, error)
}

// HealthHandler serves liveness and readiness checks
type HealthHandler struct {
	models ModelSource
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(models ModelSource) *HealthHandler {
	return &HealthHandler{models: models}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Ready handles GET /ready. It reports ready only once every model is loaded.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	models, err := h.models.Load()
	if err != nil {
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"error":  "models not loaded",
		})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":              "ready",
		"models":              models.Names(),
		"staff_label_encoder": models.StaffLabels != nil,
	})
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
