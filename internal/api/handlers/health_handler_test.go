package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/hospitalintelligence/internal/adapters/predictors"
	"github.com/zatekoja/hospitalintelligence/internal/api/handlers"
	"github.com/zatekoja/hospitalintelligence/pkg/config"
)

func modelsConfig(dir string) config.ModelsConfig {
	return config.ModelsConfig{
		Dir:                   dir,
		ICUFile:               "icu_model.json",
		EmergencyFile:         "emergency_model.json",
		StaffFile:             "staff_model.json",
		StaffLabelEncoderFile: "staff_label_encoder.json",
		EmergencyLoadFile:     "emergency_load_model.json",
	}
}

func TestHealthHandler_Health(t *testing.T) {
	handler := handlers.NewHealthHandler(predictors.NewModelStore(modelsConfig(t.TempDir())))

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestHealthHandler_Ready(t *testing.T) {
	handler := handlers.NewHealthHandler(predictors.NewModelStore(modelsConfig("../../../models")))

	w := httptest.NewRecorder()
	handler.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Status            string   `json:"status"`
		Models            []string `json:"models"`
		StaffLabelEncoder bool     `json:"staff_label_encoder"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "ready", response.Status)
	assert.Len(t, response.Models, 5)
	assert.True(t, response.StaffLabelEncoder)
}

func TestHealthHandler_NotReady(t *testing.T) {
	handler := handlers.NewHealthHandler(predictors.NewModelStore(modelsConfig(t.TempDir())))

	w := httptest.NewRecorder()
	handler.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not_ready")
}
