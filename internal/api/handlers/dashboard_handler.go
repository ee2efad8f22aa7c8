package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/zatekoja/hospitalintelligence/internal/api/middleware"
	"github.com/zatekoja/hospitalintelligence/internal/domain/entities"
	"github.com/zatekoja/hospitalintelligence/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/hospitalintelligence/pkg/errors"
)

// PredictionService defines the single-record pipelines used by the handler
type PredictionService interface {
	PredictClinical(ctx context.Context, in entities.ClinicalInput) (*entities.ClinicalReport, error)
	PredictLoad(ctx context.Context, in entities.LoadInput) (*entities.LoadReport, error)
}

// BatchService defines the batch pipeline used by the handler
type BatchService interface {
	Score(ctx context.Context, r io.Reader) (*entities.BatchReport, error)
}

// DashboardHandler serves the dashboard page and its three forms
type DashboardHandler struct {
	predictions PredictionService
	batches     BatchService
	limiter     *UploadLimiter
	renderer    *Renderer
	now         func() time.Time
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(predictions PredictionService, batches BatchService, limiter *UploadLimiter, renderer *Renderer) *DashboardHandler {
	return &DashboardHandler{
		predictions: predictions,
		batches:     batches,
		limiter:     limiter,
		renderer:    renderer,
		now:         time.Now,
	}
}

// Index handles GET /
func (h *DashboardHandler) Index(w http.ResponseWriter, r *http.Request) {
	data := h.newRenderRequest(r, tabOrDefault(r.URL.Query().Get(fieldTab), entities.TabICU))
	h.renderer.Render(w, r, http.StatusOK, data)
}

// PredictClinical handles POST /predict/clinical
func (h *DashboardHandler) PredictClinical(w http.ResponseWriter, r *http.Request) {
	data := h.newRenderRequest(r, clinicalTab(r.PostFormValue(fieldTab)))

	in, err := parseClinicalForm(r)
	data.ClinicalForm = in
	if err != nil {
		h.renderError(w, r, data, err)
		return
	}

	report, err := h.predictions.PredictClinical(r.Context(), in)
	if err != nil {
		h.renderError(w, r, data, err)
		return
	}

	data.Requested = true
	data.Clinical = report
	h.renderer.Render(w, r, http.StatusOK, data)
}

// PredictLoad handles POST /predict/load
func (h *DashboardHandler) PredictLoad(w http.ResponseWriter, r *http.Request) {
	data := h.newRenderRequest(r, entities.TabLoad)

	in, err := parseLoadForm(r)
	data.LoadForm = in
	if err != nil {
		h.renderError(w, r, data, err)
		return
	}

	report, err := h.predictions.PredictLoad(r.Context(), in)
	if err != nil {
		h.renderError(w, r, data, err)
		return
	}

	data.Requested = true
	data.Load = report
	h.renderer.Render(w, r, http.StatusOK, data)
}

// PredictBatch handles POST /predict/batch with a multipart CSV upload
func (h *DashboardHandler) PredictBatch(w http.ResponseWriter, r *http.Request) {
	data := h.newRenderRequest(r, entities.TabBatch)

	if !h.limiter.Allow(r.Context(), middleware.ClientIP(r)) {
		w.Header().Set("Retry-After", strconv.Itoa(int(h.limiter.RetryAfter().Seconds())))
		h.renderError(w, r, data, apperrors.NewRateLimitedError("too many batch uploads, try again later"))
		return
	}

	file, _, err := r.FormFile(fieldUpload)
	if err != nil {
		h.renderError(w, r, data, apperrors.NewValidationError("choose a CSV file to upload"))
		return
	}
	defer file.Close()

	report, err := h.batches.Score(r.Context(), file)
	if err != nil {
		h.renderError(w, r, data, err)
		return
	}

	data.Requested = true
	data.Batch = report
	h.renderer.Render(w, r, http.StatusOK, data)
}

func (h *DashboardHandler) newRenderRequest(r *http.Request, tab string) *entities.RenderRequest {
	today := h.now().UTC().Truncate(24 * time.Hour)
	return &entities.RenderRequest{
		RequestID:    middleware.RequestIDFromContext(r.Context()),
		CSRFToken:    middleware.CSRFTokenFromContext(r.Context()),
		ActiveTab:    tab,
		ClinicalForm: entities.DefaultClinicalInput(),
		LoadForm: entities.LoadInput{
			AdmissionDate:        today,
			RecentEmergencies24h: 30,
			BedOccupancy:         0.75,
			ICUOccupancy:         0.60,
		},
	}
}

// renderError re-renders the page with the failure shown next to its form.
// Input problems keep their message; anything else is logged and shown generically.
func (h *DashboardHandler) renderError(w http.ResponseWriter, r *http.Request, data *entities.RenderRequest, err error) {
	status := apperrors.HTTPStatus(err)
	logger := observability.LoggerFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("tab", data.ActiveTab).Msg("Prediction failed")
	} else {
		logger.Debug().Err(err).Str("tab", data.ActiveTab).Msg("Prediction rejected")
	}

	inline := &entities.InlineError{Message: apperrors.UserMessage(err)}
	if appErr, ok := apperrors.As(err); ok {
		inline.MissingFields = appErr.MissingFields
	}
	data.Error = inline
	h.renderer.Render(w, r, status, data)
}

func tabOrDefault(tab, fallback string) string {
	switch tab {
	case entities.TabICU, entities.TabEmergency, entities.TabStaff, entities.TabLoad, entities.TabBatch:
		return tab
	}
	return fallback
}

// clinicalTab keeps the user on whichever clinical tab they submitted from
func clinicalTab(tab string) string {
	switch tab {
	case entities.TabEmergency, entities.TabStaff:
		return tab
	}
	return entities.TabICU
}
