package routes

import (
	"net/http"

	"github.com/zatekoja/hospitalintelligence/internal/api/handlers"
	"github.com/zatekoja/hospitalintelligence/internal/api/middleware"
	"github.com/zatekoja/hospitalintelligence/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	dashboardHandler *handlers.DashboardHandler
	healthHandler    *handlers.HealthHandler

	maxBodyBytes   int64
	trustedProxies *middleware.TrustedProxies
	metrics        *observability.Metrics
}

// NewRouter creates a new router. maxBodyBytes caps every request body,
// which in practice bounds batch uploads. Proxy headers are only honoured
// from trustedProxies; nil trusts nobody.
func NewRouter(
	dashboardHandler *handlers.DashboardHandler,
	healthHandler *handlers.HealthHandler,
	maxBodyBytes int64,
	trustedProxies *middleware.TrustedProxies,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		dashboardHandler: dashboardHandler,
		healthHandler:    healthHandler,
		maxBodyBytes:     maxBodyBytes,
		trustedProxies:   trustedProxies,
		metrics:          metrics,
	}
}

func (r *Router) handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, func(w http.ResponseWriter, req *http.Request) {
		middleware.TagRoute(req)
		h(w, req)
	})
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Probes
	r.handle("GET /health", r.healthHandler.Health)
	r.handle("GET /ready", r.healthHandler.Ready)

	// Dashboard
	r.handle("GET /{$}", r.dashboardHandler.Index)
	r.handle("POST /predict/clinical", r.dashboardHandler.PredictClinical)
	r.handle("POST /predict/load", r.dashboardHandler.PredictLoad)
	r.handle("POST /predict/batch", r.dashboardHandler.PredictBatch)

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.CSRF(handler)
	handler = http.MaxBytesHandler(handler, r.maxBodyBytes)
	handler = middleware.NoStore(handler)
	handler = middleware.Compression(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.RealIP(r.trustedProxies)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
