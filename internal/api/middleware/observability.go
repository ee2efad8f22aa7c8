package middleware

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/hospitalintelligence/internal/infrastructure/observability"
)

const routeKey contextKey = "route"

// routeInfo is filled in by TagRoute once the mux has matched a pattern.
// Handlers further in see a cloned request, so the pattern travels back
// through this shared holder.
type routeInfo struct {
	pattern string
}

// TagRoute records the matched mux pattern for ObservabilityMiddleware
func TagRoute(r *http.Request) {
	if info, ok := r.Context().Value(routeKey).(*routeInfo); ok {
		info.pattern = r.Pattern
	}
}

// ObservabilityMiddleware traces each request and records request metrics
func ObservabilityMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := observability.StartSpan(r.Context(), r.Method+" "+r.URL.Path)
			defer span.End()

			info := &routeInfo{}
			ctx = context.WithValue(ctx, routeKey, info)

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rw, r.WithContext(ctx))

			// Patterns keep metric cardinality low
			route := info.pattern
			if route == "" {
				route = "unmatched"
			}

			observability.RecordRequestMetric(ctx, metrics, r.Method, route, rw.statusCode, time.Since(start))
			observability.SetSpanAttributes(span,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.request_id", RequestIDFromContext(ctx)),
				attribute.Int("http.status_code", rw.statusCode),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}
