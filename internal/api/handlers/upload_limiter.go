package handlers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/hospitalintelligence/internal/domain/providers"
	"github.com/zatekoja/hospitalintelligence/internal/infrastructure/observability"
)

const uploadRateWindow = time.Hour

// UploadLimiter caps batch uploads per client within a rolling hour. Counters
// live in the cache so every replica shares them when Redis is configured.
type UploadLimiter struct {
	cache   providers.CacheProvider
	limit   int
	metrics *observability.Metrics
}

// NewUploadLimiter creates a limiter allowing limit uploads per hour.
// A limit of zero or less disables limiting.
func NewUploadLimiter(cache providers.CacheProvider, limit int, metrics *observability.Metrics) *UploadLimiter {
	return &UploadLimiter{cache: cache, limit: limit, metrics: metrics}
}

// Allow counts one upload for the client and reports whether it is within the limit.
// Cache failures let the upload through.
func (l *UploadLimiter) Allow(ctx context.Context, client string) bool {
	if l == nil || l.cache == nil || l.limit <= 0 {
		return true
	}

	count, err := l.cache.Incr(ctx, "upload:rate:"+client, int(uploadRateWindow.Seconds()))
	if err != nil {
		log.Warn().Err(err).Str("client", client).Msg("Upload rate limit check failed, allowing request")
		return true
	}
	if count > int64(l.limit) {
		observability.RecordRateLimited(ctx, l.metrics, "batch_upload")
		return false
	}
	return true
}

// RetryAfter is the wait advertised to limited clients
func (l *UploadLimiter) RetryAfter() time.Duration {
	return uploadRateWindow
}
