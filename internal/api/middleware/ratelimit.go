package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/tripmap/tripmap/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// RoutesRateLimit applies to GET /routes, which fans out to several paid
// Directions calls per request.
var RoutesRateLimit = RateLimitConfig{
	RequestLimit: 60,
	WindowLength: time.Minute,
}

// RateLimitByIP limits requests per client IP. Behind a proxy the IP comes
// from X-Forwarded-For / X-Real-IP.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.RequestLimit <= 0 {
		cfg.RequestLimit = RoutesRateLimit.RequestLimit
	}
	if cfg.WindowLength <= 0 {
		cfg.WindowLength = RoutesRateLimit.WindowLength
	}

	retryAfter := strconv.Itoa(int(cfg.WindowLength.Seconds()))

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			// httprate does not expose the exact reset time; the window length is an upper bound.
			w.Header().Set("Retry-After", retryAfter)
			models.NewError(models.MessageRateLimited, GetRequestID(r.Context())).
				Write(w, http.StatusTooManyRequests)
		}),
	)
}
