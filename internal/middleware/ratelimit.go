package middleware

import (
	"net/http"

	"arbor/internal/httputil"
	"arbor/internal/ratelimit"
)

// RateLimit guards expensive routes (context assembly + completion)
// with a sliding-window limiter keyed by user id + client IP. The
// limiter instance is passed in explicitly so tests can construct
// isolated ones.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := httputil.GetUserID(r) + "|" + httputil.ClientIP(r)
			if !limiter.Allow(id) {
				httputil.RespondError(w, http.StatusTooManyRequests, "rate limit exceeded, try again shortly")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
