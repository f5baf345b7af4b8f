package middleware

import (
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"
)

// RateLimit throttles frame endpoints to the configured frames per second.
// Requests over the limit get 429 with a Retry-After hint.
func RateLimit(fps float64) func(http.Handler) http.Handler {
	if fps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	burst := max(1, int(math.Ceil(fps)))
	limiter := rate.NewLimiter(rate.Limit(fps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Reserve()
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				w.Header().Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(delay.Seconds())))))
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error": "too many frames"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
