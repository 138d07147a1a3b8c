package mid

import (
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"
)

// RateLimit returns middleware that admits requests from a shared token
// bucket refilled at rps tokens per second with the given burst. Requests
// over the limit get 429. A non-positive rps disables limiting.
func RateLimit(rps float64, burst int) Middleware {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = int(math.Ceil(rps))
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	retryAfter := strconv.Itoa(int(math.Ceil(1 / rps)))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", retryAfter)
			writeDetail(w, http.StatusTooManyRequests, "rate limit exceeded")
		})
	}
}
