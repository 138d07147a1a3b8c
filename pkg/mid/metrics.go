package mid

import (
	"net/http"
	"time"
)

// HTTPObserver records one finished request.
type HTTPObserver interface {
	ObserveHTTP(method, route string, code int, elapsed time.Duration)
}

// Metrics returns middleware that reports every request to obs, labelled
// with the ServeMux pattern that matched. It must wrap the mux directly so
// the pattern set during routing is visible afterwards.
func Metrics(obs HTTPObserver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			obs.ObserveHTTP(r.Method, route, sw.status, time.Since(start))
		})
	}
}
