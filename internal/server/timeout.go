package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware enforces request timeouts. A non-positive timeout
// disables it. Handlers observe the deadline through the request context;
// the orchestrator turns an expired generation deadline into its fallback
// answer.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
