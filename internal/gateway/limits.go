package gateway

import (
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// limitMiddleware enforces the named per-channel rate limit. The channel is
// the rate limit identity, so one noisy channel cannot starve the rest.
func (g *Gateway) limitMiddleware(resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit, ok := g.config.Limits[resource]
			if !ok || g.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			channel := chi.URLParam(r, "channel")
			decision := g.limiter.Check(channel, resource, limit.Requests, limit.Window)
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			rateLimitedTotal.WithLabelValues(resource).Inc()

			retrySecs := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retrySecs < 1 {
				retrySecs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retrySecs))
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":       "rate limited",
				"resource":    resource,
				"retry_after": retrySecs,
			})
		})
	}
}
