package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public — no auth required.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if g.config.AuthToken != "" {
			r.Use(authMiddleware(g.config.AuthToken))
		}
		r.Route("/channels/{channel}", func(r chi.Router) {
			r.With(g.limitMiddleware("chat")).Post("/messages", g.handleAppend())
			r.With(g.limitMiddleware("chat")).Get("/context", g.handleContext())
			r.Delete("/messages", g.handleClear())
			r.With(g.limitMiddleware("summarize")).Post("/summarize", g.handleSummarize())
			if g.hub != nil {
				r.Get("/events", g.handleEvents())
			}
		})
	})

	return r
}
