package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway counters, registered once on the default registry.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "convocore",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "API requests by operation and outcome.",
	}, []string{"op", "status"})

	rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "convocore",
		Subsystem: "gateway",
		Name:      "rate_limited_total",
		Help:      "Requests denied by the per-channel rate limiter.",
	}, []string{"resource"})

	summarizationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "convocore",
		Subsystem: "conversation",
		Name:      "summarizations_total",
		Help:      "Summarization attempts by outcome.",
	}, []string{"result"})

	windowTokens = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "convocore",
		Subsystem: "conversation",
		Name:      "window_tokens",
		Help:      "Estimated token size of served context windows.",
		Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
	})
)
