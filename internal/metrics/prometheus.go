// Package metrics provides Prometheus metrics for the gateway: request
// outcomes, latencies, token consumption, quota denials, and cache
// effectiveness.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aigateway"

// LatencyBuckets defines histogram buckets for latency metrics (in seconds).
var LatencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 4.0, 8.0, 15.0, 30.0, 60.0, 120.0,
}

var (
	// RequestsTotal counts generation requests by outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of generation requests",
		},
		[]string{"provider", "model", "status_code"},
	)

	// RequestDuration tracks end-to-end request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end generation request latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"provider", "model"},
	)

	// TokensConsumed counts tokens by direction.
	TokensConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_consumed_total",
			Help:      "Total tokens consumed",
		},
		[]string{"provider", "model", "direction"},
	)

	// QuotaDenials counts admission rejections by reason.
	QuotaDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_denials_total",
			Help:      "Total requests denied by quota checks",
		},
		[]string{"reason"},
	)

	// CacheHits counts answer cache hits.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total answer cache hits",
		},
	)

	// CacheMisses counts answer cache misses.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total answer cache misses",
		},
	)

	// TenantsProvisioned counts tenants created from tokens.
	TenantsProvisioned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenants_provisioned_total",
			Help:      "Total tenants auto-provisioned from verified tokens",
		},
	)
)

// ObserveTokens records prompt and completion token counts for a request.
func ObserveTokens(provider, model string, prompt, completion int) {
	TokensConsumed.WithLabelValues(provider, model, "prompt").Add(float64(prompt))
	TokensConsumed.WithLabelValues(provider, model, "completion").Add(float64(completion))
}
