// Package telemetry exposes Prometheus collectors for generation and adapter
// activity. All methods are safe on a nil *Metrics.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	generations *prometheus.CounterVec
	tokens      *prometheus.CounterVec
	cost        *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	adapters    *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "research",
			Name:      "generations_total",
			Help:      "Language-model calls by stage label and outcome.",
		}, []string{"label", "outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "research",
			Name:      "generation_tokens_total",
			Help:      "Tokens consumed by language-model calls.",
		}, []string{"label", "kind"}),
		cost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "research",
			Name:      "generation_cost_usd_total",
			Help:      "Provider-reported cost of language-model calls.",
		}, []string{"label"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "research",
			Name:      "generation_seconds",
			Help:      "Language-model call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}, []string{"label"}),
		adapters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "research",
			Name:      "adapter_results_total",
			Help:      "Evidence adapter results by source and status.",
		}, []string{"source", "status"}),
	}
	reg.MustRegister(m.generations, m.tokens, m.cost, m.latency, m.adapters)
	return m
}

// Generation records one language-model call.
func (m *Metrics) Generation(label, outcome string, promptTokens, completionTokens int, cost float64, took time.Duration) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(label, outcome).Inc()
	m.tokens.WithLabelValues(label, "prompt").Add(float64(promptTokens))
	m.tokens.WithLabelValues(label, "completion").Add(float64(completionTokens))
	if cost > 0 {
		m.cost.WithLabelValues(label).Add(cost)
	}
	m.latency.WithLabelValues(label).Observe(took.Seconds())
}

// Adapter records the status one evidence source ended with.
func (m *Metrics) Adapter(source, status string) {
	if m == nil {
		return
	}
	m.adapters.WithLabelValues(source, status).Inc()
}
