// Package metrics exposes Prometheus metrics for scoring and catalog reloads.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"PortfolioLens/internal/model"
)

// Metrics holds all collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ScoreRequests  *prometheus.CounterVec
	ScoreDuration  prometheus.Histogram
	BestMatches    *prometheus.CounterVec
	RuleFailures   prometheus.Counter
	CatalogReloads *prometheus.CounterVec
	CatalogVersion *prometheus.GaugeVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// New creates and registers all metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ScoreRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lens_score_requests_total",
				Help: "Portfolios scored, by source",
			},
			[]string{"source"},
		),
		ScoreDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lens_score_duration_seconds",
			Help:    "Time spent scoring one portfolio against the catalog",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),
		BestMatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lens_best_match_total",
				Help: "Best-matching philosophy per scored portfolio",
			},
			[]string{"philosophy"},
		),
		RuleFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lens_rule_compile_failures_total",
			Help: "Catalog rules that failed to compile and never match",
		}),
		CatalogReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lens_catalog_reloads_total",
				Help: "Catalog reload attempts by result",
			},
			[]string{"result"},
		),
		CatalogVersion: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lens_catalog_info",
				Help: "Catalog currently loaded, value is the philosophy count",
			},
			[]string{"version"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lens_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lens_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ScoreRequests,
		m.ScoreDuration,
		m.BestMatches,
		m.RuleFailures,
		m.CatalogReloads,
		m.CatalogVersion,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveScore records one scoring call.
func (m *Metrics) ObserveScore(source string, res *model.ComplianceResult, took time.Duration) {
	m.ScoreRequests.WithLabelValues(source).Inc()
	m.ScoreDuration.Observe(took.Seconds())
	best := "none"
	if res.BestMatch != nil {
		best = res.BestMatch.ID
	}
	m.BestMatches.WithLabelValues(best).Inc()
}

// RuleFailed counts a rule compile failure. Its signature matches
// rules.FailureHook.
func (m *Metrics) RuleFailed(string, error) {
	m.RuleFailures.Inc()
}

// CatalogLoaded records a successful load and the active version.
func (m *Metrics) CatalogLoaded(cat *model.Catalog) {
	m.CatalogReloads.WithLabelValues("ok").Inc()
	m.CatalogVersion.Reset()
	m.CatalogVersion.WithLabelValues(cat.Version).Set(float64(len(cat.Philosophies)))
}

// CatalogReloadFailed records a failed reload.
func (m *Metrics) CatalogReloadFailed() {
	m.CatalogReloads.WithLabelValues("error").Inc()
}
