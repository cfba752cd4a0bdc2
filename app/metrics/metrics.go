// Package metrics exposes Prometheus collectors for scrapes and alert runs.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "price_comb"

// Outcome labels
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeNoData      = "no_data"
	OutcomeNoRelevant  = "no_relevant_data"
	OutcomeUnsupported = "unsupported"
	OutcomeSkipped     = "skipped"
)

type Metrics struct {
	registry *prometheus.Registry

	// Scrape metrics
	ScrapesTotal   *prometheus.CounterVec
	ListingsTotal  *prometheus.CounterVec
	ScrapeDuration *prometheus.HistogramVec

	// Alert metrics
	EvaluationsTotal   *prometheus.CounterVec
	AlertsFired        prometheus.Counter
	EvaluationDuration prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)
	m := &Metrics{registry: registry}

	m.ScrapesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scrapes_total",
		Help:      "Scrape attempts by source and outcome",
	}, []string{"source", "outcome"})

	m.ListingsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listings_total",
		Help:      "Listings seen at each filtering stage",
	}, []string{"source", "stage"})

	m.ScrapeDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scrape_duration_seconds",
		Help:      "Time to fetch, filter and persist one source",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"source"})

	m.EvaluationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alert_evaluations_total",
		Help:      "Alert evaluation runs by outcome",
	}, []string{"outcome"})

	m.AlertsFired = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_fired_total",
		Help:      "Alert events emitted",
	})

	m.EvaluationDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "alert_evaluation_duration_seconds",
		Help:      "Duration of a full alert evaluation run",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	return m
}

// Handler returns the /metrics handler for this registry
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveScrape(source, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ScrapesTotal.WithLabelValues(source, outcome).Inc()
	m.ScrapeDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func (m *Metrics) ObserveListings(source, stage string, count int) {
	if m == nil {
		return
	}
	m.ListingsTotal.WithLabelValues(source, stage).Add(float64(count))
}

func (m *Metrics) ObserveEvaluation(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		m.EvaluationDuration.Observe(duration.Seconds())
	}
}

func (m *Metrics) AlertFired() {
	if m == nil {
		return
	}
	m.AlertsFired.Inc()
}
