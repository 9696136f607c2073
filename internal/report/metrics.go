// Package report implements the report stream, metrics, and dashboard
// server of spec.md §6.4: Prometheus counters/histograms per test, a
// gorilla/mux dashboard exposing the latest verdicts, and a websocket
// stream of live sample outcomes.
package report

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sawpanic/punit/internal/model"
)

// MetricsRegistry holds every Prometheus collector PUnit exports, alongside
// the dedicated prometheus.Registry they're registered against (not the
// global default, so multiple registries can coexist in tests).
type MetricsRegistry struct {
	registry *prometheus.Registry

	SamplesTotal    *prometheus.CounterVec
	VerdictsTotal   *prometheus.CounterVec
	ObservedRate    *prometheus.GaugeVec
	SampleDuration  *prometheus.HistogramVec
	TokensConsumed  *prometheus.CounterVec
	TerminationTotal *prometheus.CounterVec
}

// NewMetricsRegistry builds and registers PUnit's metric collectors.
func NewMetricsRegistry() *MetricsRegistry {
	reg := prometheus.NewRegistry()

	m := &MetricsRegistry{registry: reg,
		SamplesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "punit_samples_total",
				Help: "Total number of samples executed, by use case and outcome status",
			},
			[]string{"use_case_id", "status"},
		),
		VerdictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "punit_verdicts_total",
				Help: "Total number of test verdicts, by use case and pass/fail",
			},
			[]string{"use_case_id", "passed"},
		),
		ObservedRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "punit_observed_rate",
				Help: "Most recent observed success rate, by use case",
			},
			[]string{"use_case_id"},
		),
		SampleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "punit_sample_duration_ms",
				Help:    "Duration of a single sample invocation in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
			[]string{"use_case_id"},
		),
		TokensConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "punit_tokens_consumed_total",
				Help: "Total tokens consumed across samples, by use case",
			},
			[]string{"use_case_id"},
		),
		TerminationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "punit_termination_reason_total",
				Help: "Total verdicts by termination reason",
			},
			[]string{"use_case_id", "reason"},
		),
	}

	reg.MustRegister(
		m.SamplesTotal, m.VerdictsTotal, m.ObservedRate,
		m.SampleDuration, m.TokensConsumed, m.TerminationTotal,
	)

	return m
}

// Registry returns the prometheus.Registry this MetricsRegistry's
// collectors are registered against.
func (m *MetricsRegistry) Registry() *prometheus.Registry { return m.registry }

// RecordSample updates per-sample metrics.
func (m *MetricsRegistry) RecordSample(useCaseID string, o model.SampleOutcome) {
	m.SamplesTotal.WithLabelValues(useCaseID, string(o.Status)).Inc()
	m.SampleDuration.WithLabelValues(useCaseID).Observe(float64(o.DurationMs))
	if o.TokensConsumed > 0 {
		m.TokensConsumed.WithLabelValues(useCaseID).Add(float64(o.TokensConsumed))
	}
}

// RecordVerdict updates per-verdict metrics.
func (m *MetricsRegistry) RecordVerdict(useCaseID string, v model.Verdict) {
	passed := "false"
	if v.Passed {
		passed = "true"
	}
	m.VerdictsTotal.WithLabelValues(useCaseID, passed).Inc()
	m.ObservedRate.WithLabelValues(useCaseID).Set(v.ObservedRate)
	m.TerminationTotal.WithLabelValues(useCaseID, string(v.TerminationReason)).Inc()
}

// Handler returns the HTTP handler that serves this registry's metrics in
// the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
