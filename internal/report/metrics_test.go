package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	dto "github.com/prometheus/client_model/go"

	"github.com/sawpanic/punit/internal/model"
)

func TestRecordSampleIncrementsCounters(t *testing.T) {
	m := NewMetricsRegistry()
	m.RecordSample("uc1", model.SampleOutcome{Status: model.StatusPass, DurationMs: 12, TokensConsumed: 40})

	assert.Equal(t, float64(1), counterValue(t, m.SamplesTotal.WithLabelValues("uc1", "PASS")))
	assert.Equal(t, float64(40), counterValue(t, m.TokensConsumed.WithLabelValues("uc1")))
}

func TestRecordSampleSkipsZeroTokens(t *testing.T) {
	m := NewMetricsRegistry()
	m.RecordSample("uc1", model.SampleOutcome{Status: model.StatusFail, DurationMs: 5})

	assert.Equal(t, float64(0), counterValue(t, m.TokensConsumed.WithLabelValues("uc1")))
}

func TestRecordVerdictSetsObservedRateAndTermination(t *testing.T) {
	m := NewMetricsRegistry()
	m.RecordVerdict("uc1", model.Verdict{Passed: true, ObservedRate: 0.87, TerminationReason: model.ReasonCompleted})

	assert.Equal(t, float64(1), counterValue(t, m.VerdictsTotal.WithLabelValues("uc1", "true")))
	assert.Equal(t, 0.87, counterValue(t, m.ObservedRate.WithLabelValues("uc1")))
	assert.Equal(t, float64(1), counterValue(t, m.TerminationTotal.WithLabelValues("uc1", string(model.ReasonCompleted))))
}

func TestRegistryReturnsUnderlyingRegistry(t *testing.T) {
	m := NewMetricsRegistry()
	assert.NotNil(t, m.Registry())

	families, err := m.Registry().Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var out dto.Metric
	if err := c.Write(&out); err != nil {
		t.Fatalf("failed reading metric: %v", err)
	}
	if out.Counter != nil {
		return out.Counter.GetValue()
	}
	if out.Gauge != nil {
		return out.Gauge.GetValue()
	}
	return 0
}
