package punit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sawpanic/punit/internal/budget"
	"github.com/sawpanic/punit/internal/model"
	"github.com/sawpanic/punit/internal/report"
	"github.com/sawpanic/punit/internal/schedule"
	"github.com/sawpanic/punit/internal/spec"
	"github.com/sawpanic/punit/internal/tokens"
)

type memorySource struct {
	specs map[string]*spec.Spec
}

func (m *memorySource) Load(useCaseID, version string) (*spec.Spec, error) {
	s, ok := m.specs[spec.CacheKey(useCaseID, version)]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

func alwaysPass(ctx context.Context, rec *tokens.Recorder) (bool, string, error) {
	return true, "", nil
}

func TestRunProbabilisticTestInlineThresholdPasses(t *testing.T) {
	decl := model.Configuration{Samples: 10, MinPassRate: 0.8, ThresholdConfidence: 0.95, ThresholdOrigin: model.OriginUnspecified}

	result, err := RunProbabilisticTest(context.Background(), "uc-inline", decl, alwaysPass, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Verdict.Passed {
		t.Errorf("expected verdict to pass with an all-pass sample function")
	}
	if result.Explanation.Hypothesis == "" {
		t.Error("expected a non-empty hypothesis in the explanation")
	}
}

func TestRunProbabilisticTestFailsWhenBelowThreshold(t *testing.T) {
	decl := model.Configuration{Samples: 10, MinPassRate: 0.9, ThresholdConfidence: 0.95}
	calls := 0
	fn := func(ctx context.Context, rec *tokens.Recorder) (bool, string, error) {
		calls++
		return calls%2 == 0, "half fail", nil
	}

	result, err := RunProbabilisticTest(context.Background(), "uc-fail", decl, fn, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Verdict.Passed {
		t.Error("expected verdict to fail when observed rate is well below minPassRate")
	}
}

func TestRunProbabilisticTestDerivesFromRegisteredSpec(t *testing.T) {
	approvedSpec := &spec.Spec{
		UseCaseID:  "uc-derived",
		Version:    "v1",
		ApprovedBy: "qa",
		ApprovedAt: time.Now(),
		Requirements: spec.Requirements{MinPassRate: 0.9},
		RegressionThreshold: spec.RegressionThreshold{
			ExperimentalBasis: spec.ExperimentalBasis{SamplesExp: 1000, SuccessesExp: 951},
		},
	}
	registry := spec.NewRegistry(&memorySource{specs: map[string]*spec.Spec{
		spec.CacheKey("uc-derived", "v1"): approvedSpec,
	}})

	decl := model.Configuration{
		Samples: 100,
		SpecRef: &model.SpecRef{UseCaseID: "uc-derived", Version: "v1"},
		ThresholdConfidence: 0.95,
		ThresholdOrigin:     model.OriginEmpirical,
	}

	result, err := RunProbabilisticTest(context.Background(), "uc-derived", decl, alwaysPass, Options{
		Registry: registry,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Explanation.Threshold.Derivation.Method == "" {
		t.Error("expected a derivation method to be recorded when deriving from a spec")
	}
	if !result.Verdict.Passed {
		t.Errorf("expected an all-pass run to clear a derived threshold below 1.0, got rate=%v required=%v",
			result.Verdict.ObservedRate, result.Verdict.RequiredRate)
	}
}

func TestRunProbabilisticTestPropagatesSpecLoadError(t *testing.T) {
	registry := spec.NewRegistry(&memorySource{specs: map[string]*spec.Spec{}})
	decl := model.Configuration{
		Samples:             10,
		ThresholdConfidence: 0.95,
		SpecRef:             &model.SpecRef{UseCaseID: "missing", Version: "v1"},
	}

	_, err := RunProbabilisticTest(context.Background(), "missing", decl, alwaysPass, Options{Registry: registry})
	if err == nil {
		t.Fatal("expected an error when the referenced spec cannot be loaded")
	}
}

func TestRunProbabilisticTestPublishesToStreamAndMetrics(t *testing.T) {
	decl := model.Configuration{Samples: 3, MinPassRate: 1.0, ThresholdConfidence: 0.95}
	metrics := report.NewMetricsRegistry()
	stream := report.NewStream()

	result, err := RunProbabilisticTest(context.Background(), "uc-telemetry", decl, alwaysPass, Options{
		Metrics: metrics,
		Stream:  stream,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Verdict.Passed {
		t.Error("expected pass")
	}

	families, err := metrics.Registry().Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one registered metric family")
	}
}

func TestRunProbabilisticTestUsesClassBudget(t *testing.T) {
	classRegistry := budget.NewClassRegistry()
	decl := model.Configuration{Samples: 5, MinPassRate: 1.0, ThresholdConfidence: 0.95, TimeBudgetMs: 0, TokenBudget: 0}

	_, err := RunProbabilisticTest(context.Background(), "uc-class", decl, alwaysPass, Options{
		ClassName:     "ExampleClass",
		ClassRegistry: classRegistry,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if classRegistry.Active() != 0 {
		t.Error("expected the class monitor to be released after the test completed")
	}
}

func TestRunProbabilisticTestTerminatesFastOnInfeasibleVerificationThreshold(t *testing.T) {
	// spec.md scenario 6: intent=VERIFICATION, origin=SLA, minPassRate=0.9999,
	// n=100 cannot possibly evidence that rate even with zero failures.
	decl := model.Configuration{
		Samples:             100,
		MinPassRate:         0.9999,
		ThresholdConfidence: 0.95,
		ThresholdOrigin:     model.OriginSLA,
		Intent:              model.IntentVerification,
	}
	calls := 0
	fn := func(ctx context.Context, rec *tokens.Recorder) (bool, string, error) {
		calls++
		return true, "", nil
	}

	result, err := RunProbabilisticTest(context.Background(), "uc-infeasible", decl, fn, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Verdict.Passed {
		t.Error("expected FAIL on an infeasible verification threshold")
	}
	if result.Verdict.TerminationReason != model.ReasonInfeasibleThreshold {
		t.Errorf("TerminationReason = %v, want INFEASIBLE_THRESHOLD", result.Verdict.TerminationReason)
	}
	if result.Verdict.SamplesExecuted != 0 {
		t.Errorf("SamplesExecuted = %d, want 0 (no sample should run)", result.Verdict.SamplesExecuted)
	}
	if calls != 0 {
		t.Errorf("sample function invoked %d times, want 0", calls)
	}
	if result.Verdict.FeasibilityNote == "" {
		t.Error("expected a feasibility note explaining the required minimum n*")
	}
}

func TestRunProbabilisticTestSkipsFeasibilityGateForSmokeIntent(t *testing.T) {
	// Same infeasible threshold, but SMOKE intent should not trigger the gate.
	decl := model.Configuration{
		Samples:             5,
		MinPassRate:         0.9999,
		ThresholdConfidence: 0.95,
		ThresholdOrigin:     model.OriginSLA,
		Intent:              model.IntentSmoke,
	}

	result, err := RunProbabilisticTest(context.Background(), "uc-smoke", decl, alwaysPass, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Verdict.TerminationReason == model.ReasonInfeasibleThreshold {
		t.Error("SMOKE intent should not trigger the VERIFICATION feasibility gate")
	}
}

// exercised indirectly via schedule.SampleFunc compatibility
var _ schedule.SampleFunc = alwaysPass
