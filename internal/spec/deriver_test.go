package spec

import (
	"math"
	"testing"

	pe "github.com/sawpanic/punit/internal/errors"
	"github.com/sawpanic/punit/internal/stats"
)

func approxEqual(t *testing.T, got, want, tol float64, msg string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %v, want %v (tol %v)", msg, got, want, tol)
	}
}

func TestDeriveWilsonWorkedExample(t *testing.T) {
	s := &Spec{
		Requirements: Requirements{MinPassRate: 0.9},
		RegressionThreshold: RegressionThreshold{
			ExperimentalBasis: ExperimentalBasis{SamplesExp: 1000, SuccessesExp: 951},
		},
	}

	rt, err := Derive(s, 100, 0.95, PolicyDerive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rt.Derivation.Method != string(stats.MethodWilson) {
		t.Errorf("method = %s, want WILSON (pHat=0.951 is in the extreme-pHat band)", rt.Derivation.Method)
	}
	// Wilson lower bound over the experimental basis (n=1000, k=951) at 95%
	// confidence; recomputed independently to cross-check the kernel call.
	approxEqual(t, rt.MinPassRate, 0.9385, 0.002, "derived minPassRate")
	if rt.SamplesTest != 100 {
		t.Errorf("SamplesTest = %d, want 100", rt.SamplesTest)
	}
}

func TestDeriveRawUsesSpecRateVerbatim(t *testing.T) {
	s := &Spec{
		Requirements: Requirements{MinPassRate: 0.87},
		RegressionThreshold: RegressionThreshold{
			ExperimentalBasis: ExperimentalBasis{SamplesExp: 500, SuccessesExp: 400},
		},
	}

	rt, err := Derive(s, 50, 0.95, PolicyRaw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.MinPassRate != 0.87 {
		t.Errorf("MinPassRate = %v, want 0.87 verbatim", rt.MinPassRate)
	}
	if rt.Derivation.Method != string(stats.MethodExact) {
		t.Errorf("Method = %s, want EXACT", rt.Derivation.Method)
	}
}

func TestDeriveRequireMatchingSamplesWithinTolerance(t *testing.T) {
	s := &Spec{
		RegressionThreshold: RegressionThreshold{
			ExperimentalBasis: ExperimentalBasis{SamplesExp: 1000, SuccessesExp: 900},
		},
	}

	// 1000 * 5% = 50 tolerance; 1030 is within it.
	rt, err := Derive(s, 1030, 0.95, PolicyRequireMatchingSamples)
	if err != nil {
		t.Fatalf("unexpected error within tolerance: %v", err)
	}
	if rt.SamplesTest != 1030 {
		t.Errorf("SamplesTest = %d, want 1030", rt.SamplesTest)
	}
}

func TestDeriveRequireMatchingSamplesOutsideTolerance(t *testing.T) {
	s := &Spec{
		RegressionThreshold: RegressionThreshold{
			ExperimentalBasis: ExperimentalBasis{SamplesExp: 1000, SuccessesExp: 900},
		},
	}

	_, err := Derive(s, 1200, 0.95, PolicyRequireMatchingSamples)
	if err == nil {
		t.Fatal("expected error for sample size mismatch beyond tolerance")
	}
	if !pe.Is(err, pe.KindSampleSizeMismatch) {
		t.Errorf("expected KindSampleSizeMismatch, got %v", err)
	}
}

func TestDeriveRequireMatchingSamplesMinimumToleranceOfOne(t *testing.T) {
	s := &Spec{
		RegressionThreshold: RegressionThreshold{
			ExperimentalBasis: ExperimentalBasis{SamplesExp: 5, SuccessesExp: 5},
		},
	}

	// 5% of 5 rounds to 1 (minimum tolerance), so nTest=6 should pass...
	if _, err := Derive(s, 6, 0.95, PolicyRequireMatchingSamples); err != nil {
		t.Errorf("unexpected error at tolerance boundary: %v", err)
	}
	// ...but nTest=7 should not.
	if _, err := Derive(s, 7, 0.95, PolicyRequireMatchingSamples); err == nil {
		t.Error("expected error beyond minimum tolerance of 1")
	}
}

func TestDeriveUnknownPolicy(t *testing.T) {
	s := &Spec{RegressionThreshold: RegressionThreshold{ExperimentalBasis: ExperimentalBasis{SamplesExp: 10, SuccessesExp: 9}}}
	_, err := Derive(s, 10, 0.95, Policy("BOGUS"))
	if err == nil {
		t.Fatal("expected error for unknown policy")
	}
	if !pe.Is(err, pe.KindInvalidConfiguration) {
		t.Errorf("expected KindInvalidConfiguration, got %v", err)
	}
}

func TestDeriveInlineClampsToRange(t *testing.T) {
	rt := DeriveInline(1.5)
	if rt.MinPassRate != 1.0 {
		t.Errorf("MinPassRate = %v, want clamped to 1.0", rt.MinPassRate)
	}

	rt = DeriveInline(-0.2)
	if rt.MinPassRate != 0.0 {
		t.Errorf("MinPassRate = %v, want clamped to 0.0", rt.MinPassRate)
	}

	rt = DeriveInline(0.75)
	if rt.MinPassRate != 0.75 {
		t.Errorf("MinPassRate = %v, want 0.75", rt.MinPassRate)
	}
	if rt.Derivation.Method != string(stats.MethodExact) {
		t.Errorf("Method = %s, want EXACT", rt.Derivation.Method)
	}
}

func TestDeriveNormalMethodForLargeModeratePHat(t *testing.T) {
	s := &Spec{
		RegressionThreshold: RegressionThreshold{
			ExperimentalBasis: ExperimentalBasis{SamplesExp: 10000, SuccessesExp: 5000},
		},
	}
	rt, err := Derive(s, 100, 0.95, PolicyDerive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.Derivation.Method != string(stats.MethodNormal) {
		t.Errorf("Method = %s, want NORMAL for large n, moderate pHat", rt.Derivation.Method)
	}
	if rt.MinPassRate <= 0 || rt.MinPassRate >= 1 {
		t.Errorf("MinPassRate = %v, want in (0,1)", rt.MinPassRate)
	}
}

func TestDeriveDefaultPolicyIsDerive(t *testing.T) {
	s := &Spec{
		RegressionThreshold: RegressionThreshold{
			ExperimentalBasis: ExperimentalBasis{SamplesExp: 1000, SuccessesExp: 951},
		},
	}
	withEmpty, err := Derive(s, 100, 0.95, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	withExplicit, err := Derive(s, 100, 0.95, PolicyDerive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if withEmpty.MinPassRate != withExplicit.MinPassRate {
		t.Errorf("empty policy diverged from explicit DERIVE: %v vs %v", withEmpty.MinPassRate, withExplicit.MinPassRate)
	}
}
