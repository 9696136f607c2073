package spec

import (
	"fmt"
	"math"

	pe "github.com/sawpanic/punit/internal/errors"
	"github.com/sawpanic/punit/internal/model"
	"github.com/sawpanic/punit/internal/stats"
)

// Policy selects how a test's effective minPassRate is computed from a
// spec's experimental basis, per spec.md §4.5.
type Policy string

const (
	PolicyDerive                 Policy = "DERIVE"
	PolicyRaw                    Policy = "RAW"
	PolicyRequireMatchingSamples Policy = "REQUIRE_MATCHING_SAMPLES"
)

// sampleSizeTolerancePct is the "small tolerance" spec.md leaves unspecified
// for REQUIRE_MATCHING_SAMPLES; 5% of n_exp, minimum 1, matches the
// donor's habit of tolerance-banding percentage thresholds (e.g. gates'
// ±2% depth range).
const sampleSizeTolerancePct = 0.05

// Derive computes the effective minPassRate for a test given a spec's basis,
// the test's own sample count and confidence level, and a derivation
// policy. RAW uses the spec's minPassRate verbatim; REQUIRE_MATCHING_SAMPLES
// fails if nTest differs materially from nExp; DERIVE (the default) computes
// a one-sided Wilson or Normal lower bound at confidenceLevel.
func Derive(s *Spec, nTest int, confidenceLevel float64, policy Policy) (model.RegressionThreshold, error) {
	basis := s.RegressionThreshold.ExperimentalBasis

	switch policy {
	case PolicyRaw:
		return model.RegressionThreshold{
			Basis: model.BasisExperimental{
				SamplesExp:    basis.SamplesExp,
				SuccessesExp:  basis.SuccessesExp,
				ObservedRate:  basis.ObservedRate,
				StandardError: basis.StandardError,
			},
			SamplesTest:     nTest,
			ConfidenceLevel: confidenceLevel,
			MinPassRate:     clamp01(s.Requirements.MinPassRate),
			Derivation:      model.Derivation{Method: string(stats.MethodExact)},
		}, nil

	case PolicyRequireMatchingSamples:
		tolerance := int(math.Ceil(float64(basis.SamplesExp) * sampleSizeTolerancePct))
		if tolerance < 1 {
			tolerance = 1
		}
		diff := nTest - basis.SamplesExp
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			return model.RegressionThreshold{}, pe.New(pe.KindSampleSizeMismatch,
				fmt.Sprintf("test samples %d differ from experimental basis %d by more than tolerance %d", nTest, basis.SamplesExp, tolerance))
		}
		fallthrough

	case PolicyDerive, "":
		return deriveWilsonOrNormal(basis, nTest, confidenceLevel), nil

	default:
		return model.RegressionThreshold{}, pe.New(pe.KindInvalidConfiguration, fmt.Sprintf("unknown derivation policy %q", policy))
	}
}

// The lower bound is computed against the experimental basis's own sample
// size (basis.SamplesExp, i.e. n_exp), not nTest: the threshold is a claim
// about the rate the basis itself supports, independent of how many
// samples the test being gated against it happens to run.
func deriveWilsonOrNormal(basis ExperimentalBasis, nTest int, confidenceLevel float64) model.RegressionThreshold {
	pHat := basis.ObservedRate
	if basis.SamplesExp > 0 {
		pHat = float64(basis.SuccessesExp) / float64(basis.SamplesExp)
	}

	method := stats.SelectMethod(pHat, basis.SamplesExp)
	z := stats.ZScore(confidenceLevel)

	var minPassRate float64
	switch method {
	case stats.MethodNormal:
		minPassRate = stats.NormalLowerBound(pHat, basis.SamplesExp, z)
	default:
		minPassRate = stats.WilsonLowerBound(pHat, basis.SamplesExp, z)
	}

	testSE := stats.StandardError(pHat, nTest)

	return model.RegressionThreshold{
		Basis: model.BasisExperimental{
			SamplesExp:    basis.SamplesExp,
			SuccessesExp:  basis.SuccessesExp,
			ObservedRate:  pHat,
			StandardError: basis.StandardError,
		},
		SamplesTest:     nTest,
		ConfidenceLevel: confidenceLevel,
		MinPassRate:     clamp01(minPassRate),
		Derivation: model.Derivation{
			Method:            string(method),
			ZScore:            z,
			TestStandardError: testSE,
		},
	}
}

// DeriveInline handles the no-spec, no-normative-origin path: when
// thresholdOrigin is UNSPECIFIED and no spec reference is configured, a test
// has no normative threshold to derive, so its inline minPassRate applies
// directly (spec.md §4.5).
func DeriveInline(minPassRate float64) model.RegressionThreshold {
	return model.RegressionThreshold{
		MinPassRate: clamp01(minPassRate),
		Derivation:  model.Derivation{Method: string(stats.MethodExact)},
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
