// Package verdict implements the verdict decider (spec.md §4.9): turning a
// final aggregate, its termination reason, and the test's onBudgetExhausted
// policy into the statistically qualified pass/fail result.
package verdict

import (
	"fmt"

	"github.com/sawpanic/punit/internal/model"
	"github.com/sawpanic/punit/internal/stats"
)

// Decide produces the final Verdict for a completed or early-terminated test.
//
// A budget-scope termination under the FAIL policy always fails the test,
// regardless of the observed rate at the point of exhaustion — the run is
// treated as inconclusive rather than passing on a partial sample.
// EVALUATE_PARTIAL instead qualifies the partial sample exactly as a
// completed one would.
func Decide(cfg model.Configuration, agg model.AggregatedResults, reason model.TerminationReason) model.Verdict {
	v := model.Verdict{
		ObservedRate:      agg.ObservedRate(),
		RequiredRate:      cfg.MinPassRate,
		TerminationReason: reason,
		SamplesExecuted:   agg.SamplesExecuted,
		ElapsedMs:         agg.ElapsedMs,
		TokensConsumed:    agg.TokensConsumedMethod,
	}

	if reason.IsBudgetScope() && cfg.OnBudgetExhausted == model.OnBudgetFail {
		v.Passed = false
		v.FeasibilityNote = fmt.Sprintf("budget exhausted (%s) before reaching a statistical verdict; onBudgetExhausted=FAIL", reason)
		return v
	}

	// Compare the rate actually observed over samplesExecuted, not successes
	// against a threshold sized for the full declared sample count — a
	// partial run under EVALUATE_PARTIAL qualifies on its own observed rate.
	v.Passed = agg.ObservedRate() >= cfg.MinPassRate

	if !v.Passed {
		feas := stats.EvaluateFeasibility(agg.SamplesExecuted, cfg.MinPassRate, cfg.ThresholdConfidence)
		if !feas.Feasible {
			v.FeasibilityNote = fmt.Sprintf("%d samples cannot provide statistical evidence of a %.4g rate at %.4g confidence; at least %d would be required", agg.SamplesExecuted, cfg.MinPassRate, cfg.ThresholdConfidence, feas.MinimumSamples)
		}
	}

	return v
}
