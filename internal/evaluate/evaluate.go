// Package evaluate implements the early-termination evaluator (spec.md
// §4.7): after every sample, decide whether a test can stop before
// exhausting its configured sample count, and why.
package evaluate

import (
	"github.com/sawpanic/punit/internal/budget"
	"github.com/sawpanic/punit/internal/model"
	"github.com/sawpanic/punit/internal/tokens"
)

// Decision reports whether sampling should stop and, if so, the
// TerminationReason a verdict should carry.
type Decision struct {
	Stop   bool
	Reason model.TerminationReason
}

// Monitors bundles the three nested budget scopes an evaluation checks, in
// the precedence order suite > class > method (spec.md §4.2).
type Monitors struct {
	Suite  *budget.Monitor
	Class  *budget.Monitor
	Method *budget.Monitor
}

// TokenCheck bundles the information needed to pick the right token
// exhaustion test for the recorder's current accumulation mode (spec.md
// §4.3): static mode projects the upcoming sample's charge and terminates
// *before* invoking it if that would exceed the budget; dynamic (and no
// charge declared at all) modes instead test what has already accumulated,
// terminating once it meets or exceeds the budget.
type TokenCheck struct {
	Mode   tokens.Mode
	Charge int64 // static per-sample charge; consulted only when Mode == ModeStatic
}

// Check decides whether to stop sampling given the configuration, the
// running aggregate, and the active budget monitors. Precedence, per
// spec.md §4.7: success-guaranteed, then impossibility, then budget
// exhaustion (suite before class before method) — a statistical verdict
// always preempts a budget-driven one when both would apply on the same
// sample.
func Check(cfg model.Configuration, agg model.AggregatedResults, mon Monitors, tc TokenCheck) Decision {
	required := cfg.RequiredSuccesses()
	remaining := cfg.Samples - agg.SamplesExecuted
	if remaining < 0 {
		remaining = 0
	}

	if agg.Successes >= required {
		return Decision{Stop: true, Reason: model.ReasonSuccessGuaranteed}
	}
	if agg.Successes+remaining < required {
		return Decision{Stop: true, Reason: model.ReasonImpossibility}
	}

	for _, m := range []*budget.Monitor{mon.Suite, mon.Class, mon.Method} {
		if m == nil {
			continue
		}
		if m.HasExhaustedTime() {
			return Decision{Stop: true, Reason: m.TimeReason()}
		}
		if tc.Mode == tokens.ModeStatic {
			if m.HasExhaustedTokens(tc.Charge) {
				return Decision{Stop: true, Reason: m.TokenReason()}
			}
		} else if m.HasReachedTokenLimit() {
			return Decision{Stop: true, Reason: m.TokenReason()}
		}
	}

	if remaining == 0 {
		return Decision{Stop: true, Reason: model.ReasonCompleted}
	}

	return Decision{Stop: false}
}
