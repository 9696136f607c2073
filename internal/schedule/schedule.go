// Package schedule implements the sample scheduler (spec.md §4.8): the
// N-sample loop that, for each iteration, paces the next invocation,
// invokes the sample body, records its token charge and duration against
// every active budget scope, tallies the outcome, and consults the
// early-termination evaluator before continuing.
package schedule

import (
	"context"
	"time"

	"github.com/sawpanic/punit/internal/aggregate"
	"github.com/sawpanic/punit/internal/budget"
	"github.com/sawpanic/punit/internal/evaluate"
	"github.com/sawpanic/punit/internal/model"
	"github.com/sawpanic/punit/internal/pacing"
	"github.com/sawpanic/punit/internal/tokens"
)

// SampleFunc is one invocation of the test body. rec lets the body record
// dynamic token consumption (spec.md §4.3); a body that never calls Record
// falls back to the recorder's configured static charge. A non-nil err is
// treated as a sample exception, subject to the configuration's
// onException policy, not an assertion failure.
type SampleFunc func(ctx context.Context, rec *tokens.Recorder) (pass bool, failureMessage string, err error)

// Monitors bundles the budget scopes active for one scheduled run.
type Monitors struct {
	Suite *budget.Monitor
	Class *budget.Monitor
}

// Run drives cfg.Samples (at most) invocations of sampleFn, returning the
// final aggregate and the reason sampling stopped.
func Run(ctx context.Context, cfg model.Configuration, sampleFn SampleFunc, mon Monitors) (model.AggregatedResults, model.TerminationReason) {
	agg := aggregate.New(cfg.MaxExampleFailures)
	method := budget.NewMonitor(budget.ScopeMethod, cfg.TimeBudgetMs, cfg.TokenBudget)
	rec := tokens.NewRecorder(cfg.TokenCharge)
	pacer := pacing.New(cfg.Pacing)

	for {
		snapshot := agg.Snapshot()
		tc := evaluate.TokenCheck{Mode: rec.Mode(), Charge: cfg.TokenCharge}
		decision := evaluate.Check(cfg, snapshot, evaluate.Monitors{Suite: mon.Suite, Class: mon.Class, Method: method}, tc)
		if decision.Stop {
			return agg.Snapshot(), decision.Reason
		}

		if err := pacer.Wait(ctx); err != nil {
			return agg.Snapshot(), model.ReasonAbortedByException
		}

		rec.ResetForNextSample()
		start := time.Now()
		pass, failureMessage, sampleErr := sampleFn(ctx, rec)
		durationMs := time.Since(start).Milliseconds()
		charged := rec.CurrentSampleTokens()

		for _, m := range []*budget.Monitor{mon.Suite, mon.Class, method} {
			if m == nil {
				continue
			}
			m.UpdateElapsed(durationMs)
			m.AddTokens(charged)
		}

		outcome := model.SampleOutcome{
			Index:          snapshot.SamplesExecuted,
			DurationMs:     durationMs,
			TokensConsumed: charged,
		}

		switch {
		case sampleErr != nil:
			outcome.Status = model.StatusException
			outcome.FailureMessage = sampleErr.Error()
			agg.RecordException(outcome)
			if cfg.OnException == model.OnExceptionAbortTest {
				return agg.Snapshot(), model.ReasonAbortedByException
			}
		case pass:
			outcome.Status = model.StatusPass
			agg.RecordPass(outcome)
		default:
			outcome.Status = model.StatusFail
			outcome.FailureMessage = failureMessage
			agg.RecordFailure(outcome)
		}
	}
}
