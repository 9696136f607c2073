// Package punit is PUnit's top-level entry point: it resolves a
// probabilistic test's configuration, derives its effective threshold,
// drives the sample scheduler under the appropriate budget scopes, and
// hands the final aggregate to the verdict decider and explanation
// builder. Everything below this package is a standalone component;
// RunProbabilisticTest is the wiring that a host test runner (or
// cmd/punitctl) calls.
package punit

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/sawpanic/punit/internal/budget"
	"github.com/sawpanic/punit/internal/config"
	pe "github.com/sawpanic/punit/internal/errors"
	"github.com/sawpanic/punit/internal/explain"
	"github.com/sawpanic/punit/internal/model"
	"github.com/sawpanic/punit/internal/report"
	"github.com/sawpanic/punit/internal/schedule"
	"github.com/sawpanic/punit/internal/spec"
	"github.com/sawpanic/punit/internal/stats"
	"github.com/sawpanic/punit/internal/tokens"
	"github.com/sawpanic/punit/internal/verdict"
)

// Options bundles the optional collaborators a host integration may supply.
// Every field's zero value disables that collaborator (no spec-backed
// derivation, no class-level budget sharing, no metrics/dashboard
// publication), so a caller exercising only the statistical core can pass
// a zero-value Options.
type Options struct {
	Flags *pflag.FlagSet

	Registry         *spec.Registry
	DerivationPolicy spec.Policy

	ClassName     string
	ClassRegistry *budget.ClassRegistry

	Suite *budget.Monitor

	Metrics *report.MetricsRegistry
	Stream  *report.Stream
}

// Result is everything a caller needs to report one test's outcome: the
// qualified verdict and its fully rendered statistical explanation.
type Result struct {
	Verdict     model.Verdict
	Explanation explain.Explanation
}

// RunProbabilisticTest resolves decl into an effective Configuration,
// derives its threshold (from a registered spec's experimental basis, or
// from decl's inline minPassRate when no spec is referenced), drives
// sampleFn under method/class/suite budget scopes, and returns the
// statistically qualified verdict alongside its explanation.
//
// A nil err means sampling ran to some conclusion (pass, fail, or an
// early termination) and Result is populated. A non-nil err means the
// test could not even begin — an unresolvable configuration, an
// unapproved or missing spec, or a tripped suite breaker.
func RunProbabilisticTest(ctx context.Context, useCaseID string, decl model.Configuration, sampleFn schedule.SampleFunc, opts Options) (Result, error) {
	cfg, err := config.Resolve(decl, opts.Flags)
	if err != nil {
		return Result{}, err
	}

	if opts.Suite != nil && budget.SuiteBreakerOpen() {
		return Result{}, pe.New(pe.KindInfeasibleThreshold, "suite budget breaker is open; refusing to start a new probabilistic test")
	}

	threshold, err := resolveThreshold(cfg, opts)
	if err != nil {
		return Result{}, err
	}
	cfg.MinPassRate = threshold.MinPassRate

	if v, ok := checkVerificationFeasibility(cfg); !ok {
		explanation := explain.Build(cfg, threshold, v)
		if opts.Metrics != nil {
			opts.Metrics.RecordVerdict(useCaseID, v)
		}
		return Result{Verdict: v, Explanation: explanation}, nil
	}

	var class *budget.Monitor
	if opts.ClassRegistry != nil && opts.ClassName != "" {
		class = opts.ClassRegistry.Acquire(opts.ClassName, cfg.TimeBudgetMs, cfg.TokenBudget)
		defer opts.ClassRegistry.Release(opts.ClassName)
	}

	scheduled := wrapSampleFn(sampleFn, opts, useCaseID)
	agg, reason := schedule.Run(ctx, cfg, scheduled, schedule.Monitors{Suite: opts.Suite, Class: class})

	if opts.Suite != nil {
		if reason == model.ReasonSuiteTimeBudget || reason == model.ReasonSuiteTokenBudget {
			budget.RecordSuiteExhaustion()
		} else {
			budget.RecordSuiteHealthy()
		}
	}

	v := verdict.Decide(cfg, agg, reason)
	explanation := explain.Build(cfg, threshold, v)

	if opts.Metrics != nil {
		opts.Metrics.RecordVerdict(useCaseID, v)
	}

	return Result{Verdict: v, Explanation: explanation}, nil
}

// resolveThreshold derives the effective RegressionThreshold: from a
// registered spec's experimental basis when cfg.SpecRef names one, or from
// cfg's own inline minPassRate when it does not (spec.md §4.5's
// no-normative-origin path).
func resolveThreshold(cfg model.Configuration, opts Options) (model.RegressionThreshold, error) {
	if cfg.SpecRef == nil || opts.Registry == nil {
		return spec.DeriveInline(cfg.MinPassRate), nil
	}

	s, err := opts.Registry.Get(cfg.SpecRef.UseCaseID, cfg.SpecRef.Version)
	if err != nil {
		return model.RegressionThreshold{}, err
	}

	policy := opts.DerivationPolicy
	if policy == "" {
		policy = spec.PolicyDerive
	}
	return spec.Derive(s, cfg.Samples, cfg.ThresholdConfidence, policy)
}

// checkVerificationFeasibility implements spec.md §4.5's pre-flight gate:
// when a test declares intent=VERIFICATION against a normative threshold
// origin (SLA/SLO/POLICY), its declared sample count must itself be capable
// of evidencing minPassRate — even a zero-failure run of cfg.Samples samples
// has to clear the Wilson lower bound at the configured confidence. If not,
// the test terminates before its first sample with INFEASIBLE_THRESHOLD
// rather than running a statistically meaningless verification.
//
// ok=true means the test is feasible (or the gate doesn't apply) and the
// caller should proceed to schedule samples; ok=false means v is the final
// verdict and the caller must return it without scheduling anything.
func checkVerificationFeasibility(cfg model.Configuration) (v model.Verdict, ok bool) {
	if cfg.Intent != model.IntentVerification {
		return model.Verdict{}, true
	}
	switch cfg.ThresholdOrigin {
	case model.OriginSLA, model.OriginSLO, model.OriginPolicy:
	default:
		return model.Verdict{}, true
	}

	feas := stats.EvaluateFeasibility(cfg.Samples, cfg.MinPassRate, cfg.ThresholdConfidence)
	if feas.Feasible {
		return model.Verdict{}, true
	}

	note := fmt.Sprintf("%d samples cannot provide verification evidence of a %.4g rate at %.4g confidence under a %s threshold; at least %d would be required",
		cfg.Samples, cfg.MinPassRate, cfg.ThresholdConfidence, cfg.ThresholdOrigin, feas.MinimumSamples)

	return model.Verdict{
		Passed:            false,
		RequiredRate:      cfg.MinPassRate,
		TerminationReason: model.ReasonInfeasibleThreshold,
		FeasibilityNote:   note,
	}, false
}

// wrapSampleFn decorates sampleFn so every sample's outcome is also
// published to the live dashboard stream and recorded against the
// Prometheus collectors, both no-ops when the corresponding Options field
// is unset. schedule.Run does not expose individual outcomes to its
// caller, so this is the only point per-sample telemetry can be captured.
func wrapSampleFn(sampleFn schedule.SampleFunc, opts Options, useCaseID string) schedule.SampleFunc {
	if opts.Stream == nil && opts.Metrics == nil {
		return sampleFn
	}
	return func(ctx context.Context, rec *tokens.Recorder) (bool, string, error) {
		start := model.Now()
		pass, failureMessage, err := sampleFn(ctx, rec)
		durationMs := model.Now().Sub(start).Milliseconds()

		status := model.StatusPass
		switch {
		case err != nil:
			status = model.StatusException
		case !pass:
			status = model.StatusFail
		}
		outcome := model.SampleOutcome{
			Status:         status,
			FailureMessage: failureMessage,
			TokensConsumed: rec.CurrentSampleTokens(),
			DurationMs:     durationMs,
		}

		if opts.Stream != nil {
			opts.Stream.PublishSample(useCaseID, outcome)
		}
		if opts.Metrics != nil {
			opts.Metrics.RecordSample(useCaseID, outcome)
		}

		return pass, failureMessage, err
	}
}
