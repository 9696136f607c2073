// Package aggregate implements the sample aggregator (spec.md §4.6): the
// thread-confined running tally a scheduler updates after every sample
// completes, plus the bounded FIFO of failure messages surfaced in a
// verdict's explanation.
package aggregate

import (
	"sync"

	"github.com/sawpanic/punit/internal/model"
)

// Aggregator accumulates SampleOutcomes into an AggregatedResults. A single
// Aggregator is owned by one test invocation; RecordXxx calls are safe to
// call from the scheduler's single sampling goroutine, and Snapshot is safe
// to call concurrently from a reporting goroutine (e.g. the live dashboard
// stream), guarded by a mutex.
type Aggregator struct {
	mu                 sync.Mutex
	results            model.AggregatedResults
	maxExampleFailures int
}

// New creates an Aggregator that retains at most maxExampleFailures example
// failure messages (0 means unbounded retention is disabled entirely — no
// messages kept).
func New(maxExampleFailures int) *Aggregator {
	return &Aggregator{maxExampleFailures: maxExampleFailures}
}

// RecordPass tallies a passing sample.
func (a *Aggregator) RecordPass(o model.SampleOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results.SamplesExecuted++
	a.results.Successes++
	a.accumulate(o)
}

// RecordFailure tallies a failing sample, retaining its failure message up to
// the configured cap.
func (a *Aggregator) RecordFailure(o model.SampleOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results.SamplesExecuted++
	a.results.Failures++
	if a.maxExampleFailures > 0 && len(a.results.ExampleFailures) < a.maxExampleFailures && o.FailureMessage != "" {
		a.results.ExampleFailures = append(a.results.ExampleFailures, o.FailureMessage)
	}
	a.accumulate(o)
}

// RecordException tallies a sample that raised a non-assertion exception,
// counted as a failure for rate purposes (spec.md §4.4's FAIL_SAMPLE policy).
func (a *Aggregator) RecordException(o model.SampleOutcome) {
	a.RecordFailure(o)
}

func (a *Aggregator) accumulate(o model.SampleOutcome) {
	a.results.ElapsedMs += o.DurationMs
	a.results.TokensConsumedMethod += o.TokensConsumed
}

// Snapshot returns a copy of the current tally, safe to read without racing
// further RecordXxx calls.
func (a *Aggregator) Snapshot() model.AggregatedResults {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := a.results
	cp.ExampleFailures = append([]string(nil), a.results.ExampleFailures...)
	return cp
}

// Remaining returns how many of the configured total samples have yet to run.
func (a *Aggregator) Remaining(total int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	remaining := total - a.results.SamplesExecuted
	if remaining < 0 {
		return 0
	}
	return remaining
}
