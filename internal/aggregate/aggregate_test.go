package aggregate

import (
	"testing"

	"github.com/sawpanic/punit/internal/model"
)

func TestRecordPassAndFailureTally(t *testing.T) {
	agg := New(5)
	agg.RecordPass(model.SampleOutcome{Index: 0, Status: model.StatusPass, DurationMs: 10, TokensConsumed: 3})
	agg.RecordFailure(model.SampleOutcome{Index: 1, Status: model.StatusFail, FailureMessage: "boom", DurationMs: 5, TokensConsumed: 2})

	snap := agg.Snapshot()
	if snap.SamplesExecuted != 2 {
		t.Errorf("SamplesExecuted = %d, want 2", snap.SamplesExecuted)
	}
	if snap.Successes != 1 || snap.Failures != 1 {
		t.Errorf("Successes/Failures = %d/%d, want 1/1", snap.Successes, snap.Failures)
	}
	if snap.ElapsedMs != 15 {
		t.Errorf("ElapsedMs = %d, want 15", snap.ElapsedMs)
	}
	if snap.TokensConsumedMethod != 5 {
		t.Errorf("TokensConsumedMethod = %d, want 5", snap.TokensConsumedMethod)
	}
	if len(snap.ExampleFailures) != 1 || snap.ExampleFailures[0] != "boom" {
		t.Errorf("ExampleFailures = %v, want [boom]", snap.ExampleFailures)
	}
}

func TestExampleFailuresCapped(t *testing.T) {
	agg := New(2)
	for i := 0; i < 5; i++ {
		agg.RecordFailure(model.SampleOutcome{FailureMessage: "fail"})
	}
	snap := agg.Snapshot()
	if snap.Failures != 5 {
		t.Errorf("Failures = %d, want 5", snap.Failures)
	}
	if len(snap.ExampleFailures) != 2 {
		t.Errorf("len(ExampleFailures) = %d, want capped at 2", len(snap.ExampleFailures))
	}
}

func TestExampleFailuresDisabledWhenCapZero(t *testing.T) {
	agg := New(0)
	agg.RecordFailure(model.SampleOutcome{FailureMessage: "fail"})
	snap := agg.Snapshot()
	if len(snap.ExampleFailures) != 0 {
		t.Errorf("ExampleFailures = %v, want none retained", snap.ExampleFailures)
	}
}

func TestExceptionCountsAsFailure(t *testing.T) {
	agg := New(5)
	agg.RecordException(model.SampleOutcome{Status: model.StatusException, FailureMessage: "panic: boom"})
	snap := agg.Snapshot()
	if snap.Failures != 1 {
		t.Errorf("Failures = %d, want 1", snap.Failures)
	}
}

func TestRemaining(t *testing.T) {
	agg := New(5)
	if got := agg.Remaining(10); got != 10 {
		t.Errorf("Remaining = %d, want 10", got)
	}
	for i := 0; i < 3; i++ {
		agg.RecordPass(model.SampleOutcome{})
	}
	if got := agg.Remaining(10); got != 7 {
		t.Errorf("Remaining = %d, want 7", got)
	}
	for i := 0; i < 10; i++ {
		agg.RecordPass(model.SampleOutcome{})
	}
	if got := agg.Remaining(10); got != 0 {
		t.Errorf("Remaining = %d, want 0 (floored)", got)
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	agg := New(5)
	agg.RecordFailure(model.SampleOutcome{FailureMessage: "one"})
	snap := agg.Snapshot()
	snap.ExampleFailures[0] = "mutated"

	snap2 := agg.Snapshot()
	if snap2.ExampleFailures[0] != "one" {
		t.Errorf("internal state leaked through snapshot mutation: %v", snap2.ExampleFailures)
	}
}
