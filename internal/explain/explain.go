// Package explain implements the explanation builder and renderer (spec.md
// §4.10): a statistical explanation attached to every verdict, framing the
// test's hypothesis, the threshold's provenance, and any caveats a reader
// should weigh before trusting the number.
package explain

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/sawpanic/punit/internal/model"
)

const defaultWidth = 78

// Explanation is the fully pre-computed, render-ready statistical account of
// one test's verdict.
type Explanation struct {
	Hypothesis string
	Threshold  model.RegressionThreshold
	Verdict    model.Verdict
	Caveats    []string
}

// hypothesisTable frames (origin, intent) pairs into the sentence a reader
// needs to interpret a pass/fail correctly — an SLA-origin verification test
// reads very differently from an empirical-origin smoke test.
var hypothesisTable = map[model.ThresholdOrigin]map[model.Intent]string{
	model.OriginSLA: {
		model.IntentVerification: "This test verifies compliance with a contractual SLA: failure indicates a breach, not mere drift.",
		model.IntentSmoke:        "This smoke test checks gross SLA compliance only; a pass is not a full verification.",
	},
	model.OriginSLO: {
		model.IntentVerification: "This test verifies an internal SLO target: failure indicates the subject has regressed below an agreed operating bar.",
		model.IntentSmoke:        "This smoke test spot-checks an SLO target; treat a pass as reassurance, not proof.",
	},
	model.OriginPolicy: {
		model.IntentVerification: "This test verifies a declared policy threshold, set by decision rather than measurement.",
		model.IntentSmoke:        "This smoke test spot-checks a declared policy threshold.",
	},
	model.OriginEmpirical: {
		model.IntentVerification: "This test verifies that behavior has not regressed below a rate previously observed empirically.",
		model.IntentSmoke:        "This smoke test spot-checks for regression against a previously observed empirical rate.",
	},
	model.OriginUnspecified: {
		model.IntentVerification: "This test verifies an inline threshold with no declared normative origin; interpret the bar as the author's own judgment call.",
		model.IntentSmoke:        "This smoke test checks an inline threshold with no declared normative origin.",
	},
}

func hypothesisFor(origin model.ThresholdOrigin, intent model.Intent) string {
	byOrigin, ok := hypothesisTable[origin]
	if !ok {
		byOrigin = hypothesisTable[model.OriginUnspecified]
	}
	if s, ok := byOrigin[intent]; ok {
		return s
	}
	return byOrigin[model.IntentVerification]
}

// Build assembles an Explanation from a test's resolved configuration, its
// derived (or inline) threshold, and its final verdict.
func Build(cfg model.Configuration, threshold model.RegressionThreshold, v model.Verdict) Explanation {
	return Explanation{
		Hypothesis: hypothesisFor(cfg.ThresholdOrigin, cfg.Intent),
		Threshold:  threshold,
		Verdict:    v,
		Caveats:    caveatsFor(cfg, threshold, v),
	}
}

// caveatsFor enumerates, in a fixed priority order, the caveats a reader
// should weigh. Only caveats that actually apply are included.
func caveatsFor(cfg model.Configuration, threshold model.RegressionThreshold, v model.Verdict) []string {
	var c []string

	if v.TerminationReason.IsBudgetScope() {
		c = append(c, fmt.Sprintf("Sampling stopped early due to budget exhaustion (%s); the verdict may reflect fewer samples than configured.", v.TerminationReason))
	}
	if v.TerminationReason == model.ReasonSuccessGuaranteed {
		c = append(c, "Sampling stopped early because the required number of successes was already mathematically guaranteed.")
	}
	if v.TerminationReason == model.ReasonImpossibility {
		c = append(c, "Sampling stopped early because passing had already become mathematically impossible.")
	}
	if v.TerminationReason == model.ReasonAbortedByException {
		c = append(c, fmt.Sprintf("Sampling was aborted (%s) before the configured sample count was reached; the verdict covers only the samples that ran.", v.TerminationReason))
	}
	if v.SamplesExecuted < 30 {
		c = append(c, fmt.Sprintf("Only %d samples were executed; small-sample estimates carry wide uncertainty.", v.SamplesExecuted))
	}
	if threshold.Derivation.Method != "" {
		c = append(c, fmt.Sprintf("The required rate was derived using the %s method at %.4g confidence.", threshold.Derivation.Method, threshold.ConfidenceLevel))
	}
	if cfg.ThresholdOrigin == model.OriginUnspecified {
		c = append(c, "No declared threshold origin is attached to this test; the bar is an inline judgment call, not a derived or normative one.")
	}
	if v.FeasibilityNote != "" {
		c = append(c, v.FeasibilityNote)
	}

	return c
}

// Render formats an Explanation as fixed-width text suitable for a terminal
// or log line, wrapping to the terminal's detected width (falling back to
// defaultWidth when not attached to a TTY).
func Render(e Explanation) string {
	width := detectWidth()

	var b strings.Builder
	status := "FAIL"
	if e.Verdict.Passed {
		status = "PASS"
	}

	fmt.Fprintf(&b, "%s  observed=%.4g  required=%.4g  samples=%d\n",
		status, e.Verdict.ObservedRate, e.Verdict.RequiredRate, e.Verdict.SamplesExecuted)
	b.WriteString(strings.Repeat("-", width))
	b.WriteString("\n")
	b.WriteString(wrap(e.Hypothesis, width))
	b.WriteString("\n")

	if len(e.Caveats) > 0 {
		b.WriteString("\nCaveats:\n")
		for _, c := range e.Caveats {
			b.WriteString(wrap("  - "+c, width))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func detectWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	if w > defaultWidth {
		return defaultWidth
	}
	return w
}

// wrap greedily word-wraps s to width, preserving a leading indent on
// continuation lines that matches s's own leading whitespace.
func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	indent := ""
	for _, r := range s {
		if r != ' ' {
			break
		}
		indent += " "
	}

	words := strings.Fields(s)
	if len(words) == 0 {
		return s
	}

	var lines []string
	line := indent + words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = indent + w
			continue
		}
		line += " " + w
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}
