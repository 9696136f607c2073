package config

import "github.com/spf13/pflag"

// RegisterFlags defines every punit.* runtime flag on flags with its
// framework default, so that later calls to flags.Changed report whether the
// operator actually passed an override. The host integration (or
// cmd/punitctl) calls this once before parsing process arguments.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Defaults()
	flags.Int(KeySamples.Flag, d.Samples, "override samples for all probabilistic tests")
	flags.Float64(KeyMinPassRate.Flag, d.MinPassRate, "override minPassRate for all probabilistic tests")
	flags.Float64(KeySamplesMultiplier.Flag, 1.0, "global multiplier applied to samples after resolution")
	flags.Int64(KeyTimeBudgetMs.Flag, d.TimeBudgetMs, "override method time budget in milliseconds")
	flags.Int64(KeyTokenCharge.Flag, d.TokenCharge, "override static per-sample token charge")
	flags.Int64(KeyTokenBudget.Flag, d.TokenBudget, "override method token budget")
	flags.Int64(KeySuiteTimeBudgetMs.Flag, 0, "suite-wide time budget in milliseconds")
	flags.Int64(KeySuiteTokenBudget.Flag, 0, "suite-wide token budget")
	flags.Float64(KeyPacingMaxRps.Flag, 0, "pacing: max samples per second")
	flags.Float64(KeyPacingMaxRpm.Flag, 0, "pacing: max samples per minute")
	flags.Float64(KeyPacingMaxRph.Flag, 0, "pacing: max samples per hour")
	flags.Int64(KeyPacingMinMsPerSample.Flag, 0, "pacing: minimum milliseconds between samples")
	flags.Bool(KeyStatsTransparent.Flag, false, "force ASCII-only explanation rendering")
}
