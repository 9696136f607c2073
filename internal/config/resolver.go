// Package config resolves a probabilistic test's Configuration from four
// sources in fixed precedence — runtime flag, environment variable,
// declaration (annotation) value, framework default — the way the donor's
// internal/infrastructure/db.LoadAppConfig layers YAML, env-var overrides,
// and hardcoded defaults.
package config

import (
	"math"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	pe "github.com/sawpanic/punit/internal/errors"
	"github.com/sawpanic/punit/internal/model"
)

// Defaults returns the framework defaults, the lowest-precedence source.
func Defaults() model.Configuration {
	return model.Configuration{
		Samples:             1,
		MinPassRate:         0.0,
		ThresholdConfidence: 0.95,
		ThresholdOrigin:     model.OriginUnspecified,
		Intent:              model.IntentVerification,
		TimeBudgetMs:        0,
		TokenCharge:         0,
		TokenBudget:         0,
		OnBudgetExhausted:   model.OnBudgetFail,
		OnException:         model.OnExceptionFailSample,
		MaxExampleFailures:  5,
	}
}

// Resolve merges decl (the declaration/annotation-sourced configuration)
// with runtime flags and environment variables per spec.md §4.4 precedence,
// applies the global samplesMultiplier, and validates the result. flags may
// be nil, meaning no runtime-flag source is available.
func Resolve(decl model.Configuration, flags *pflag.FlagSet) (model.Configuration, error) {
	cfg := decl

	cfg.Samples = resolveInt(flags, KeySamples, cfg.Samples)
	cfg.MinPassRate = resolveFloat(flags, KeyMinPassRate, cfg.MinPassRate)
	cfg.TimeBudgetMs = resolveInt64(flags, KeyTimeBudgetMs, cfg.TimeBudgetMs)
	cfg.TokenCharge = resolveInt64(flags, KeyTokenCharge, cfg.TokenCharge)
	cfg.TokenBudget = resolveInt64(flags, KeyTokenBudget, cfg.TokenBudget)

	multiplier := resolveFloat(flags, KeySamplesMultiplier, 1.0)
	cfg.Samples = effectiveSamples(cfg.Samples, multiplier)

	if cfg.Pacing != nil {
		p := *cfg.Pacing
		p.MaxPerSecond = resolveFloat(flags, KeyPacingMaxRps, p.MaxPerSecond)
		p.MaxPerMinute = resolveFloat(flags, KeyPacingMaxRpm, p.MaxPerMinute)
		p.MaxPerHour = resolveFloat(flags, KeyPacingMaxRph, p.MaxPerHour)
		p.MinMsPerSample = resolveInt64(flags, KeyPacingMinMsPerSample, p.MinMsPerSample)
		cfg.Pacing = &p
	}

	if err := Validate(cfg); err != nil {
		return model.Configuration{}, err
	}
	return cfg, nil
}

// effectiveSamples applies the global samplesMultiplier: ceil(samples *
// multiplier), floored at 1.
func effectiveSamples(samples int, multiplier float64) int {
	if multiplier <= 0 {
		multiplier = 1.0
	}
	scaled := math.Ceil(float64(samples) * multiplier)
	if scaled < 1 {
		scaled = 1
	}
	return int(scaled)
}

func flagChanged(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	f := flags.Lookup(name)
	return f != nil && f.Changed
}

func resolveInt(flags *pflag.FlagSet, key Key, fallback int) int {
	if flagChanged(flags, key.Flag) {
		if v, err := flags.GetInt(key.Flag); err == nil {
			return v
		}
	}
	if raw := os.Getenv(key.Env); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func resolveInt64(flags *pflag.FlagSet, key Key, fallback int64) int64 {
	if flagChanged(flags, key.Flag) {
		if v, err := flags.GetInt64(key.Flag); err == nil {
			return v
		}
	}
	if raw := os.Getenv(key.Env); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
	}
	return fallback
}

func resolveFloat(flags *pflag.FlagSet, key Key, fallback float64) float64 {
	if flagChanged(flags, key.Flag) {
		if v, err := flags.GetFloat64(key.Flag); err == nil {
			return v
		}
	}
	if raw := os.Getenv(key.Env); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return fallback
}

func resolveBool(flags *pflag.FlagSet, key Key, fallback bool) bool {
	if flagChanged(flags, key.Flag) {
		if v, err := flags.GetBool(key.Flag); err == nil {
			return v
		}
	}
	if raw := os.Getenv(key.Env); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	return fallback
}

// StatsTransparent resolves the punit.stats.transparent flag — whether the
// explanation renderer should prefer ASCII over Unicode regardless of
// terminal detection.
func StatsTransparent(flags *pflag.FlagSet) bool {
	return resolveBool(flags, KeyStatsTransparent, false)
}

// Validate rejects a resolved configuration per spec.md §4.4's InvalidConfiguration
// rules, checked at test-discovery time before any sample runs.
func Validate(cfg model.Configuration) error {
	if cfg.Samples <= 0 {
		return pe.New(pe.KindInvalidConfiguration, "samples must be >= 1")
	}
	if cfg.MinPassRate < 0 || cfg.MinPassRate > 1 {
		return pe.New(pe.KindInvalidConfiguration, "minPassRate must be in [0,1]")
	}
	if cfg.ThresholdConfidence <= 0 || cfg.ThresholdConfidence >= 1 {
		return pe.New(pe.KindInvalidConfiguration, "thresholdConfidence must be in (0,1)")
	}
	if cfg.TimeBudgetMs < 0 {
		return pe.New(pe.KindInvalidConfiguration, "timeBudgetMs must be >= 0")
	}
	if cfg.TokenCharge < 0 {
		return pe.New(pe.KindInvalidConfiguration, "tokenCharge must be >= 0")
	}
	if cfg.TokenBudget < 0 {
		return pe.New(pe.KindInvalidConfiguration, "tokenBudget must be >= 0")
	}
	if cfg.TokenBudget > 0 && cfg.TokenCharge > cfg.TokenBudget {
		return pe.New(pe.KindInvalidConfiguration, "tokenCharge must not exceed a positive tokenBudget")
	}
	if cfg.MaxExampleFailures < 0 {
		return pe.New(pe.KindInvalidConfiguration, "maxExampleFailures must be >= 0")
	}
	if cfg.SpecRef != nil && cfg.MinPassRate > 0 {
		// Conflict between spec reference and inline minPassRate: a warning,
		// not a validation failure — the spec value wins downstream in the
		// threshold deriver (spec.md §4.4).
	}
	return nil
}
