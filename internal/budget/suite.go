package budget

import (
	"sync"
	"time"

	cb "github.com/sony/gobreaker"
	"github.com/rs/zerolog/log"
)

// suiteMonitor is the process-wide singleton, created lazily on first use and
// never explicitly torn down in-process (it lives until process exit).
var (
	suiteOnce    sync.Once
	suiteMonitor *Monitor
	suiteBreaker *cb.CircuitBreaker
	suiteMu      sync.Mutex
)

// SuiteConfig configures the lazily-created suite monitor and the breaker
// layered in front of it (SPEC_FULL.md supplement: a circuit-broken suite
// monitor, adapted from the donor's infra/breakers.Breaker).
type SuiteConfig struct {
	TimeBudgetMs  int64
	TokenBudget   int64
	TripThreshold int // consecutive exhaustions before the breaker opens
}

// DefaultSuiteConfig returns unlimited time/tokens and a 3-trip threshold,
// mirroring the donor's ReadyToTrip default of 3 consecutive failures.
func DefaultSuiteConfig() SuiteConfig {
	return SuiteConfig{TimeBudgetMs: 0, TokenBudget: 0, TripThreshold: 3}
}

// Suite returns the process-wide suite Monitor, creating it on first call.
// Subsequent calls return the same instance regardless of the config they
// pass — like ClassRegistry, the first caller's configuration wins.
func Suite(cfg SuiteConfig) *Monitor {
	suiteOnce.Do(func() {
		suiteMonitor = NewMonitor(ScopeSuite, cfg.TimeBudgetMs, cfg.TokenBudget)

		threshold := cfg.TripThreshold
		if threshold <= 0 {
			threshold = 3
		}
		settings := cb.Settings{
			Name:     "punit-suite-budget",
			Interval: 60 * time.Second,
			Timeout:  60 * time.Second,
			ReadyToTrip: func(counts cb.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold)
			},
			OnStateChange: func(name string, from, to cb.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
					Msg("suite budget breaker state changed")
			},
		}
		suiteBreaker = cb.NewCircuitBreaker(settings)
	})
	return suiteMonitor
}

// SuiteBreakerOpen reports whether the suite-level circuit breaker is
// currently open — i.e. whether suite budgets have exhausted often enough in
// this process that new probabilistic tests should fail fast without
// executing even their first sample.
func SuiteBreakerOpen() bool {
	suiteMu.Lock()
	defer suiteMu.Unlock()
	if suiteBreaker == nil {
		return false
	}
	return suiteBreaker.State() == cb.StateOpen
}

// RecordSuiteExhaustion feeds one suite-budget exhaustion event into the
// breaker. Call this when a test invocation terminates due to
// SUITE_TIME_BUDGET or SUITE_TOKEN_BUDGET.
func RecordSuiteExhaustion() {
	suiteMu.Lock()
	breaker := suiteBreaker
	suiteMu.Unlock()
	if breaker == nil {
		return
	}
	_, _ = breaker.Execute(func() (interface{}, error) {
		return nil, errSuiteExhausted
	})
}

// RecordSuiteHealthy feeds one successful (non-exhausted) completion into
// the breaker, resetting its consecutive-failure count.
func RecordSuiteHealthy() {
	suiteMu.Lock()
	breaker := suiteBreaker
	suiteMu.Unlock()
	if breaker == nil {
		return
	}
	_, _ = breaker.Execute(func() (interface{}, error) { return nil, nil })
}

// resetSuiteForTest tears down the process-wide suite singleton; test-only.
func resetSuiteForTest() {
	suiteMu.Lock()
	defer suiteMu.Unlock()
	suiteOnce = sync.Once{}
	suiteMonitor = nil
	suiteBreaker = nil
}

var errSuiteExhausted = suiteExhaustedError{}

type suiteExhaustedError struct{}

func (suiteExhaustedError) Error() string { return "suite budget exhausted" }
