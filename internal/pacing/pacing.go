// Package pacing implements the per-test pacing controller (spec.md §4.8):
// a token-bucket limiter per declared rate ceiling (per-second, per-minute,
// per-hour), combined with a declared minimum inter-sample delay into one
// effective wait applied before each sample.
package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/sawpanic/punit/internal/model"
)

// Controller paces sample execution against a test's declared rate ceilings.
// A zero-valued field means "no ceiling at that granularity"; Controller
// composes whichever are set and always additionally enforces MinMsPerSample.
type Controller struct {
	perSecond *rate.Limiter
	perMinute *rate.Limiter
	perHour   *rate.Limiter
	minDelay  time.Duration
}

// New builds a Controller from a test's resolved Pacing configuration. A nil
// cfg (or one with no limits set) yields a no-op controller.
func New(cfg *model.Pacing) *Controller {
	c := &Controller{}
	if cfg == nil {
		return c
	}
	if cfg.MaxPerSecond > 0 {
		c.perSecond = rate.NewLimiter(rate.Limit(cfg.MaxPerSecond), burstFor(cfg.MaxPerSecond))
	}
	if cfg.MaxPerMinute > 0 {
		c.perMinute = rate.NewLimiter(rate.Limit(cfg.MaxPerMinute/60), burstFor(cfg.MaxPerMinute/60))
	}
	if cfg.MaxPerHour > 0 {
		c.perHour = rate.NewLimiter(rate.Limit(cfg.MaxPerHour/3600), burstFor(cfg.MaxPerHour/3600))
	}
	if cfg.MinMsPerSample > 0 {
		c.minDelay = time.Duration(cfg.MinMsPerSample) * time.Millisecond
	}
	return c
}

// burstFor picks a burst size of 1 for sub-1rps limiters so Wait blocks
// exactly one reservation at a time rather than allowing a front-loaded
// burst the declared ceiling didn't intend.
func burstFor(rps float64) int {
	if rps < 1 {
		return 1
	}
	return int(rps)
}

// Wait blocks until every configured ceiling is satisfied and then sleeps the
// full minimum inter-sample delay, or returns ctx's error once ctx is
// cancelled. The limiters are waited on one after another, and minDelay is
// slept on every call, the first included, counted from the end of the
// limiter waits rather than from the previous sample's start; the limiter
// delays and minDelay therefore add up, not only the larger of them applies.
func (c *Controller) Wait(ctx context.Context) error {
	for _, lim := range []*rate.Limiter{c.perSecond, c.perMinute, c.perHour} {
		if lim == nil {
			continue
		}
		if err := lim.Wait(ctx); err != nil {
			return err
		}
	}
	if c.minDelay > 0 {
		timer := time.NewTimer(c.minDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
