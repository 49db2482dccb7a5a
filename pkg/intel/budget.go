// Package intel implements the matching-aggregation-grading engine: it
// fans market analyses out across source adapters under a shared call
// budget, combines validated estimates into a consensus and grades the
// divergence against the market's own price.
package intel

import (
	"time"

	"golang.org/x/time/rate"
)

// Budget is the single arbitration point for the outbound source-call
// budget shared by all concurrent pipelines. Acquisition never blocks:
// when the window is exhausted the caller gets the wait instead, so the
// orchestrator can stop admitting work and surface a retry-after.
type Budget struct {
	lim *rate.Limiter
}

// NewBudget creates a budget of perSecond calls with the given burst.
func NewBudget(perSecond float64, burst int) *Budget {
	return &Budget{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Acquire claims n call tokens. It returns (0, true) on success, or the
// duration after which the claim would succeed and false when the budget
// is exhausted. The failed reservation is released, not queued.
func (b *Budget) Acquire(n int) (time.Duration, bool) {
	now := time.Now()
	r := b.lim.ReserveN(now, n)
	if !r.OK() {
		// n exceeds the burst ceiling; report the time n tokens take to refill.
		return time.Duration(float64(n) / float64(b.lim.Limit()) * float64(time.Second)), false
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return delay, false
	}
	return 0, true
}
