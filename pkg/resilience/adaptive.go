package resilience

import (
	"context"
	"sync"
	"time"
)

// AdaptiveOpts configures the adaptive delay limiter.
type AdaptiveOpts struct {
	// MinDelay is the delay applied after the first rate-limit observation.
	MinDelay time.Duration
	// MaxDelay caps the grown delay.
	MaxDelay time.Duration
	// Growth multiplies the delay on each rate-limit observation.
	Growth float64
	// Decay multiplies the delay after DecayAfter consecutive successes.
	Decay float64
	// DecayAfter is the number of consecutive successes before decay.
	DecayAfter int
}

// DefaultAdaptiveOpts provides sensible defaults.
var DefaultAdaptiveOpts = AdaptiveOpts{
	MinDelay:   time.Second,
	MaxDelay:   5 * time.Minute,
	Growth:     2.0,
	Decay:      0.5,
	DecayAfter: 10,
}

// AdaptiveLimiter grows an inter-request delay multiplicatively on observed
// rate limiting and decays it back toward zero on sustained success. The
// current delay is applied before each outbound request via Wait.
type AdaptiveLimiter struct {
	mu        sync.Mutex
	opts      AdaptiveOpts
	delay     time.Duration
	successes int
	now       func() time.Time
}

// NewAdaptiveLimiter creates an adaptive limiter.
func NewAdaptiveLimiter(opts AdaptiveOpts) *AdaptiveLimiter {
	if opts.MinDelay <= 0 {
		opts.MinDelay = DefaultAdaptiveOpts.MinDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultAdaptiveOpts.MaxDelay
	}
	if opts.Growth <= 1 {
		opts.Growth = DefaultAdaptiveOpts.Growth
	}
	if opts.Decay <= 0 || opts.Decay >= 1 {
		opts.Decay = DefaultAdaptiveOpts.Decay
	}
	if opts.DecayAfter <= 0 {
		opts.DecayAfter = DefaultAdaptiveOpts.DecayAfter
	}
	return &AdaptiveLimiter{opts: opts, now: time.Now}
}

// Delay returns the currently applied inter-request delay.
func (a *AdaptiveLimiter) Delay() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.delay
}

// Wait sleeps for the current delay, or returns early on ctx cancellation.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	d := a.Delay()
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ObserveRateLimit grows the delay. retryAfter, when positive, is honored as
// a floor (the server knows best how long to back off).
func (a *AdaptiveLimiter) ObserveRateLimit(retryAfter time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.successes = 0
	next := time.Duration(float64(a.delay) * a.opts.Growth)
	if next < a.opts.MinDelay {
		next = a.opts.MinDelay
	}
	if retryAfter > next {
		next = retryAfter
	}
	if next > a.opts.MaxDelay {
		next = a.opts.MaxDelay
	}
	a.delay = next
}

// ObserveSuccess decays the delay after a run of consecutive successes.
func (a *AdaptiveLimiter) ObserveSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.delay == 0 {
		return
	}
	a.successes++
	if a.successes < a.opts.DecayAfter {
		return
	}
	a.successes = 0
	a.delay = time.Duration(float64(a.delay) * a.opts.Decay)
	if a.delay < 10*time.Millisecond {
		a.delay = 0
	}
}
