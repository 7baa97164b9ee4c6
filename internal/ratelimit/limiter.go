// Package ratelimit paces outgoing requests and slows down when the target
// signals throttling.
package ratelimit

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fluxfuzzer/bypassfuzzer/internal/logging"
)

const (
	// DetectionWindow is the number of consecutive throttle responses that trigger a backoff.
	DetectionWindow = 5
	// SlowdownFactor divides the current delay on backoff.
	SlowdownFactor = 0.5
	// MinDelay is the delay applied when backing off from unlimited.
	MinDelay = 100 * time.Millisecond
	// ResetAfter is the number of consecutive non-throttle responses that clear the throttle count.
	ResetAfter = 50
)

// State is a snapshot of the limiter.
type State struct {
	RPS           int           // Configured or derived requests per second, 0 = unlimited
	Delay         time.Duration // Current minimum spacing between sends
	LastRequest   time.Time     // Zero before the first paced send
	ThrottleCount int
	SuccessCount  int
}

// Limiter enforces a minimum spacing between sends and doubles it after
// repeated throttle responses. It works at millisecond resolution.
//
// A Limiter is meant for one sequential sender. ReportResponse may be called
// from another goroutine.
type Limiter struct {
	mu sync.Mutex

	clock  Clock
	log    *logging.Logger
	bucket *rate.Limiter // one token, refilled once per delay

	rps           int
	delay         time.Duration
	maxDelay      time.Duration
	last          time.Time
	throttleCodes []int
	autoThrottle  bool
	throttleCount int
	successCount  int
}

// New creates a Limiter with no pacing. A nil clock means RealClock.
func New(clock Clock, log *logging.Logger) *Limiter {
	if clock == nil {
		clock = RealClock{}
	}
	return &Limiter{clock: clock, log: log, bucket: rate.NewLimiter(rate.Every(time.Second), 1)}
}

// Configure sets the rate (0 = unlimited), the status codes treated as
// throttling, and whether auto-throttle is on. Counters are reset.
func (l *Limiter) Configure(rps int, throttleCodes []int, autoThrottle bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rps = max(rps, 0)
	l.delay = delayFor(rps)
	l.retune()
	l.throttleCodes = slices.Clone(throttleCodes)
	l.autoThrottle = autoThrottle
	l.throttleCount = 0
	l.successCount = 0
}

// UpdateRate changes the rate and keeps the counters.
func (l *Limiter) UpdateRate(rps int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rps = max(rps, 0)
	l.delay = delayFor(rps)
	l.retune()
}

// SetMaxDelay caps the delay reached by backoff. Zero removes the cap.
func (l *Limiter) SetMaxDelay(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxDelay = max(d, 0)
}

func delayFor(rps int) time.Duration {
	if rps <= 0 {
		return 0
	}
	return time.Duration(1000/rps) * time.Millisecond
}

// Wait blocks until at least the current delay has passed since the previous
// paced send, then records now as the last send. It returns early with the
// context error when ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	if l.delay <= 0 {
		l.mu.Unlock()
		return nil
	}
	now := l.clock.Now().Truncate(time.Millisecond)
	r := l.bucket.ReserveN(now, 1)
	wait := r.DelayFrom(now).Round(time.Millisecond)
	l.mu.Unlock()

	if wait > 0 {
		if err := l.clock.Sleep(ctx, wait); err != nil {
			r.CancelAt(l.clock.Now())
			return err
		}
	}

	l.mu.Lock()
	l.last = l.clock.Now().Truncate(time.Millisecond)
	l.mu.Unlock()
	return nil
}

// retune moves the bucket to the current delay, counting from the last
// paced send. Unlimited pacing leaves the bucket untouched since Wait skips
// it. Callers hold mu.
func (l *Limiter) retune() {
	if l.delay <= 0 {
		return
	}
	at := l.last
	if at.IsZero() {
		at = l.clock.Now().Truncate(time.Millisecond)
	}
	l.bucket.SetLimitAt(at, rate.Every(l.delay))
}

// ReportResponse feeds one observed status code into the backoff logic.
func (l *Limiter) ReportResponse(status int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.autoThrottle || len(l.throttleCodes) == 0 {
		return
	}

	if !slices.Contains(l.throttleCodes, status) {
		l.successCount++
		if l.successCount >= ResetAfter {
			l.throttleCount = 0
		}
		return
	}

	l.throttleCount++
	l.successCount = 0
	if l.throttleCount >= DetectionWindow {
		l.backoff()
		l.throttleCount = 0
	}
}

func (l *Limiter) backoff() {
	if l.delay <= 0 {
		l.delay = MinDelay
	} else {
		l.delay = time.Duration(float64(l.delay) / SlowdownFactor)
	}
	if l.maxDelay > 0 && l.delay > l.maxDelay {
		l.delay = l.maxDelay
	}
	l.retune()
	l.rps = max(1, int(time.Second/l.delay))
	l.log.Warn("auto-throttle activated",
		"throttle_codes", l.throttleCodes,
		"rps", l.rps,
		"delay_ms", l.delay.Milliseconds())
}

// Delay returns the current minimum spacing.
func (l *Limiter) Delay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delay
}

// RPS returns the current requests-per-second figure. After a backoff it is
// derived from the delay and is informational only.
func (l *Limiter) RPS() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rps
}

// Snapshot returns the full limiter state.
func (l *Limiter) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		RPS:           l.rps,
		Delay:         l.delay,
		LastRequest:   l.last,
		ThrottleCount: l.throttleCount,
		SuccessCount:  l.successCount,
	}
}
