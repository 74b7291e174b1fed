// Package ratelimit implements the adaptive token-bucket pacing used against
// fragile upstream threat portals: steady throughput under nominal
// conditions, multiplicative back-off under distress.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Defaults mirror the values REGTECH collection has run against in
// production: conservative enough to avoid account lockout, fast enough to
// finish a full sweep inside a scheduler tick.
const (
	DefaultInitialRate = 2.0
	DefaultMinRate     = 0.5
	DefaultMaxRate     = 5.0
	DefaultBurstSize   = 5
	DefaultBackoffBase = 2.0
	DefaultMaxBackoff  = 300 * time.Second

	successStreakThreshold = 10
	minSleep               = 10 * time.Millisecond
)

// Limiter is a thread-safe adaptive token bucket. A zero value is not usable;
// construct with New.
type Limiter struct {
	mu sync.Mutex

	rate      float64
	minRate   float64
	maxRate   float64
	burstSize float64

	backoffBase float64
	maxBackoff  time.Duration

	tokens     float64
	lastRefill time.Time

	failureCount   int
	currentBackoff time.Duration

	successStreak int
	failureStreak int

	totalRequests int64
	totalWaits    int64
}

// Option configures a Limiter at construction time.
type Option func(*Limiter)

// WithRate sets the initial/min/max request rate in requests per second.
func WithRate(initial, min, max float64) Option {
	return func(l *Limiter) {
		l.rate = initial
		l.minRate = min
		l.maxRate = max
	}
}

// WithBurst sets the maximum number of tokens the bucket can hold.
func WithBurst(n int) Option {
	return func(l *Limiter) { l.burstSize = float64(n) }
}

// WithBackoff sets the exponential back-off base and ceiling.
func WithBackoff(base float64, max time.Duration) Option {
	return func(l *Limiter) {
		l.backoffBase = base
		l.maxBackoff = max
	}
}

// New constructs an adaptive rate limiter with the REGTECH defaults, adjusted
// by any supplied options.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		rate:        DefaultInitialRate,
		minRate:     DefaultMinRate,
		maxRate:     DefaultMaxRate,
		burstSize:   DefaultBurstSize,
		backoffBase: DefaultBackoffBase,
		maxBackoff:  DefaultMaxBackoff,
		lastRefill:  time.Now(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.tokens = l.burstSize
	return l
}

func (l *Limiter) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.tokens = min(l.burstSize, l.tokens+elapsed*l.rate)
	l.lastRefill = now
}

// Acquire blocks until n tokens are available, the context is cancelled, or
// timeout elapses (timeout <= 0 means no deadline beyond ctx). Returns false
// on timeout/cancellation, true once tokens are consumed.
func (l *Limiter) Acquire(ctx context.Context, n int, timeout time.Duration) bool {
	start := time.Now()
	tokens := float64(n)

	for {
		l.mu.Lock()
		l.refillLocked()
		if l.tokens >= tokens {
			l.tokens -= tokens
			l.totalRequests++
			if time.Since(start) > 0 {
				l.totalWaits++
			}
			l.mu.Unlock()
			return true
		}

		needed := tokens - l.tokens
		wait := time.Duration(needed/l.rate*float64(time.Second))
		if wait < minSleep {
			wait = minSleep
		}
		l.mu.Unlock()

		if timeout > 0 && time.Since(start)+wait >= timeout {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

// OnSuccess resets consecutive-failure back-off and, after a long enough
// success streak, raises the rate by 20% up to maxRate.
func (l *Limiter) OnSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failureCount = 0
	l.currentBackoff = 0
	l.failureStreak = 0
	l.successStreak++

	if l.successStreak >= successStreakThreshold && l.rate < l.maxRate {
		l.rate = min(l.maxRate, l.rate*1.2)
		l.successStreak = 0
	}
}

// OnFailure records a failed request, grows exponential back-off by
// consecutive-failure count, halves the current rate down to minRate, and
// sleeps for the computed back-off (doubled further on 429/503 responses).
// errStatus is the HTTP status observed, or 0 if none applies.
func (l *Limiter) OnFailure(errStatus int) {
	l.mu.Lock()

	l.failureCount++
	backoffSeconds := min(l.maxBackoff.Seconds(), math.Pow(l.backoffBase, float64(l.failureCount))*0.5)

	if errStatus == 429 || errStatus == 503 {
		backoffSeconds = min(l.maxBackoff.Seconds(), backoffSeconds*2)
	}
	l.currentBackoff = time.Duration(backoffSeconds * float64(time.Second))

	l.failureStreak++
	l.successStreak = 0
	if l.rate > l.minRate {
		l.rate = max(l.minRate, l.rate*0.5)
	}

	backoff := l.currentBackoff
	l.mu.Unlock()

	if backoff > 0 {
		time.Sleep(backoff)
	}
}

// Stats is a point-in-time snapshot of limiter state, exposed via the
// scheduler status endpoint.
type Stats struct {
	Rate           float64       `json:"rate"`
	BurstSize      int           `json:"burst_size"`
	CurrentTokens  float64       `json:"current_tokens"`
	TotalRequests  int64         `json:"total_requests"`
	TotalWaits     int64         `json:"total_waits"`
	FailureCount   int           `json:"failure_count"`
	CurrentBackoff time.Duration `json:"current_backoff"`
}

// Stats returns a snapshot of the limiter's current state.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		Rate:           l.rate,
		BurstSize:      int(l.burstSize),
		CurrentTokens:  l.tokens,
		TotalRequests:  l.totalRequests,
		TotalWaits:     l.totalWaits,
		FailureCount:   l.failureCount,
		CurrentBackoff: l.currentBackoff,
	}
}

// Reset sets the rate to initialRate, refills the bucket, and clears back-off
// and streak state. The total request/wait counters are not reset.
func (l *Limiter) Reset(initialRate float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rate = initialRate
	l.tokens = l.burstSize
	l.lastRefill = time.Now()
	l.failureCount = 0
	l.currentBackoff = 0
	l.successStreak = 0
	l.failureStreak = 0
}
