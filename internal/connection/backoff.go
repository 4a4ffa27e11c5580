package connection

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffConfig defines reconnect pacing.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
	// MaxAttempts bounds consecutive failed attempts. Zero means unbounded.
	MaxAttempts int
}

// DefaultBackoff returns 1s doubling up to 30s with jitter, giving up
// after five consecutive failures.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     30 * time.Second,
		Jitter:       true,
		MaxAttempts:  5,
	}
}

// NextBackoffDelay returns the retry delay for attempt N (1-based).
// Jitter scales the delay by a factor in [0.5, 1.5).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter && rng != nil {
		delay = delay * (0.5 + rng.Float64())
	}
	return time.Duration(delay)
}

// Backoff counts consecutive failures against a BackoffConfig.
type Backoff struct {
	cfg      BackoffConfig
	rng      *rand.Rand
	failures int
}

// NewBackoff returns a Backoff. A nil rng disables jitter.
func NewBackoff(cfg BackoffConfig, rng *rand.Rand) *Backoff {
	return &Backoff{cfg: cfg, rng: rng}
}

// Fail records a failed attempt. It returns the delay before the next
// attempt and false once MaxAttempts consecutive failures were recorded.
func (b *Backoff) Fail() (time.Duration, bool) {
	b.failures++
	if b.cfg.MaxAttempts > 0 && b.failures >= b.cfg.MaxAttempts {
		return 0, false
	}
	return NextBackoffDelay(b.cfg, b.failures, b.rng), true
}

// Failures returns the number of consecutive failures recorded.
func (b *Backoff) Failures() int { return b.failures }

// Reset clears the failure count after a successful open.
func (b *Backoff) Reset() { b.failures = 0 }

// Sleep waits for d or until ctx ends.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
