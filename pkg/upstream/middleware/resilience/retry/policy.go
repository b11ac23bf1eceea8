// Package retry provides bounded retry with exponential backoff and jitter for upstream calls.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"assistant/pkg/upstream/llmerrors"
	"assistant/pkg/upstream/middleware/resilience/circuit"
)

// Config defines configuration for retry behavior.
type Config struct {
	MaxAttempts   int           `json:"max_attempts"`   // Maximum number of attempts (including initial)
	InitialDelay  time.Duration `json:"initial_delay"`  // Delay before the second attempt
	MaxDelay      time.Duration `json:"max_delay"`      // Cap applied after jitter
	BackoffFactor float64       `json:"backoff_factor"` // Multiplier per attempt
	MaxJitter     time.Duration `json:"max_jitter"`     // Uniform jitter in [0, MaxJitter)
}

// DefaultConfig waits 2s, 4s, 8s, 16s (each plus up to 1s jitter) across five attempts.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultConfig = Config{
	MaxAttempts:   5,
	InitialDelay:  2 * time.Second,
	MaxDelay:      60 * time.Second,
	BackoffFactor: 2.0,
	MaxJitter:     time.Second,
}

// Classifier determines if an error should be retried.
type Classifier func(error) bool

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// retryableStatuses are the transient HTTP statuses worth another attempt.
//
//nolint:gochecknoglobals // fixed lookup table
var retryableStatuses = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

// ShouldRetry retries rate limits and 500/502/503/504 only. Timeouts, cancellations,
// breaker rejections and every other status fail on the first attempt.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var circuitErr *circuit.Error
	if errors.As(err, &circuitErr) {
		return false
	}
	if retryableStatuses[statusOf(err)] {
		return true
	}
	return llmerrors.Is(err, llmerrors.ErrorTypeRateLimit)
}

// ContextSleep is the production Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
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

// Policy encapsulates retry configuration and logic.
//
//nolint:govet // Simple struct, logical grouping preferred
type Policy struct {
	Config     Config
	Classifier Classifier
	Sleep      Sleeper
	Jitter     func(max time.Duration) time.Duration
}

// Option configures a Policy.
type Option func(*Policy)

// WithSleeper replaces the real wait, typically with a recorder in tests.
func WithSleeper(s Sleeper) Option {
	return func(p *Policy) { p.Sleep = s }
}

// WithJitter replaces the random jitter source.
func WithJitter(fn func(max time.Duration) time.Duration) Option {
	return func(p *Policy) { p.Jitter = fn }
}

// NewPolicy creates a retry policy. A nil classifier means ShouldRetry.
func NewPolicy(config Config, classifier Classifier, opts ...Option) *Policy {
	if classifier == nil {
		classifier = ShouldRetry
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.BackoffFactor <= 0 {
		config.BackoffFactor = DefaultConfig.BackoffFactor
	}
	p := &Policy{
		Config:     config,
		Classifier: classifier,
		Sleep:      ContextSleep,
		Jitter:     uniformJitter,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func uniformJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

// CalculateDelay returns the wait before the given 1-based attempt.
// Attempt 1 has no delay; attempt n waits InitialDelay*factor^(n-2) plus jitter, capped at MaxDelay.
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	base := float64(p.Config.InitialDelay) * math.Pow(p.Config.BackoffFactor, float64(attempt-2))
	delay := time.Duration(base)
	if base > float64(math.MaxInt64/2) {
		delay = p.Config.MaxDelay
	}
	delay += p.Jitter(p.Config.MaxJitter)

	if p.Config.MaxDelay > 0 && delay > p.Config.MaxDelay {
		delay = p.Config.MaxDelay
	}
	return delay
}

func (p *Policy) ShouldRetry(err error) bool {
	return p.Classifier(err)
}
