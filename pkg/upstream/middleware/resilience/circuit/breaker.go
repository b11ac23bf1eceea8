// Package circuit provides the global circuit breaker guarding the upstream model.
package circuit

import (
	"fmt"
	"sync"
	"time"
)

// State represents the current state of a circuit breaker.
type State int

const (
	Closed   State = iota // Normal operation
	Open                  // Failing, reject requests
	HalfOpen              // Cooldown elapsed, next call is a trial
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config defines circuit breaker behavior.
type Config struct {
	FailureThreshold int           `json:"failure_threshold"` // Consecutive failures before opening
	SuccessThreshold int           `json:"success_threshold"` // Successes in half-open before closing
	Cooldown         time.Duration `json:"cooldown"`          // Time open before half-open
}

//nolint:gochecknoglobals // Sensible default config pattern
var DefaultConfig = Config{
	FailureThreshold: 5,
	SuccessThreshold: 1,
	Cooldown:         10 * time.Minute,
}

// Error is returned when a call is short-circuited by an open breaker.
type Error struct {
	State State
}

func (e *Error) Error() string {
	return fmt.Sprintf("circuit breaker is %s", e.State)
}

// Snapshot is a point-in-time view of breaker state.
type Snapshot struct {
	State               State
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// Breaker defines the interface for circuit breaker implementations.
type Breaker interface {
	// Allow reports whether a call may proceed. An open breaker whose
	// cooldown has elapsed moves to half-open and allows one trial call.
	// Further calls are rejected until that trial is recorded. Every
	// allowed call must be followed by Record, RecordSuccess, or RecordFailure.
	Allow() bool

	RecordSuccess()
	RecordFailure()

	// Record calls RecordSuccess or RecordFailure.
	Record(success bool)

	GetState() State
	Snapshot() Snapshot

	// Reset manually resets the circuit breaker to closed state.
	Reset()
}

// Option configures a breaker.
type Option func(*breaker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *breaker) { b.now = now }
}

// OnStateChange registers a callback invoked (outside the lock) after each transition.
func OnStateChange(fn func(from, to State)) Option {
	return func(b *breaker) { b.onChange = fn }
}

//nolint:govet // Logical field grouping preferred over memory alignment
type breaker struct {
	config       Config
	now          func() time.Time
	onChange     func(from, to State)
	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	openedAt     time.Time
	trialRunning bool
}

// New creates a new circuit breaker with the given configuration.
func New(config Config, opts ...Option) Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultConfig.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = DefaultConfig.SuccessThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultConfig.Cooldown
	}
	b := &breaker{
		config: config,
		state:  Closed,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var (
	shared   Breaker
	sharedMu sync.Mutex
)

// Shared returns the process-wide breaker used by every upstream-dependent component.
func Shared() Breaker {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		shared = New(DefaultConfig)
	}
	return shared
}

// SetShared replaces the process-wide breaker. Call it before serving traffic.
func SetShared(b Breaker) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	shared = b
}

func (b *breaker) Allow() bool {
	b.mu.Lock()
	from := b.state
	allowed := true
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) >= b.config.Cooldown {
			b.state = HalfOpen
			b.successCount = 0
			b.trialRunning = true
		} else {
			allowed = false
		}
	case HalfOpen:
		if b.trialRunning {
			allowed = false
		} else {
			b.trialRunning = true
		}
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
	return allowed
}

func (b *breaker) Record(success bool) {
	if success {
		b.RecordSuccess()
	} else {
		b.RecordFailure()
	}
}

func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	from := b.state
	b.failureCount = 0
	b.trialRunning = false
	switch b.state {
	case HalfOpen:
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.state = Closed
			b.successCount = 0
		}
	case Open:
		// A call admitted before the breaker opened finished late.
		b.state = Closed
		b.successCount = 0
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *breaker) RecordFailure() {
	b.mu.Lock()
	from := b.state
	b.failureCount++
	b.trialRunning = false
	switch b.state {
	case Closed:
		if b.failureCount >= b.config.FailureThreshold {
			b.state = Open
			b.openedAt = b.now()
		}
	case HalfOpen:
		b.state = Open
		b.openedAt = b.now()
		b.successCount = 0
	case Open:
		b.openedAt = b.now()
	}
	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

func (b *breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:               b.state,
		ConsecutiveFailures: b.failureCount,
		OpenedAt:            b.openedAt,
	}
}

func (b *breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = Closed
	b.failureCount = 0
	b.successCount = 0
	b.openedAt = time.Time{}
	b.trialRunning = false
	b.mu.Unlock()

	b.notify(from, Closed)
}

func (b *breaker) notify(from, to State) {
	if from != to && b.onChange != nil {
		b.onChange(from, to)
	}
}
