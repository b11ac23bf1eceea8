// Package admission provides per-caller adaptive rate limiting in front of the pipeline.
package admission

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Defaults used when Config fields are zero.
const (
	DefaultWindow    = 60 * time.Second
	DefaultBaseLimit = 3

	// defaultIdleWindows is how many empty windows pass before a caller is forgotten.
	defaultIdleWindows = 10
)

// RejectedError is returned by Check when a caller exceeds its current limit.
type RejectedError struct {
	CallerID string
	Limit    float64
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("admission rejected for caller %s (limit %.1f)", e.CallerID, e.Limit)
}

// CallerQuota is one caller's sliding window and adaptive ceiling.
type CallerQuota struct {
	Timestamps   []time.Time
	CurrentLimit float64 // 0 means unset; base limit applies
}

// QuotaStore holds CallerQuota values. Update must run fn atomically for the caller.
type QuotaStore interface {
	Update(callerID string, fn func(q *CallerQuota))
}

// Sweeper is implemented by stores that can forget idle callers.
type Sweeper interface {
	// Sweep removes callers with no request after cutoff and returns how many were removed.
	Sweep(cutoff time.Time) int
}

// Config tunes a Controller.
type Config struct {
	Window    time.Duration
	BaseLimit int
	// IdleAfter is how long a caller may go without a request before its state is dropped and
	// it starts again at the base limit. Defaults to ten windows.
	IdleAfter time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithStore replaces the in-memory quota store.
func WithStore(s QuotaStore) Option {
	return func(c *Controller) { c.store = s }
}

// Controller decides whether a caller may proceed.
type Controller struct {
	store  QuotaStore
	window time.Duration
	base   float64
	idle   time.Duration
	now    func() time.Time

	sweepMu   sync.Mutex
	lastSweep time.Time
}

// NewController creates a controller with an in-memory store.
func NewController(cfg Config, opts ...Option) *Controller {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.BaseLimit <= 0 {
		cfg.BaseLimit = DefaultBaseLimit
	}
	if cfg.IdleAfter < cfg.Window {
		cfg.IdleAfter = defaultIdleWindows * cfg.Window
	}
	c := &Controller{
		store:  NewMemoryStore(),
		window: cfg.Window,
		base:   float64(cfg.BaseLimit),
		idle:   cfg.IdleAfter,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Allow records the request and reports whether it fits under the caller's limit.
// A rejected request is not recorded and lowers the caller's limit by one, floor 1.
// A request that leaves the caller at or under half of its limit raises it by 0.5,
// ceiling 2x base. Only whole requests count against the limit.
func (c *Controller) Allow(callerID string) bool {
	now := c.now()
	cutoff := now.Add(-c.window)
	ceiling := 2 * c.base
	allowed := false

	c.store.Update(callerID, func(q *CallerQuota) {
		kept := q.Timestamps[:0]
		for _, ts := range q.Timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		q.Timestamps = kept

		limit := c.base
		if q.CurrentLimit > 0 {
			limit = math.Max(1, math.Min(q.CurrentLimit, ceiling))
		}

		if float64(len(q.Timestamps)) >= math.Floor(limit) {
			q.CurrentLimit = math.Max(1, limit-1)
			return
		}

		q.Timestamps = append(q.Timestamps, now)
		if float64(len(q.Timestamps)) <= limit/2 {
			q.CurrentLimit = math.Min(ceiling, limit+0.5)
		} else {
			q.CurrentLimit = limit
		}
		allowed = true
	})

	c.sweep(now)
	return allowed
}

// sweep drops idle callers at most once per idle period.
func (c *Controller) sweep(now time.Time) {
	sweeper, ok := c.store.(Sweeper)
	if !ok {
		return
	}
	c.sweepMu.Lock()
	if !c.lastSweep.IsZero() && now.Sub(c.lastSweep) < c.idle {
		c.sweepMu.Unlock()
		return
	}
	c.lastSweep = now
	c.sweepMu.Unlock()

	sweeper.Sweep(now.Add(-c.idle))
}

// Check is Allow returning a *RejectedError on rejection.
func (c *Controller) Check(callerID string) error {
	if c.Allow(callerID) {
		return nil
	}
	return &RejectedError{CallerID: callerID, Limit: c.Limit(callerID)}
}

// Limit returns the caller's current adaptive limit.
func (c *Controller) Limit(callerID string) float64 {
	limit := c.base
	c.store.Update(callerID, func(q *CallerQuota) {
		if q.CurrentLimit > 0 {
			limit = q.CurrentLimit
		}
	})
	return limit
}

// MemoryStore is an in-memory QuotaStore. Idle callers are removed by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	callers map[string]*CallerQuota
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{callers: make(map[string]*CallerQuota)}
}

func (s *MemoryStore) Update(callerID string, fn func(q *CallerQuota)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, exists := s.callers[callerID]
	if !exists {
		q = &CallerQuota{}
		s.callers[callerID] = q
	}
	fn(q)
}

// Sweep implements Sweeper.
func (s *MemoryStore) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, q := range s.callers {
		if n := len(q.Timestamps); n == 0 || !q.Timestamps[n-1].After(cutoff) {
			delete(s.callers, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked callers.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.callers)
}
