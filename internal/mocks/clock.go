package mocks

import (
	"context"
	"sync"
	"time"
)

// Clock is a manually advanced time source.
type Clock struct {
	now time.Time
	mu  sync.Mutex
}

// NewClock returns a clock frozen at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SleepRecorder is a retry sleeper that records requested delays and never blocks.
type SleepRecorder struct {
	delays []time.Duration
	mu     sync.Mutex
}

// Sleep records d and returns immediately, or ctx.Err() when ctx is already done.
func (s *SleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

// Delays returns a copy of the recorded delays.
func (s *SleepRecorder) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}
