package admission

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestController(clock *fakeClock) *Controller {
	return NewController(Config{Window: time.Minute, BaseLimit: 3}, WithClock(clock.Now))
}

func TestFourthRequestInWindowRejected(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestController(clock)

	for i := 0; i < 3; i++ {
		if !c.Allow("alice") {
			t.Fatalf("Expected request %d to be allowed", i+1)
		}
		clock.Advance(time.Second)
	}

	before := c.Limit("alice")
	if c.Allow("alice") {
		t.Fatal("Expected 4th request within window to be rejected")
	}
	if after := c.Limit("alice"); after >= before {
		t.Errorf("Expected limit to be nudged down from %.1f, got %.1f", before, after)
	}
}

func TestSlowCallerNeverRejected(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestController(clock)

	// Strictly slower than 3 per 60s.
	for i := 0; i < 50; i++ {
		if !c.Allow("bob") {
			t.Fatalf("Expected request %d to be allowed at %v", i+1, clock.Now())
		}
		clock.Advance(21 * time.Second)
	}
}

func TestLimitBounds(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestController(clock)

	// Hammer: the limit never drops below 1.
	for i := 0; i < 20; i++ {
		c.Allow("carol")
	}
	if l := c.Limit("carol"); l < 1 {
		t.Errorf("Expected limit >= 1, got %.1f", l)
	}

	// Idle callers drift up to 2x base and stop there.
	for i := 0; i < 40; i++ {
		clock.Advance(2 * time.Minute)
		c.Allow("dave")
	}
	if l := c.Limit("dave"); l != 6 {
		t.Errorf("Expected limit to cap at 6, got %.1f", l)
	}
}

func TestCallersAreIndependent(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestController(clock)

	for i := 0; i < 5; i++ {
		c.Allow("noisy")
	}
	if !c.Allow("quiet") {
		t.Error("Expected a different caller to be unaffected")
	}
}

func TestWindowExpiryReadmits(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestController(clock)

	for i := 0; i < 3; i++ {
		c.Allow("erin")
	}
	if c.Allow("erin") {
		t.Fatal("Expected rejection inside window")
	}
	clock.Advance(61 * time.Second)
	if !c.Allow("erin") {
		t.Error("Expected admission after the window slid past")
	}
}

func TestCheckReturnsRejectedError(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewController(Config{Window: time.Minute, BaseLimit: 1}, WithClock(clock.Now))

	if err := c.Check("frank"); err != nil {
		t.Fatalf("Expected first request allowed, got %v", err)
	}
	err := c.Check("frank")
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Expected *RejectedError, got %v", err)
	}
	if rejected.CallerID != "frank" {
		t.Errorf("Expected caller id frank, got %s", rejected.CallerID)
	}
}

func TestConcurrentAllowIsBounded(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := newTestController(clock)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Allow("racer") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed > 6 {
		t.Errorf("Expected at most 2x base admissions in one window, got %d", allowed)
	}
	if allowed < 1 {
		t.Error("Expected at least one admission")
	}
}

func TestIdleCallersAreForgotten(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	c := NewController(Config{Window: time.Minute, BaseLimit: 3}, WithClock(clock.Now), WithStore(store))

	for i := 0; i < 100; i++ {
		c.Allow(fmt.Sprintf("caller-%d", i))
	}
	if n := store.Len(); n != 100 {
		t.Fatalf("Expected 100 tracked callers, got %d", n)
	}

	clock.Advance(5 * time.Minute)
	c.Allow("caller-7")
	clock.Advance(6 * time.Minute)
	c.Allow("late")

	if n := store.Len(); n != 2 {
		t.Errorf("Expected only the recent callers to remain, got %d", n)
	}
	if l := c.Limit("caller-7"); l <= 0 {
		t.Errorf("Expected caller-7 to keep its quota, got %.1f", l)
	}
}

func TestForgottenCallerStartsAtBase(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewController(Config{Window: time.Minute, BaseLimit: 3, IdleAfter: 5 * time.Minute}, WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		c.Allow("grace")
	}
	if l := c.Limit("grace"); l >= 3 {
		t.Fatalf("Expected a lowered limit after hammering, got %.1f", l)
	}

	clock.Advance(6 * time.Minute)
	c.Allow("someone-else")
	if l := c.Limit("grace"); l != 3 {
		t.Errorf("Expected an idle caller to start again at base 3, got %.1f", l)
	}
}
