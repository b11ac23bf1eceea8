package upstream

import (
	"fmt"
	"testing"
	"time"
)

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache(time.Minute, 0)
	c.now = func() time.Time { return now }

	c.Put("prompt", "value")
	if got, ok := c.Get("prompt"); !ok || got != "value" {
		t.Errorf("Expected cached value, got %q (ok=%v)", got, ok)
	}

	now = now.Add(61 * time.Second)
	if _, ok := c.Get("prompt"); ok {
		t.Error("Expected entry to expire after TTL")
	}
}

func TestCacheBounded(t *testing.T) {
	c := NewCache(time.Minute, 3)
	for i := 0; i < 10; i++ {
		c.Put(fmt.Sprintf("p%d", i), "v")
	}
	if c.Len() > 3 {
		t.Errorf("Expected at most 3 entries, got %d", c.Len())
	}
	if _, ok := c.Get("p9"); !ok {
		t.Error("Expected most recent entry to survive eviction")
	}
}

func TestDisabledCache(t *testing.T) {
	c := NewCache(0, 0)
	c.Put("p", "v")
	if _, ok := c.Get("p"); ok {
		t.Error("Expected zero TTL cache to store nothing")
	}

	var nilCache *Cache
	nilCache.Put("p", "v")
	if _, ok := nilCache.Get("p"); ok {
		t.Error("Expected nil cache to miss")
	}
}
