package cache

import (
	"testing"
	"time"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("billing@example.com", "cus_123", time.Minute)

	got, ok := c.Get("billing@example.com")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if got != "cus_123" {
		t.Fatalf("expected cus_123, got %q", got)
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("billing@example.com", "cus_123", time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get("billing@example.com"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("billing@example.com", "cus_123", 0)

	if _, ok := c.Get("billing@example.com"); !ok {
		t.Fatalf("expected hit for zero-ttl entry")
	}
}

func TestTTLCacheDelete(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("billing@example.com", "cus_123", time.Minute)
	c.Delete("billing@example.com")

	if _, ok := c.Get("billing@example.com"); ok {
		t.Fatalf("expected miss after delete")
	}
}
