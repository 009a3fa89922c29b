package ratelimit

import (
	"testing"
	"time"
)

func fixedClock(at *time.Time) func() time.Time {
	return func() time.Time { return *at }
}

func TestAllowWithinBurst(t *testing.T) {
	s := NewStore(10, 5)
	for i := 0; i < 5; i++ {
		if !s.Allow("1.2.3.4") {
			t.Fatalf("expected allow on request %d within burst", i+1)
		}
	}
}

func TestBlockWhenDepleted(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore(10, 2)
	s.SetClock(fixedClock(&now))

	s.Allow("1.2.3.4")
	s.Allow("1.2.3.4")
	if s.Allow("1.2.3.4") {
		t.Fatal("expected rate limit after burst exhausted")
	}
}

func TestRefillOverTime(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore(1, 1)
	s.SetClock(fixedClock(&now))

	s.Allow("1.2.3.4")
	if s.Allow("1.2.3.4") {
		t.Fatal("expected depletion")
	}
	now = now.Add(time.Second)
	if !s.Allow("1.2.3.4") {
		t.Fatal("expected allow after refill")
	}
}

func TestPerKeyIsolation(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore(100, 10)
	s.SetClock(fixedClock(&now))

	for i := 0; i < 10; i++ {
		if !s.Allow("key-a") {
			t.Fatalf("expected allow on key-a request %d", i+1)
		}
	}
	// key-b gets its own fresh bucket.
	if !s.Allow("key-b") {
		t.Fatal("expected allow on key-b")
	}
}

func TestIdleBucketsEvicted(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore(10, 10)
	s.SetClock(fixedClock(&now))

	s.Allow("stale")
	if s.Len() != 1 {
		t.Fatalf("expected 1 bucket, got %d", s.Len())
	}

	now = now.Add(idleTTL + sweepEvery)
	s.Allow("fresh")
	if s.Len() != 1 {
		t.Fatalf("expected stale bucket evicted, got %d buckets", s.Len())
	}
}
