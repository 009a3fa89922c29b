// Package ratelimit throttles the mutating record operations with per-client
// token buckets. A shortener's write endpoints see an open, untrusted client
// population, so buckets are keyed by client IP and idle ones are evicted to
// keep the map bounded.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// idleTTL is how long a bucket may sit unused before eviction.
	idleTTL = 10 * time.Minute
	// sweepEvery bounds how often Allow scans for idle buckets.
	sweepEvery = time.Minute
)

type bucket struct {
	tokens float64
	seen   time.Time
}

// Store hands out rate-limit decisions for an arbitrary set of client keys.
// Each key gets its own token bucket refilled at rate tokens per second up
// to burst capacity.
type Store struct {
	mu        sync.Mutex
	rate      float64
	burst     float64
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

// NewStore creates a Store. A burst of zero or less falls back to the rate,
// allowing no extra headroom beyond steady state.
func NewStore(rate, burst float64) *Store {
	if burst <= 0 {
		burst = rate
	}
	return &Store{
		rate:    rate,
		burst:   burst,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// SetClock replaces the time source, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Allow consumes one token from key's bucket and reports whether the request
// may proceed. Unknown keys start with a full bucket.
func (s *Store) Allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{tokens: s.burst, seen: now}
		s.buckets[key] = b
	}

	b.tokens += now.Sub(b.seen).Seconds() * s.rate
	if b.tokens > s.burst {
		b.tokens = s.burst
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops buckets not seen within idleTTL. Caller holds s.mu.
func (s *Store) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < sweepEvery {
		return
	}
	s.lastSweep = now
	for key, b := range s.buckets {
		if now.Sub(b.seen) > idleTTL {
			delete(s.buckets, key)
		}
	}
}

// Len reports the number of live buckets, for tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
