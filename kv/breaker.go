package kv

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when a store call is rejected because the
// backend is considered down.
var ErrBreakerOpen = errors.New("kv: store circuit open")

// breakerState tracks whether the wrapped backend is considered healthy.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerStore wraps a Store with a circuit breaker so a failing backend is
// given time to recover instead of being hammered by every request. While
// the circuit is open all calls fail fast with ErrBreakerOpen; after the
// cooldown a probe call is let through, and a successful probe closes the
// circuit again.
//
// Only backend faults count as failures. ErrNotFound is a normal outcome and
// context cancellation says nothing about backend health, so neither trips
// the breaker.
type BreakerStore struct {
	inner Store

	mu        sync.Mutex
	state     breakerState
	failures  int
	threshold int
	cooldown  time.Duration
	openUntil time.Time
}

// NewBreakerStore wraps inner. Zero or negative arguments fall back to a
// threshold of 5 consecutive failures and a 30 second cooldown.
func NewBreakerStore(inner Store, threshold int, cooldown time.Duration) *BreakerStore {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &BreakerStore{inner: inner, threshold: threshold, cooldown: cooldown}
}

// allow reports whether a call may proceed, transitioning open to half-open
// once the cooldown has elapsed.
func (b *BreakerStore) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerOpen && time.Now().After(b.openUntil) {
		b.state = breakerHalfOpen
	}
	return b.state != breakerOpen
}

func (b *BreakerStore) record(err error) {
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.state = breakerClosed
		b.failures = 0
		return
	}
	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.threshold {
		b.state = breakerOpen
		b.openUntil = time.Now().Add(b.cooldown)
		b.failures = 0
	}
}

// State returns the breaker's current state name, for health reporting.
func (b *BreakerStore) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerOpen && time.Now().After(b.openUntil) {
		b.state = breakerHalfOpen
	}
	return b.state.String()
}

func (b *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !b.allow() {
		return nil, ErrBreakerOpen
	}
	v, err := b.inner.Get(ctx, key)
	b.record(err)
	return v, err
}

func (b *BreakerStore) Put(ctx context.Context, key string, value []byte, ttlSeconds int64) error {
	if !b.allow() {
		return ErrBreakerOpen
	}
	err := b.inner.Put(ctx, key, value, ttlSeconds)
	b.record(err)
	return err
}

func (b *BreakerStore) Delete(ctx context.Context, key string) error {
	if !b.allow() {
		return ErrBreakerOpen
	}
	err := b.inner.Delete(ctx, key)
	b.record(err)
	return err
}

func (b *BreakerStore) List(ctx context.Context, opts ListOptions) (ListPage, error) {
	if !b.allow() {
		return ListPage{}, ErrBreakerOpen
	}
	page, err := b.inner.List(ctx, opts)
	b.record(err)
	return page, err
}
