package ratelimit

import (
	"context"
	"sync"
	"time"

	"ExecGuard/pkg/clock"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter is a set of keyed token buckets.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*bucket
	clock clock.Clock
}

func New() *Limiter { return NewWithClock(clock.New()) }

func NewWithClock(clk clock.Clock) *Limiter {
	return &Limiter{m: make(map[string]*bucket), clock: clk}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	ok, _ := l.reserve(key, capacity, refillPerSec)
	return ok
}

// Wait blocks until a token for key is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string, capacity, refillPerSec float64) error {
	for {
		ok, wait := l.reserve(key, capacity, refillPerSec)
		if ok {
			return nil
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// reserve consumes a token or reports how long until one is available.
func (l *Limiter) reserve(key string, capacity, refillPerSec float64) (bool, time.Duration) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if b.refillRate <= 0 {
		return false, time.Second
	}
	return false, time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
}
