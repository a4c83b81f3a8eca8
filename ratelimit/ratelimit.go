// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"context"
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// DestinationRateLimiter keeps one token bucket per destination.
type DestinationRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewDestinationRateLimiter creates a limiter allowing r messages per second
// to every destination independently.
func NewDestinationRateLimiter(r float64, burst int) *DestinationRateLimiter {
	return &DestinationRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(r),
		burst:    burstFor(r, burst),
	}
}

func (l *DestinationRateLimiter) limiter(destination string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[destination]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[destination] = limiter
	}
	return limiter
}

// Wait blocks until the destination's bucket has a token or ctx is done.
func (l *DestinationRateLimiter) Wait(ctx context.Context, destination string) error {
	return l.limiter(destination).Wait(ctx)
}

// Remove drops the destination's bucket once it is drained.
func (l *DestinationRateLimiter) Remove(destination string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, destination)
}

// Config holds transfer rate limiting settings. A non-positive rate disables
// the corresponding limit.
type Config struct {
	Rate             float64 `yaml:"rate"`              // messages per second across the run
	Burst            int     `yaml:"burst"`             // burst allowance, derived from Rate when zero
	DestinationRate  float64 `yaml:"destination_rate"`  // messages per second per destination
	DestinationBurst int     `yaml:"destination_burst"` // burst allowance per destination
}

// Enabled reports whether any limit is set.
func (c Config) Enabled() bool {
	return c.Rate > 0 || c.DestinationRate > 0
}

// Manager applies the run-wide limit and then the per-destination one.
type Manager struct {
	global      *rate.Limiter
	destination *DestinationRateLimiter
}

// NewManager creates a manager. It returns nil when no limit is configured;
// a nil Manager never blocks.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled() {
		return nil
	}

	m := &Manager{}
	if cfg.Rate > 0 {
		m.global = rate.NewLimiter(rate.Limit(cfg.Rate), burstFor(cfg.Rate, cfg.Burst))
	}
	if cfg.DestinationRate > 0 {
		m.destination = NewDestinationRateLimiter(cfg.DestinationRate, cfg.DestinationBurst)
	}
	return m
}

// Wait blocks until a message may be sent to destination.
func (m *Manager) Wait(ctx context.Context, destination string) error {
	if m == nil {
		return nil
	}
	if m.global != nil {
		if err := m.global.Wait(ctx); err != nil {
			return err
		}
	}
	if m.destination != nil {
		return m.destination.Wait(ctx, destination)
	}
	return nil
}

// Done releases per-destination state.
func (m *Manager) Done(destination string) {
	if m == nil || m.destination == nil {
		return
	}
	m.destination.Remove(destination)
}

func burstFor(r float64, burst int) int {
	if burst > 0 {
		return burst
	}
	return int(math.Max(1, math.Ceil(r)))
}
