// Package ratelimit grants bandwidth quota to the backend, which asks for
// permission before moving bytes in either direction.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Direction selects the inbound or outbound budget.
type Direction int

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}

// NewBWLimiter creates a rate.Limiter that caps throughput to bytesPerSec.
// The burst is capped at 1 MB so a single grant never exceeds a second's
// worth of data on slow limits.
func NewBWLimiter(bytesPerSec int64) *rate.Limiter {
	burst := 1 << 20 // 1 MB
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// Limiter holds one budget per direction. It may be shared by several
// sessions. A zero limit means unlimited.
type Limiter struct {
	now      func() time.Time
	limiters [2]*rate.Limiter
	limits   [2]int64
	mu       sync.Mutex
}

// New creates a Limiter. Non-positive rates are unlimited.
func New(inBytesPerSec, outBytesPerSec int64) *Limiter {
	l := &Limiter{now: time.Now}
	for d, bps := range [2]int64{inBytesPerSec, outBytesPerSec} {
		if bps > 0 {
			l.limiters[d] = NewBWLimiter(bps)
			l.limits[d] = bps
		}
	}
	return l
}

// Unlimited reports whether d has no budget.
func (l *Limiter) Unlimited(d Direction) bool {
	return l == nil || l.limiters[d] == nil
}

// Limit returns the configured bytes per second for d, 0 when unlimited.
func (l *Limiter) Limit(d Direction) int64 {
	if l == nil {
		return 0
	}
	return l.limits[d]
}

// Request takes up to want bytes from the budget of d. When nothing is
// available it returns 0 and how long until at least one byte will be.
func (l *Limiter) Request(d Direction, want int64) (granted int64, wait time.Duration) {
	if l.Unlimited(d) {
		return want, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lim := l.limiters[d]
	now := l.now()
	tokens := lim.TokensAt(now)
	if tokens < 1 {
		missing := 1 - tokens
		wait = time.Duration(math.Ceil(missing / float64(lim.Limit()) * float64(time.Second)))
		return 0, max(wait, time.Millisecond)
	}

	granted = min(int64(tokens), want, int64(lim.Burst()))
	lim.AllowN(now, int(granted))
	return granted, 0
}
