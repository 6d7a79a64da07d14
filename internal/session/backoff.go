// ABOUTME: Capped exponential reconnect backoff with jitter
// ABOUTME: Spreads reconnects of many sessions after a shared network outage

package session

import (
	"math/rand/v2"
	"time"
)

// Backoff computes reconnect delays.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
	// Jitter is the fraction of the delay that is randomized, in [0, 1].
	Jitter float64

	rand func() float64
}

// NewBackoff returns a backoff randomizing the upper half of each delay.
func NewBackoff(base, maxDelay time.Duration) Backoff {
	return Backoff{Base: base, Max: maxDelay, Jitter: 0.5, rand: rand.Float64}
}

// Delay returns the wait before reconnect attempt number failures+1.
func (b Backoff) Delay(failures int) time.Duration {
	d := b.Base
	for i := 0; i < failures && d < b.Max; i++ {
		d *= 2
	}
	d = min(d, b.Max)

	if b.Jitter <= 0 || b.rand == nil {
		return d
	}
	spread := time.Duration(float64(d) * b.Jitter)
	return d - spread + time.Duration(b.rand()*float64(spread))
}
