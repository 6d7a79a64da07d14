// ABOUTME: Tests for the per-IP token bucket limiter
// ABOUTME: Uses a manual clock to check budgets, refill, isolation and pruning

package gateway

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	l := newIPLimiter(10, time.Minute, "slow down")
	l.now = func() time.Time { return now }

	for i := range 10 {
		ok, _ := l.allow("10.0.0.1")
		assert.True(t, ok, "request %d", i)
	}
	ok, wait := l.allow("10.0.0.1")
	assert.False(t, ok)
	assert.InDelta(t, float64(6*time.Second), float64(wait), float64(time.Millisecond))

	ok, _ = l.allow("10.0.0.2")
	assert.True(t, ok, "budgets are per IP")

	now = now.Add(7 * time.Second)
	ok, _ = l.allow("10.0.0.1")
	assert.True(t, ok, "one token refills every window/requests")
	ok, _ = l.allow("10.0.0.1")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	l.allow("10.0.0.3")
	assert.Equal(t, 1, l.len(), "idle visitors are pruned")
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.7:51234"
	assert.Equal(t, "192.0.2.7", clientIP(r))

	r.RemoteAddr = "unix"
	assert.Equal(t, "unix", clientIP(r))
}
