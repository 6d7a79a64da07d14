// ABOUTME: Tests for the redelivery filter
// ABOUTME: Covers TTL expiry, session scoping, eviction order, janitor, and races

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestFilter(ttl time.Duration, maxSize int) (*Filter, *clock) {
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := New(ttl, maxSize, 0)
	f.now = c.Now
	return f, c
}

func TestFilter_FirstSightingPasses(t *testing.T) {
	f, _ := newTestFilter(time.Minute, 10)
	defer f.Close()

	assert.False(t, f.Seen("shop-1", "ABC"))
	assert.True(t, f.Seen("shop-1", "ABC"))
	assert.Equal(t, 1, f.Len())
}

func TestFilter_ScopedPerSession(t *testing.T) {
	f, _ := newTestFilter(time.Minute, 10)
	defer f.Close()

	assert.False(t, f.Seen("shop-1", "ABC"))
	assert.False(t, f.Seen("shop-2", "ABC"))
}

func TestFilter_EmptyIDNeverDeduplicated(t *testing.T) {
	f, _ := newTestFilter(time.Minute, 10)
	defer f.Close()

	assert.False(t, f.Seen("shop-1", ""))
	assert.False(t, f.Seen("shop-1", ""))
	assert.Equal(t, 0, f.Len())
}

func TestFilter_Expiry(t *testing.T) {
	f, c := newTestFilter(time.Minute, 10)
	defer f.Close()

	f.Seen("shop-1", "ABC")
	c.Advance(59 * time.Second)
	assert.True(t, f.Seen("shop-1", "ABC"))

	c.Advance(2 * time.Second)
	assert.False(t, f.Seen("shop-1", "ABC"), "expired key counts as new")
	assert.True(t, f.Seen("shop-1", "ABC"))
}

func TestFilter_EvictsOldest(t *testing.T) {
	f, _ := newTestFilter(time.Hour, 3)
	defer f.Close()

	for _, id := range []string{"a", "b", "c", "d"} {
		f.Seen("s", id)
	}
	assert.Equal(t, 3, f.Len())
	assert.False(t, f.Seen("s", "a"), "a was evicted")

	// Re-adding a evicted b.
	assert.False(t, f.Seen("s", "b"))
	assert.True(t, f.Seen("s", "d"))
}

func TestFilter_Expire(t *testing.T) {
	f, c := newTestFilter(time.Minute, 10)
	defer f.Close()

	f.Seen("s", "old-1")
	f.Seen("s", "old-2")
	c.Advance(30 * time.Second)
	f.Seen("s", "fresh")
	c.Advance(40 * time.Second)

	assert.Equal(t, 2, f.expire())
	assert.Equal(t, 1, f.Len())
	assert.True(t, f.Seen("s", "fresh"))
}

func TestFilter_Janitor(t *testing.T) {
	f := New(10*time.Millisecond, 10, 5*time.Millisecond)
	defer f.Close()

	f.Seen("s", "x")
	assert.Eventually(t, func() bool { return f.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestFilter_Forget(t *testing.T) {
	f, _ := newTestFilter(time.Hour, 10)
	defer f.Close()

	f.Seen("shop-1", "a")
	f.Seen("shop-1", "b")
	f.Seen("shop-10", "a")

	assert.Equal(t, 2, f.Forget("shop-1"))
	assert.False(t, f.Seen("shop-1", "a"))
	assert.True(t, f.Seen("shop-10", "a"))
}

func TestFilter_ConcurrentSameKey(t *testing.T) {
	f := New(time.Minute, 100, 0)
	defer f.Close()

	var firsts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !f.Seen("s", "contested") {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), firsts.Load())
}

func TestFilter_ConcurrentMixed(t *testing.T) {
	f := New(time.Minute, 500, time.Millisecond)
	defer f.Close()

	var wg sync.WaitGroup
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				f.Seen(fmt.Sprintf("s%d", g%4), fmt.Sprintf("m%d", i))
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, f.Len(), 500)
}

func TestFilter_CloseTwice(t *testing.T) {
	f := New(time.Minute, 10, time.Millisecond)
	f.Close()
	f.Close()
}
