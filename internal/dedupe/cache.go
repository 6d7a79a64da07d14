// ABOUTME: Bounded TTL filter that drops transport redeliveries of inbound messages
// ABOUTME: Keys are scoped per session so two accounts never shadow each other

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// Defaults used by the session supervisor.
const (
	DefaultTTL     = 10 * time.Minute
	DefaultMaxSize = 50_000
)

type entry struct {
	key    string
	seenAt time.Time
}

// Filter remembers recently seen message keys. The oldest key is evicted
// first when the filter is full.
type Filter struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	done   chan struct{}
	closed bool
}

// New creates a filter and starts its janitor, which drops expired keys
// every sweep interval. A zero sweep disables the janitor.
func New(ttl time.Duration, maxSize int, sweep time.Duration) *Filter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	f := &Filter{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if sweep > 0 {
		go f.janitor(sweep)
	}
	return f
}

// Key builds the filter key of a message within a session.
func Key(sessionID, messageID string) string {
	return sessionID + "/" + messageID
}

// Seen reports whether the message was already delivered within the TTL.
// A first sighting is recorded, so exactly one of concurrent callers with
// the same key gets false.
func (f *Filter) Seen(sessionID, messageID string) bool {
	if messageID == "" {
		return false
	}
	key := Key(sessionID, messageID)
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	if el, ok := f.index[key]; ok {
		e := el.Value.(*entry)
		if now.Sub(e.seenAt) < f.ttl {
			return true
		}
		// Expired: treat as new and move to the back.
		e.seenAt = now
		f.order.MoveToBack(el)
		return false
	}

	if len(f.index) >= f.maxSize {
		f.evictOldest()
	}
	f.index[key] = f.order.PushBack(&entry{key: key, seenAt: now})
	return false
}

// Forget drops every key of a session, e.g. after it was purged.
func (f *Filter) Forget(sessionID string) int {
	prefix := sessionID + "/"

	f.mu.Lock()
	defer f.mu.Unlock()

	removed := 0
	for key, el := range f.index {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			f.order.Remove(el)
			delete(f.index, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of remembered keys, expired ones included.
func (f *Filter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.index)
}

func (f *Filter) evictOldest() {
	front := f.order.Front()
	if front == nil {
		return
	}
	f.order.Remove(front)
	delete(f.index, front.Value.(*entry).key)
}

func (f *Filter) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f.expire()
		case <-f.done:
			return
		}
	}
}

// expire walks from the oldest key and stops at the first live one.
func (f *Filter) expire() int {
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()

	removed := 0
	for el := f.order.Front(); el != nil; el = f.order.Front() {
		e := el.Value.(*entry)
		if now.Sub(e.seenAt) < f.ttl {
			break
		}
		f.order.Remove(el)
		delete(f.index, e.key)
		removed++
	}
	return removed
}

// Close stops the janitor. Safe to call more than once.
func (f *Filter) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		close(f.done)
		f.closed = true
	}
}
