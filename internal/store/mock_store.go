// ABOUTME: In-memory Store implementation for tests and diskless runs
// ABOUTME: Mirrors SQLiteStore semantics without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation.
type MockStore struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	events    []*Event
	seq       int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{instances: make(map[string]*Instance)}
}

func (m *MockStore) SaveInstance(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if inst, ok := m.instances[id]; ok {
		inst.UpdatedAt = now
		return nil
	}
	m.seq++
	// Nudge creation times apart so ordering is stable within one clock tick.
	created := now.Add(time.Duration(m.seq))
	m.instances[id] = &Instance{ID: id, CreatedAt: created, UpdatedAt: created}
	return nil
}

func (m *MockStore) UpdateInstanceStatus(_ context.Context, id, status, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[id]
	if !ok {
		return ErrNotFound
	}
	inst.LastStatus = status
	inst.LastError = lastError
	inst.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockStore) MarkConnected(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.instances[id]
	if !ok {
		return ErrNotFound
	}
	t := at.UTC()
	inst.ConnectedAt = &t
	return nil
}

func (m *MockStore) GetInstance(_ context.Context, id string) (*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.instances[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inst
	return &cp, nil
}

func (m *MockStore) ListInstances(context.Context) ([]*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		cp := *inst
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockStore) DeleteInstance(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instances[id]; !ok {
		return ErrNotFound
	}
	delete(m.instances, id)
	return nil
}

func (m *MockStore) AppendEvent(_ context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	cp := *event
	m.events = append(m.events, &cp)
	return nil
}

func (m *MockStore) ListEvents(_ context.Context, instanceID string, limit int) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = clampLimit(limit)
	var out []*Event
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if e := m.events[i]; e.InstanceID == instanceID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Kinds returns the event kinds recorded for an instance, oldest first.
func (m *MockStore) Kinds(instanceID string) []EventKind {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var kinds []EventKind
	for _, e := range m.events {
		if e.InstanceID == instanceID {
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds
}

func (m *MockStore) Close() error { return nil }

var _ Store = (*MockStore)(nil)
