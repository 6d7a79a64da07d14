// ABOUTME: Store interface and data types for the instance registry
// ABOUTME: Defines Instance and lifecycle Event records kept across restarts

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested instance does not exist
var ErrNotFound = errors.New("not found")

// Instance is a session the operator asked for. It stays registered until
// the session is stopped or permanently logged out.
type Instance struct {
	ID          string
	LastStatus  string
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConnectedAt *time.Time
}

// EventKind names a session lifecycle transition.
type EventKind string

const (
	EventInit         EventKind = "init"
	EventRestored     EventKind = "restored"
	EventPairing      EventKind = "pairing"
	EventReady        EventKind = "ready"
	EventDisconnected EventKind = "disconnected"
	EventLoggedOut    EventKind = "logged_out"
	EventStopped      EventKind = "stopped"
	EventSetupFailed  EventKind = "setup_failed"
)

// Event is one entry of an instance's lifecycle log.
type Event struct {
	ID         string
	InstanceID string
	Kind       EventKind
	Detail     string
	CreatedAt  time.Time
}

// Store persists the instance registry and lifecycle log.
type Store interface {
	// SaveInstance registers id, or touches it if already known.
	SaveInstance(ctx context.Context, id string) error
	// UpdateInstanceStatus records the latest status and error of id.
	UpdateInstanceStatus(ctx context.Context, id, status, lastError string) error
	// MarkConnected records the time id last became ready.
	MarkConnected(ctx context.Context, id string, at time.Time) error
	GetInstance(ctx context.Context, id string) (*Instance, error)
	ListInstances(ctx context.Context) ([]*Instance, error)
	// DeleteInstance unregisters id. Its events are kept.
	DeleteInstance(ctx context.Context, id string) error

	AppendEvent(ctx context.Context, event *Event) error
	// ListEvents returns the newest events of an instance first.
	ListEvents(ctx context.Context, instanceID string, limit int) ([]*Event, error)

	Close() error
}
