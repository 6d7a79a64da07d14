// ABOUTME: Session types: lifecycle status, transport events, and the Dialer/Transport seams
// ABOUTME: The whatsapp package implements these against whatsmeow

package session

import (
	"context"
	"errors"
	"time"

	"github.com/2389/afrik-gateway/internal/messaging"
)

var (
	// ErrAlreadyConnected is returned by Init for a session that is ready.
	ErrAlreadyConnected = errors.New("session already connected")
	// ErrCapacityExceeded is returned by Init once MaxSessions are registered.
	ErrCapacityExceeded = errors.New("session capacity exceeded")
	// ErrNotFound is returned for unknown session ids.
	ErrNotFound = errors.New("session not found")
	// ErrShuttingDown is returned once Shutdown has started.
	ErrShuttingDown = errors.New("supervisor shutting down")
	// ErrNotConnected is returned when sending through a session that has no live transport.
	ErrNotConnected = errors.New("session not connected")
)

// Status is a session's lifecycle stage.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusAwaitingScan Status = "awaiting_scan"
	StatusReady        Status = "ready"
	StatusDisconnected Status = "disconnected"
)

// InitResult tells an Init caller whether setup was started by this call.
type InitResult int

const (
	InitStarted InitResult = iota
	InitInProgress
)

func (r InitResult) String() string {
	if r == InitInProgress {
		return "in_progress"
	}
	return "started"
}

// EventKind classifies transport events.
type EventKind int

const (
	EventPairing EventKind = iota
	EventOpen
	EventClosed
	EventMessage
)

// Event is reported by a Transport to the supervisor.
type Event struct {
	Kind EventKind

	// PairingCode is set for EventPairing.
	PairingCode string

	// LoggedOut marks an EventClosed that must not be reconnected.
	LoggedOut bool
	Err       error

	// Message is set for EventMessage.
	Message messaging.Envelope
}

// Transport is one live protocol connection.
type Transport interface {
	messaging.Outbound

	// Connect starts the connection. Pairing and open are reported as events.
	Connect(ctx context.Context) error
	// Disconnect closes the connection and keeps the credentials.
	Disconnect()
	// Logout unlinks the device on the network side.
	Logout(ctx context.Context) error
}

// Dialer creates transports over persisted credential material.
type Dialer interface {
	// Dial loads or creates the credentials of id. Events of the returned
	// transport are passed to emit.
	Dial(ctx context.Context, id string, emit func(Event)) (Transport, error)
	// Purge deletes the credentials of id.
	Purge(id string) error
}

// InboundHandler receives accepted inbound messages. It must not block.
type InboundHandler func(messaging.Inbound)

// Info is the read-only projection of a session.
type Info struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	HasPairing  bool       `json:"hasPendingPairing"`
	ConnectedAt *time.Time `json:"connectedAt,omitempty"`
}
