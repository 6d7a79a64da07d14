// Package store keeps the gateway's durable bookkeeping in SQLite.
//
// # Data Models
//
//   - Instance: a WhatsApp session the operator initialized. Registered
//     instances are re-initialized at boot and removed on stop or logout.
//   - Event: an append-only lifecycle log per instance (init, pairing, ready,
//     disconnected, logged_out, stopped, setup_failed, restored). Events
//     outlive their instance.
//
// Conversation state is deliberately not stored here; it lives in memory
// and is lost on restart.
//
// # SQLite Configuration
//
// The store uses modernc.org/sqlite (pure Go) with WAL mode:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// # Testing
//
// NewMockStore returns an in-memory implementation with the same semantics.
// NewSQLiteStore(":memory:") gives a real, throwaway database.
package store
