// Package session supervises the fleet of WhatsApp sessions ("instances").
//
// # Lifecycle
//
//	Init ──► initializing ──► awaiting_scan ──► ready
//	                 │                │            │
//	                 └────────────────┴──► disconnected ──► (reconnect) ──► ...
//
// A close that is not a logout keeps the session and reconnects with the
// stored credentials, forever, with capped exponential backoff and jitter.
// A logout close, or Stop, purges the credentials and frees the id.
// A Dial error removes the session and records setup_failed.
//
// Every connection attempt gets a new generation number. Events carry the
// generation of the transport that produced them, and events of superseded
// generations are ignored.
//
// # Inbound
//
// Messages that are self-sent, protocol-level, status broadcasts, or
// redelivered (see package dedupe) are dropped. Everything else is passed to
// the InboundHandler with an outbound capability that always sends through
// the session's current transport.
//
// # Persistence
//
// Registered ids and a lifecycle log go to store.Store so that RestoreAll can
// bring sessions back after a restart and operators can inspect history.
package session
