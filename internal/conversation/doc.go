// Package conversation holds per-user dialogue state in memory.
//
// # State
//
// Each WhatsApp user (keyed by normalized id, not by chat thread) has one
// State: the active flow and step, the flow's typed data, two sticky flags,
// and the last activity time. Step is always empty when no flow is active.
//
// Flow data is a tagged union. Callers define one struct per flow and
// implement FlowData; Enter pairs a flow with its data and Set drops data
// that belongs to another flow.
//
// # Clearing
//
// SoftClear resets flow, step, data and cached phone while keeping
// ConsentAccepted and WelcomeCardSent. HardClear removes the entry, so the
// next message starts over from the contact card.
//
// # Concurrency
//
// The Store map is mutex-guarded. A State is mutated only from its user's
// sequenced task chain, so State itself carries no lock.
//
// Nothing here is persisted; state lives for the process lifetime, or until
// Sweep evicts it after a configured idle period.
package conversation
