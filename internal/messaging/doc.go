// Package messaging defines the transport-neutral shapes exchanged between the
// session layer and the dialogue engine: inbound envelopes and the outbound
// capability a live session exposes.
package messaging
