// Package gateway wires the afrik-gateway components together and serves
// the management HTTP API.
//
// # Components
//
//	whatsapp.Dialer ─► session.Supervisor ─► dialogue.Dispatcher ─► sequencer ─► dialogue.Engine
//	                         │                                                        │
//	                         └──────────── store (registry, lifecycle log)            └─► backend.Client
//
// Run restores every registered session, starts the idle-conversation
// sweeper and serves the API. Shutdown disconnects sessions without logging
// them out, so they come back on the next start.
//
// # Management API
//
//	GET  /health                   public liveness
//	GET  /ping-api                 backend reachability (502 when unreachable)
//	POST /instances/init/{id}      start a session
//	GET  /instances/status         all sessions
//	GET  /instances/status/{id}    one session
//	GET  /instances/qr/{id}        pending pairing code
//	POST /instances/stop/{id}      log out and forget a session
//	GET  /instances/events/{id}    lifecycle log, newest first
//
// Everything except /health requires an API key or a bearer token (see
// package auth). Ids match ^[a-zA-Z0-9_-]{3,50}$. Every client IP gets a
// global request budget, and init/stop draw from a second, smaller one.
package gateway
