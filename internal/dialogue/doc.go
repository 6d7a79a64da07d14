// Package dialogue implements the Afrikmoney conversation state machine.
//
// # Routing
//
// Every inbound message runs through the same pre-routing before any flow
// handler sees it:
//
//  1. Messages without text or interactive reply, and status broadcasts, are dropped.
//  2. A composing/paused presence pair is sent (best effort).
//  3. On first contact the contact card and a short prompt go out once.
//  4. The disclaimer step only understands 1 (accept) and 0 (quit).
//  5. "0" cancels any flow except the main menu and the optional operator
//     numbers of registration, where it means "none".
//  6. Idle users and the main menu authenticate against the backend and
//     dispatch on the menu choice 1..6.
//  7. Anything else goes to the active flow's handler.
//
// # Flows
//
// Each flow keeps its own typed data in the conversation state (see
// conversation.FlowData). Input validation failures re-prompt the same step.
//
// # Payment confirmation
//
// After a merchant payment is submitted the engine polls the status endpoint
// on timers, outside of the user's sequenced chain. Only the terminal outcome
// (success, failure, timeout) is handed back to the sequencer so that the
// conversation state is never touched concurrently.
package dialogue
