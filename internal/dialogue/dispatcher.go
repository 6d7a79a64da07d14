// ABOUTME: Dispatcher feeds inbound messages onto per-user sequenced chains
// ABOUTME: All messages from one user run in arrival order, across sessions

package dialogue

import (
	"context"

	"github.com/2389/afrik-gateway/internal/messaging"
)

// Dispatcher hands inbound messages to the engine through a Scheduler.
type Dispatcher struct {
	engine *Engine
	sched  Scheduler
}

// NewDispatcher creates a dispatcher. sched should be the engine's scheduler.
func NewDispatcher(engine *Engine, sched Scheduler) *Dispatcher {
	return &Dispatcher{engine: engine, sched: sched}
}

// Dispatch enqueues in on its sender's chain and returns the handling result.
func (d *Dispatcher) Dispatch(in messaging.Inbound) <-chan error {
	key := messaging.UserID(in.Envelope.Chat)
	return d.sched.Enqueue(key, func(ctx context.Context) error {
		return d.engine.Handle(ctx, in)
	})
}
