// Package sequencer serializes work per key while letting distinct keys run
// concurrently.
//
// Each key with pending work owns one mailbox goroutine that drains tasks in
// submission order. The goroutine exits, and the key is forgotten, as soon as
// its queue is empty. A task that returns an error or panics is logged and
// the next task for the same key still runs.
//
// Queue depth is unbounded.
package sequencer
