// ABOUTME: Per-key FIFO executor with one mailbox goroutine per active key
// ABOUTME: Guarantees in-order, non-overlapping execution per key and isolates task failures

package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrClosed is returned for tasks enqueued after Close.
var ErrClosed = errors.New("sequencer closed")

// Task is one unit of work.
type Task func(ctx context.Context) error

type job struct {
	task Task
	done chan error
}

type mailbox struct {
	pending []job
}

// Sequencer runs tasks in order per key.
type Sequencer struct {
	mu     sync.Mutex
	queues map[string]*mailbox
	closed bool
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// New creates a sequencer. Tasks receive a context that is canceled by Close.
func New(logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sequencer{
		queues: make(map[string]*mailbox),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With("component", "sequencer"),
	}
}

// Enqueue schedules task after every task previously enqueued for key.
// The returned channel receives the task's result once it has run.
func (s *Sequencer) Enqueue(key string, task Task) <-chan error {
	done := make(chan error, 1)
	j := job{task: task, done: done}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done <- ErrClosed
		return done
	}
	if mb, ok := s.queues[key]; ok {
		mb.pending = append(mb.pending, j)
		s.mu.Unlock()
		return done
	}
	mb := &mailbox{pending: []job{j}}
	s.queues[key] = mb
	s.wg.Add(1)
	s.mu.Unlock()

	go s.drain(key, mb)
	return done
}

func (s *Sequencer) drain(key string, mb *mailbox) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(mb.pending) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		j := mb.pending[0]
		mb.pending[0] = job{}
		mb.pending = mb.pending[1:]
		s.mu.Unlock()

		j.done <- s.run(key, j.task)
	}
}

func (s *Sequencer) run(key string, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
			s.logger.Error("task panicked", "key", key, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err = task(s.ctx); err != nil {
		s.logger.Error("task failed", "key", key, "error", err)
	}
	return err
}

// Active returns the number of keys with queued or running work.
func (s *Sequencer) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

// Pending returns the number of tasks waiting behind the running one for key.
func (s *Sequencer) Pending(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mb, ok := s.queues[key]; ok {
		return len(mb.pending)
	}
	return 0
}

// Wait blocks until every queue is drained or ctx is done.
func (s *Sequencer) Wait(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rejects new tasks, waits for queued ones up to ctx, then cancels the
// task context.
func (s *Sequencer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	err := s.Wait(ctx)
	s.cancel()
	return err
}
