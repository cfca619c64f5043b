// Package tasks runs background work so that no failure goes unnoticed:
// every task can be awaited or cancelled, and errors and panics are logged.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrShutdown is returned by tasks started after Shutdown.
	ErrShutdown = errors.New("supervisor shut down")

	// ErrPanic wraps a recovered panic.
	ErrPanic = errors.New("task panicked")
)

// FailureHook is called once per failed task, e.g. to bump a counter.
// Cancellation is not a failure.
type FailureHook func(name string, err error)

type Option func(*Supervisor)

func WithFailureHook(h FailureHook) Option {
	return func(s *Supervisor) { s.onFailure = h }
}

// Supervisor owns a set of background tasks sharing one parent context.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger

	onFailure FailureHook

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewSupervisor(log *zap.Logger, opts ...Option) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{ctx: ctx, cancel: cancel, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Task is a handle to one running unit of work.
type Task struct {
	ID   string
	Name string

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Go starts fn in its own goroutine. fn's context is cancelled by
// Task.Cancel or Supervisor.Shutdown.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) *Task {
	t := &Task{ID: uuid.NewString(), Name: name, done: make(chan struct{})}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		t.cancel = func() {}
		t.err = ErrShutdown
		close(t.done)
		return t
	}
	ctx, cancel := context.WithCancel(s.ctx)
	t.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer close(t.done)
		defer cancel()

		t.err = s.run(ctx, t, fn)
		s.report(t)
	}()
	return t
}

func (s *Supervisor) run(ctx context.Context, t *Task, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("task panicked",
				zap.String("task", t.Name),
				zap.String("task_id", t.ID),
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()
	return fn(ctx)
}

func (s *Supervisor) report(t *Task) {
	switch {
	case t.err == nil:
		s.log.Debug("task finished", zap.String("task", t.Name), zap.String("task_id", t.ID))
	case errors.Is(t.err, context.Canceled):
		s.log.Info("task cancelled", zap.String("task", t.Name), zap.String("task_id", t.ID))
	default:
		s.log.Error("task failed", zap.String("task", t.Name), zap.String("task_id", t.ID), zap.Error(t.err))
		if s.onFailure != nil {
			s.onFailure(t.Name, t.err)
		}
	}
}

// Wait blocks until the task finishes and returns its error, or returns
// ctx.Err() if ctx ends first.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel asks the task to stop. It does not wait.
func (t *Task) Cancel() { t.cancel() }

func (t *Task) Done() <-chan struct{} { return t.done }

// Drain waits for every running task without cancelling them.
func (s *Supervisor) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown refuses new tasks, cancels running ones and waits for them to
// return until ctx ends.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	if err := s.Drain(ctx); err != nil {
		return fmt.Errorf("waiting for tasks: %w", err)
	}
	return nil
}
