package scoped

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Stream is an asynchronous suspendable callable: a generator driven with
// context-aware resumptions. Like a task, it takes its binding snapshot at
// creation time and runs every step against its own isolated layer; unlike a
// task it yields a sequence of values on demand.
//
// Streams require per-resumption context control from the backend. The
// native backend does not provide it, so NewStream fails fast with
// ErrUnsupportedOperation there rather than silently losing isolation.
type Stream[T any] struct {
	ns    *Local
	scope *Scope
	body  func(context.Context, *StreamYielder[T], *Scope) error

	mu      sync.Mutex
	state   GeneratorState
	started bool

	ctx    context.Context
	cancel context.CancelFunc
	resume chan resumeOp
	events chan yieldEvt[T]
}

// StreamYielder is the body-side half of a stream's suspension bridge.
type StreamYielder[T any] struct {
	s *Stream[T]
}

// Yield suspends the stream body with value and blocks until the driver
// resumes or the stream context is cancelled.
func (y *StreamYielder[T]) Yield(ctx context.Context, value T) (any, error) {
	select {
	case y.s.events <- yieldEvt[T]{value: value}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case op := <-y.s.resume:
		if op.close {
			return nil, ErrClosed
		}
		if op.fault != nil {
			return nil, op.fault
		}
		return op.value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NewStream creates an asynchronous suspendable callable over ns, capturing
// the bindings visible from parent synchronously at creation.
func NewStream[T any](ns *Local, parent *Scope, body func(context.Context, *StreamYielder[T], *Scope) error) (*Stream[T], error) {
	if !ns.eng.supportsStreams() {
		return nil, fmt.Errorf("scoped: %s backend lacks per-resumption context control for streams: %w",
			ns.eng.backend(), ErrUnsupportedOperation)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream[T]{
		ns:     ns,
		scope:  ns.eng.isolated(ns.Snapshot(parent)),
		body:   body,
		ctx:    ctx,
		cancel: cancel,
		resume: make(chan resumeOp),
		events: make(chan yieldEvt[T]),
	}, nil
}

// State reports the stream's lifecycle state.
func (s *Stream[T]) State() GeneratorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Scope returns the stream's isolated scope.
func (s *Stream[T]) Scope() *Scope {
	return s.scope
}

// Next resumes the body and waits for the next value, a completion, or ctx
// cancellation. A cancelled wait abandons the in-flight step: its result is
// collected in the background and discarded.
func (s *Stream[T]) Next(ctx context.Context) (T, bool, error) {
	value, more, err := s.step(ctx, resumeOp{})
	if errors.Is(err, ErrStreamClosed) {
		var zero T
		return zero, false, nil
	}
	return value, more, err
}

// Send resumes the body delivering value to its pending Yield.
func (s *Stream[T]) Send(ctx context.Context, value any) (T, bool, error) {
	if value != nil {
		s.mu.Lock()
		fresh := !s.started
		s.mu.Unlock()
		if fresh {
			var zero T
			return zero, false, fmt.Errorf("scoped: cannot send a value to an unstarted stream")
		}
	}
	return s.step(ctx, resumeOp{value: value})
}

// Throw resumes the body delivering fault to its pending Yield.
func (s *Stream[T]) Throw(ctx context.Context, fault error) (T, bool, error) {
	if fault == nil {
		var zero T
		return zero, false, fmt.Errorf("scoped: throw requires a non-nil fault")
	}
	return s.step(ctx, resumeOp{fault: fault})
}

// Close signals the body to stop. A suspended body observes ErrClosed from
// its pending Yield, runs cleanup with its own layer active, and exits; the
// stream context is cancelled so blocked awaits unwind too.
func (s *Stream[T]) Close(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case GeneratorClosed, GeneratorFaulted:
		s.mu.Unlock()
		return nil
	case GeneratorRunning:
		s.mu.Unlock()
		return ErrGeneratorRunning
	case GeneratorCreated:
		s.state = GeneratorClosed
		s.cancel()
		s.ns.eng.release(s.scope)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.cancel()
	_, more, err := s.step(ctx, resumeOp{close: true})
	if more {
		s.mu.Lock()
		s.state = GeneratorFaulted
		s.ns.eng.release(s.scope)
		s.mu.Unlock()
		return fmt.Errorf("scoped: stream ignored close and yielded")
	}
	if err != nil && !errors.Is(err, ErrClosed) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Stream[T]) step(ctx context.Context, op resumeOp) (T, bool, error) {
	var zero T

	s.mu.Lock()
	switch s.state {
	case GeneratorRunning:
		s.mu.Unlock()
		return zero, false, ErrGeneratorRunning
	case GeneratorClosed, GeneratorFaulted:
		s.mu.Unlock()
		return zero, false, ErrStreamClosed
	}
	s.state = GeneratorRunning
	fresh := !s.started
	s.started = true
	s.mu.Unlock()

	if fresh {
		go s.run(op)
	} else {
		// The body may race past the resume when the stream context is
		// cancelled mid-yield, so accept its completion event here too.
		select {
		case s.resume <- op:
		case evt := <-s.events:
			s.finish(evt)
			return evt.value, !evt.done, evt.err
		case <-ctx.Done():
			s.mu.Lock()
			s.state = GeneratorSuspended
			s.mu.Unlock()
			return zero, false, ctx.Err()
		}
	}

	select {
	case evt := <-s.events:
		s.finish(evt)
		return evt.value, !evt.done, evt.err
	case <-ctx.Done():
		go func() {
			s.finish(<-s.events)
		}()
		return zero, false, ctx.Err()
	}
}

func (s *Stream[T]) finish(evt yieldEvt[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case evt.done && evt.err != nil:
		s.state = GeneratorFaulted
		s.cancel()
		s.ns.eng.release(s.scope)
	case evt.done:
		s.state = GeneratorClosed
		s.cancel()
		s.ns.eng.release(s.scope)
	default:
		s.state = GeneratorSuspended
	}
}

func (s *Stream[T]) run(first resumeOp) {
	if first.close {
		s.events <- yieldEvt[T]{done: true}
		return
	}
	var err error
	if first.fault != nil {
		err = first.fault
	} else {
		err = s.body(s.ctx, &StreamYielder[T]{s: s}, s.scope)
	}
	if errors.Is(err, ErrClosed) {
		err = nil
	}
	s.events <- yieldEvt[T]{done: true, err: err}
}
