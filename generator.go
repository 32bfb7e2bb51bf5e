package scoped

import (
	"errors"
	"fmt"
	"sync"
)

// GeneratorState tracks the lifecycle of a suspendable handle.
type GeneratorState int32

const (
	// GeneratorCreated means the body has not started executing.
	GeneratorCreated GeneratorState = iota
	// GeneratorSuspended means the body is parked at a yield point.
	GeneratorSuspended
	// GeneratorRunning means one resumption step is in flight.
	GeneratorRunning
	// GeneratorFaulted means the body returned an error.
	GeneratorFaulted
	// GeneratorClosed means the body completed or was closed.
	GeneratorClosed
)

func (s GeneratorState) String() string {
	switch s {
	case GeneratorCreated:
		return "created"
	case GeneratorSuspended:
		return "suspended"
	case GeneratorRunning:
		return "running"
	case GeneratorFaulted:
		return "faulted"
	case GeneratorClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type resumeOp struct {
	value any
	fault error
	close bool
}

type yieldEvt[T any] struct {
	value T
	done  bool
	err   error
}

// Generator is a synchronous suspendable callable. Each resumption step
// (Next, Send, Throw, Close) runs the body with the handle's own bindings as
// the nearest ancestor layer for the duration of that single step; once the
// step yields back, the driver's own ancestry is untouched.
//
// A generator created directly is transparent: its reads and writes resolve
// against whoever is driving it. Returning the generator from a Bind-wrapped
// factory transfers the factory's scope lifecycle to the handle, giving it
// private bindings that survive across resumptions.
//
// Handles are single-driver: resuming a running generator is rejected, and
// two goroutines must not race on the same handle. Abandoned generators hold
// a parked goroutine until closed; call Close when discarding one early.
type Generator[T any] struct {
	ns    *Local
	scope *Scope
	body  func(*Yielder[T], *Scope) error

	mu      sync.Mutex
	state   GeneratorState
	started bool
	adopted bool

	resume chan resumeOp
	events chan yieldEvt[T]
}

// Yielder is the body-side half of the suspension bridge.
type Yielder[T any] struct {
	g *Generator[T]
}

// Yield suspends the body with value and blocks until the driver resumes.
// The return values surface whatever the driver injected: the sent value for
// Send, the fault for Throw (ErrClosed for Close). A body that intercepts
// ErrClosed may run cleanup — its own bindings are still active — but must
// return rather than yield again.
func (y *Yielder[T]) Yield(value T) (any, error) {
	y.g.events <- yieldEvt[T]{value: value}
	op := <-y.g.resume
	if op.close {
		return nil, ErrClosed
	}
	if op.fault != nil {
		return nil, op.fault
	}
	return op.value, nil
}

// Generate creates a suspendable callable over ns. The body receives the
// handle's continuation scope and a Yielder; it runs lazily on the first
// resumption.
func Generate[T any](ns *Local, body func(*Yielder[T], *Scope) error) *Generator[T] {
	return &Generator[T]{
		ns:     ns,
		scope:  ns.eng.newHandleScope(),
		body:   body,
		resume: make(chan resumeOp),
		events: make(chan yieldEvt[T]),
	}
}

// adoptScope implements suspendable for Bind's layer transfer.
func (g *Generator[T]) adoptScope(ns *Local, call *Scope) bool {
	if ns != g.ns {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.adopted || g.state != GeneratorCreated {
		return false
	}
	g.ns.eng.adopt(call, g.scope)
	g.adopted = true
	return true
}

// State reports the handle's current lifecycle state.
func (g *Generator[T]) State() GeneratorState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Scope returns the handle's continuation scope.
func (g *Generator[T]) Scope() *Scope {
	return g.scope
}

// Next resumes the body from caller's scope. It returns the yielded value
// and true while the body keeps yielding; (zero, false, nil) once the body
// has completed or the handle was closed.
func (g *Generator[T]) Next(caller *Scope) (T, bool, error) {
	value, more, err := g.step(caller, resumeOp{})
	if errors.Is(err, ErrGeneratorClosed) {
		var zero T
		return zero, false, nil
	}
	return value, more, err
}

// Send resumes the body, delivering value as the result of its pending
// Yield. Sending a non-nil value to an unstarted generator is an error.
func (g *Generator[T]) Send(caller *Scope, value any) (T, bool, error) {
	if value != nil {
		g.mu.Lock()
		fresh := !g.started
		g.mu.Unlock()
		if fresh {
			var zero T
			return zero, false, fmt.Errorf("scoped: cannot send a value to an unstarted generator")
		}
	}
	return g.step(caller, resumeOp{value: value})
}

// Throw resumes the body, delivering fault as the result of its pending
// Yield. A body that does not intercept the fault transitions to Faulted and
// the fault propagates back to the driver.
func (g *Generator[T]) Throw(caller *Scope, fault error) (T, bool, error) {
	if fault == nil {
		var zero T
		return zero, false, fmt.Errorf("scoped: throw requires a non-nil fault")
	}
	return g.step(caller, resumeOp{fault: fault})
}

// Close delivers the close signal. A suspended body observes ErrClosed from
// its pending Yield and may run cleanup with its own bindings active before
// returning. Yielding again after close is a fault. Close is idempotent on
// finished handles.
func (g *Generator[T]) Close(caller *Scope) error {
	g.mu.Lock()
	switch g.state {
	case GeneratorClosed, GeneratorFaulted:
		g.mu.Unlock()
		return nil
	case GeneratorRunning:
		g.mu.Unlock()
		return ErrGeneratorRunning
	case GeneratorCreated:
		g.state = GeneratorClosed
		g.ns.eng.release(g.scope)
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	_, more, err := g.step(caller, resumeOp{close: true})
	if more {
		// Body ignored the close signal and yielded again. Fault the handle
		// and abandon the body: it stays parked at its yield point.
		g.mu.Lock()
		g.state = GeneratorFaulted
		g.ns.eng.release(g.scope)
		g.mu.Unlock()
		return fmt.Errorf("scoped: generator ignored close and yielded")
	}
	if err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return nil
}

// step performs one resumption: it makes the handle's bindings nearest for
// the duration of the step, forwards op to the body, and restores the
// driver's ancestry once the body yields, completes, or faults.
func (g *Generator[T]) step(caller *Scope, op resumeOp) (T, bool, error) {
	var zero T

	g.mu.Lock()
	switch g.state {
	case GeneratorRunning:
		g.mu.Unlock()
		return zero, false, ErrGeneratorRunning
	case GeneratorClosed, GeneratorFaulted:
		g.mu.Unlock()
		return zero, false, ErrGeneratorClosed
	}
	g.state = GeneratorRunning
	g.ns.eng.beginStep(g.scope, g.ns.cur(caller))
	fresh := !g.started
	g.started = true
	g.mu.Unlock()

	if fresh {
		go g.run(op)
	} else {
		g.resume <- op
	}
	evt := <-g.events

	g.mu.Lock()
	g.ns.eng.endStep(g.scope)
	switch {
	case evt.done && evt.err != nil:
		g.state = GeneratorFaulted
		g.ns.eng.release(g.scope)
	case evt.done:
		g.state = GeneratorClosed
		g.ns.eng.release(g.scope)
	default:
		g.state = GeneratorSuspended
	}
	g.mu.Unlock()

	return evt.value, !evt.done, evt.err
}

// run executes the body once, translating its return into the final event.
// A body that propagates ErrClosed after a close request counts as a clean
// close, mirroring an intercepted close signal that still exits.
func (g *Generator[T]) run(first resumeOp) {
	if first.close {
		g.events <- yieldEvt[T]{done: true}
		return
	}
	var err error
	if first.fault != nil {
		err = first.fault
	} else {
		err = g.body(&Yielder[T]{g: g}, g.scope)
	}
	if errors.Is(err, ErrClosed) {
		err = nil
	}
	g.events <- yieldEvt[T]{done: true, err: err}
}
