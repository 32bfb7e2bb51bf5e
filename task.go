package scoped

import (
	"context"
	"sync"

	"github.com/goliatone/go-scoped/pkg/activity"
)

// Task is a concurrent unit of work with its own isolated binding layer,
// established from a snapshot of the ambient bindings at creation time (not
// at first execution). Mutations the task makes are visible to the task and
// its nested transparent calls, never to the creating scope or to siblings.
type Task[T any] struct {
	ns    *Local
	scope *Scope

	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	value T
	err   error
}

// Spawn starts fn as a task branching from parent. See SpawnContext.
func Spawn[T any](ns *Local, parent *Scope, fn func(context.Context, *Scope) (T, error)) *Task[T] {
	return SpawnContext(context.Background(), ns, parent, fn)
}

// SpawnContext captures the bindings visible from parent synchronously in
// the caller, seeds an isolated scope with the deep-cloned snapshot, and
// runs fn in its own goroutine. Cancelling ctx (or the task) requests a stop
// through fn's context; fn's cleanup still runs with the task's own layer
// active, and the scope is released on every exit path.
func SpawnContext[T any](ctx context.Context, ns *Local, parent *Scope, fn func(context.Context, *Scope) (T, error)) *Task[T] {
	sc := ns.eng.isolated(ns.Snapshot(parent))
	tctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{
		ns:     ns,
		scope:  sc,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	ns.emitScope(activity.VerbTaskSpawned, sc, nil)

	go func() {
		defer close(t.done)
		defer cancel()
		defer ns.eng.release(sc)
		value, err := fn(tctx, sc)
		t.mu.Lock()
		t.value, t.err = value, err
		t.mu.Unlock()
	}()
	return t
}

// Await blocks until the task finishes or ctx is cancelled.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel requests cancellation through the task's context. The task's own
// cleanup still observes its private bindings.
func (t *Task[T]) Cancel() {
	t.cancel()
}

// Done is closed when the task has finished and its scope is released.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Scope returns the task's isolated scope, valid until the task finishes.
func (t *Task[T]) Scope() *Scope {
	return t.scope
}
