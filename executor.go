package scoped

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-scoped/pkg/activity"
)

// Future is the handle for a unit of work submitted to an Executor.
type Future struct {
	done chan struct{}

	mu    sync.Mutex
	value any
	err   error
}

// Await blocks until the work completes or ctx is cancelled.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// Done is closed when the work has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

func (f *Future) settle(value any, err error) {
	f.mu.Lock()
	f.value = value
	f.err = err
	f.mu.Unlock()
	close(f.done)
}

type job struct {
	fn       Func
	snapshot map[string]any
	future   *Future
}

// Executor runs submitted work on a fixed pool of goroutines. Each unit
// captures the bindings visible from its submitting scope at submit time and
// runs against its own isolated layer, so the reused workers never leak
// bindings from one unit into the next.
type Executor struct {
	ns   *Local
	jobs chan job
	quit chan struct{}
	wg   sync.WaitGroup

	mu     sync.Mutex
	subs   sync.WaitGroup
	closed bool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	workers int
	backlog int
}

// WithWorkers sets the pool size. Defaults to 4.
func WithWorkers(n int) ExecutorOption {
	return func(c *executorConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithBacklog sets the submit queue depth. Defaults to unbuffered.
func WithBacklog(n int) ExecutorOption {
	return func(c *executorConfig) {
		if n > 0 {
			c.backlog = n
		}
	}
}

// NewExecutor creates a worker pool bound to ns.
func NewExecutor(ns *Local, opts ...ExecutorOption) *Executor {
	cfg := executorConfig{workers: 4}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	ex := &Executor{
		ns:   ns,
		jobs: make(chan job, cfg.backlog),
		quit: make(chan struct{}),
	}
	ex.wg.Add(cfg.workers)
	for i := 0; i < cfg.workers; i++ {
		go ex.worker()
	}
	return ex
}

func (ex *Executor) worker() {
	defer ex.wg.Done()
	for j := range ex.jobs {
		ex.run(j)
	}
}

func (ex *Executor) run(j job) {
	sc := ex.ns.eng.isolated(j.snapshot)
	defer ex.ns.eng.release(sc)
	defer func() {
		if r := recover(); r != nil {
			j.future.settle(nil, fmt.Errorf("scoped: submitted work panicked: %v", r))
		}
	}()
	value, err := j.fn(sc)
	j.future.settle(value, err)
}

// Submit queues fn for execution with the bindings visible from sc, captured
// now. A nil sc submits with the namespace root's bindings.
func (ex *Executor) Submit(sc *Scope, fn Func) (*Future, error) {
	ex.mu.Lock()
	if ex.closed {
		ex.mu.Unlock()
		return nil, ErrExecutorClosed
	}
	// Register the in-flight send under the lock; Shutdown waits for it
	// before closing the channel, so the enqueue itself can block without
	// serializing other submitters.
	ex.subs.Add(1)
	ex.mu.Unlock()
	defer ex.subs.Done()

	j := job{
		fn:       fn,
		snapshot: ex.ns.Snapshot(sc),
		future:   &Future{done: make(chan struct{})},
	}
	select {
	case ex.jobs <- j:
	case <-ex.quit:
		return nil, ErrExecutorClosed
	}

	ex.ns.emitScope(activity.VerbWorkSubmitted, ex.ns.cur(sc), nil)
	return j.future, nil
}

// Shutdown stops accepting work and waits for queued units to drain, or for
// ctx. Safe to call more than once.
func (ex *Executor) Shutdown(ctx context.Context) error {
	ex.mu.Lock()
	if !ex.closed {
		ex.closed = true
		close(ex.quit)
		// Already-queued units still drain; the channel closes once the
		// last in-flight send has settled.
		go func() {
			ex.subs.Wait()
			close(ex.jobs)
		}()
	}
	ex.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		ex.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
