package scoped

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestExecutorPreservesSubmitTimeBindings(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ns *Local) {
		ex := NewExecutor(ns, WithWorkers(2))
		defer ex.Shutdown(context.Background())

		ns.Set(nil, "tenant", "acme")
		future, err := ex.Submit(nil, func(sc *Scope) (any, error) {
			return ns.Get(sc, "tenant")
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}

		// Post-submit mutations never reach the captured snapshot.
		ns.Set(nil, "tenant", "globex")

		value, err := future.Await(context.Background())
		if err != nil {
			t.Fatalf("await: %v", err)
		}
		if value != "acme" {
			t.Fatalf("expected submit-time binding, got %v", value)
		}
	})
}

func TestExecutorWorkersDoNotLeakBindings(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ns *Local) {
		ex := NewExecutor(ns, WithWorkers(1))
		defer ex.Shutdown(context.Background())

		first, err := ex.Submit(nil, func(sc *Scope) (any, error) {
			ns.Set(sc, "scratch", true)
			return nil, nil
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if _, err := first.Await(context.Background()); err != nil {
			t.Fatalf("await first: %v", err)
		}

		second, err := ex.Submit(nil, func(sc *Scope) (any, error) {
			return ns.Has(sc, "scratch"), nil
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		leaked, err := second.Await(context.Background())
		if err != nil {
			t.Fatalf("await second: %v", err)
		}
		if leaked != false {
			t.Fatalf("expected worker reuse not to leak bindings")
		}
	})
}

func TestExecutorConcurrentSubmissions(t *testing.T) {
	ns := New(WithBackend(BackendExplicit))
	ex := NewExecutor(ns, WithWorkers(4), WithBacklog(16))
	defer ex.Shutdown(context.Background())

	ns.Set(nil, "base", 100)

	var wg sync.WaitGroup
	results := make([]any, 16)
	for i := 0; i < 16; i++ {
		i := i
		future, err := ex.Submit(nil, func(sc *Scope) (any, error) {
			raw, err := ns.Get(sc, "base")
			if err != nil {
				return nil, err
			}
			ns.Set(sc, "base", raw.(int)+i)
			return ns.Get(sc, "base")
		})
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = future.Await(context.Background())
		}()
	}
	wg.Wait()

	for i, got := range results {
		if got != 100+i {
			t.Fatalf("unit %d: expected %d, got %v", i, 100+i, got)
		}
	}
	if got := mustGet(t, ns, nil, "base"); got != 100 {
		t.Fatalf("expected root base untouched, got %v", got)
	}
}

func TestExecutorRecoversPanickedWork(t *testing.T) {
	ns := New()
	ex := NewExecutor(ns, WithWorkers(1))
	defer ex.Shutdown(context.Background())

	future, err := ex.Submit(nil, func(sc *Scope) (any, error) {
		panic("boom")
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := future.Await(context.Background()); err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("expected panic error, got %v", err)
	}

	// The worker survives the panic and serves the next unit.
	next, err := ex.Submit(nil, func(sc *Scope) (any, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("submit after panic: %v", err)
	}
	if value, err := next.Await(context.Background()); err != nil || value != "ok" {
		t.Fatalf("expected worker to survive, got %v %v", value, err)
	}
}

func TestExecutorSubmitBlockedOnFullQueueUnblocksForShutdown(t *testing.T) {
	ns := New()
	ex := NewExecutor(ns, WithWorkers(1))

	block := make(chan struct{})
	started := make(chan struct{})
	busy, err := ex.Submit(nil, func(sc *Scope) (any, error) {
		close(started)
		<-block
		return "done", nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started

	// With the sole worker busy and no backlog, this submit blocks on the
	// queue. It must neither hold up Shutdown nor panic on a closed channel.
	blockedErr := make(chan error, 1)
	go func() {
		_, err := ex.Submit(nil, func(sc *Scope) (any, error) { return nil, nil })
		blockedErr <- err
	}()

	shutdownDone := make(chan error, 1)
	go func() {
		shutdownDone <- ex.Shutdown(context.Background())
	}()

	if err := <-blockedErr; !errors.Is(err, ErrExecutorClosed) {
		t.Fatalf("expected blocked submit to abort with ErrExecutorClosed, got %v", err)
	}

	close(block)
	if err := <-shutdownDone; err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if value, err := busy.Await(context.Background()); err != nil || value != "done" {
		t.Fatalf("expected in-flight unit to finish, got %v %v", value, err)
	}
}

func TestExecutorShutdownRejectsNewWork(t *testing.T) {
	ns := New()
	ex := NewExecutor(ns, WithWorkers(1))
	if err := ex.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	// Shutdown is idempotent.
	if err := ex.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
	if _, err := ex.Submit(nil, func(sc *Scope) (any, error) { return nil, nil }); !errors.Is(err, ErrExecutorClosed) {
		t.Fatalf("expected ErrExecutorClosed, got %v", err)
	}
}
