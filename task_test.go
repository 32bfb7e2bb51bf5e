package scoped

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTaskSeesCreationTimeSnapshot(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ns *Local) {
		ns.Set(nil, "color", "red")

		gate := make(chan struct{})
		task := Spawn(ns, nil, func(ctx context.Context, sc *Scope) (any, error) {
			<-gate
			return ns.Get(sc, "color")
		})

		// Mutations after spawn never reach the task's snapshot.
		ns.Set(nil, "color", "blue")
		close(gate)

		value, err := task.Await(context.Background())
		if err != nil {
			t.Fatalf("await: %v", err)
		}
		if value != "red" {
			t.Fatalf("expected creation-time value, got %v", value)
		}
	})
}

func TestTaskMutationsStayPrivate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ns *Local) {
		ns.Set(nil, "color", "red")

		task := Spawn(ns, nil, func(ctx context.Context, sc *Scope) (any, error) {
			ns.Set(sc, "color", "green")
			ns.Set(sc, "scratch", 1)
			return ns.Get(sc, "color")
		})

		value, err := task.Await(context.Background())
		if err != nil {
			t.Fatalf("await: %v", err)
		}
		if value != "green" {
			t.Fatalf("expected task-local value, got %v", value)
		}
		if got := mustGet(t, ns, nil, "color"); got != "red" {
			t.Fatalf("expected root untouched, got %v", got)
		}
		if ns.Has(nil, "scratch") {
			t.Fatalf("expected task-local key invisible at root")
		}
	})
}

func TestSiblingTasksAreIsolated(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ns *Local) {
		ns.Set(nil, "id", 0)

		ready := make(chan struct{})
		spawnWorker := func(id int) *Task[any] {
			return Spawn(ns, nil, func(ctx context.Context, sc *Scope) (any, error) {
				ns.Set(sc, "id", id)
				<-ready
				return ns.Get(sc, "id")
			})
		}
		one := spawnWorker(1)
		two := spawnWorker(2)
		close(ready)

		v1, err1 := one.Await(context.Background())
		v2, err2 := two.Await(context.Background())
		if err1 != nil || err2 != nil {
			t.Fatalf("await: %v %v", err1, err2)
		}
		if v1 != 1 || v2 != 2 {
			t.Fatalf("expected isolated ids, got %v and %v", v1, v2)
		}
		if got := mustGet(t, ns, nil, "id"); got != 0 {
			t.Fatalf("expected root id untouched, got %v", got)
		}
	})
}

func TestSharedScopeConcurrentMutation(t *testing.T) {
	// Writes to a shared scope race against bound calls, spawns, and
	// snapshot readers entering from it. Run with -race.
	forEachBackend(t, func(t *testing.T, ns *Local) {
		ns.Set(nil, "color", "red")

		const iterations = 200
		var wg sync.WaitGroup
		wg.Add(4)

		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				ns.Set(nil, "counter", i)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				if _, err := ns.Bind(func(sc *Scope) (any, error) {
					return ns.Get(sc, "color")
				})(nil); err != nil {
					t.Errorf("bound call: %v", err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				task := Spawn(ns, nil, func(ctx context.Context, sc *Scope) (any, error) {
					return ns.Get(sc, "color")
				})
				if value, err := task.Await(context.Background()); err != nil || value != "red" {
					t.Errorf("task saw %v, %v", value, err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				ns.Snapshot(nil)
				ns.Names(nil)
			}
		}()

		wg.Wait()

		if got := mustGet(t, ns, nil, "counter"); got != iterations-1 {
			t.Fatalf("expected last write visible, got %v", got)
		}
		if got := mustGet(t, ns, nil, "color"); got != "red" {
			t.Fatalf("expected color untouched, got %v", got)
		}
	})
}

func TestTaskCancelReachesBody(t *testing.T) {
	forEachBackend(t, func(t *testing.T, ns *Local) {
		ns.Set(nil, "resource", "file")

		sawResource := make(chan any, 1)
		task := Spawn(ns, nil, func(ctx context.Context, sc *Scope) (any, error) {
			<-ctx.Done()
			// Cleanup still runs with the task's own bindings.
			value, _ := ns.Get(sc, "resource")
			sawResource <- value
			return nil, ctx.Err()
		})

		task.Cancel()
		_, err := task.Await(context.Background())
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancellation error, got %v", err)
		}
		if got := <-sawResource; got != "file" {
			t.Fatalf("expected cleanup to see binding, got %v", got)
		}
	})
}

func TestTaskAwaitHonoursContext(t *testing.T) {
	ns := New()
	block := make(chan struct{})
	task := Spawn(ns, nil, func(ctx context.Context, sc *Scope) (any, error) {
		<-block
		return nil, nil
	})
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := task.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestTaskDoneChannel(t *testing.T) {
	ns := New()
	task := Spawn(ns, nil, func(ctx context.Context, sc *Scope) (any, error) {
		return 42, nil
	})
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected task to finish")
	}
	value, err := task.Await(context.Background())
	if err != nil || value != 42 {
		t.Fatalf("unexpected result: %v %v", value, err)
	}
}
