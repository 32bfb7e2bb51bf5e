package scoped

import (
	layering "github.com/goliatone/go-scoped/layering"
	"github.com/goliatone/go-scoped/pkg/activity"
)

// Func is a unit of work executed inside a scope.
type Func func(sc *Scope) (any, error)

// suspendable is implemented by handles whose lifetime outlives the call
// that created them. Bind transfers the exiting call's binding layer to the
// handle instead of discarding it.
type suspendable interface {
	adoptScope(ns *Local, call *Scope) bool
}

// Enter pushes a manually-delimited binding layer onto sc (the namespace
// root when sc is nil) and returns the scope the layer was opened on. Layers
// opened this way nest LIFO on the same scope, matching with-style usage.
// The native backend reports ErrUnsupportedOperation.
func (ns *Local) Enter(sc *Scope) (*Scope, error) {
	cur := ns.cur(sc)
	if err := ns.eng.enter(cur); err != nil {
		return nil, err
	}
	ns.emitScope(activity.VerbScopeEntered, cur, nil)
	return cur, nil
}

// Exit pops the most recently entered layer from sc. Popping a layer that
// was never pushed is a programming error and panics.
func (ns *Local) Exit(sc *Scope) error {
	cur := ns.cur(sc)
	if err := ns.eng.exit(cur); err != nil {
		return err
	}
	ns.emitScope(activity.VerbScopeExited, cur, nil)
	return nil
}

// Bind wraps fn so each invocation runs in a fresh private scope chained to
// the caller. The layer is torn down on every exit path — normal return,
// error, or panic — except when fn returns a suspendable handle, in which
// case lifecycle transfers to the handle so later resumptions find their
// private bindings.
func (ns *Local) Bind(fn Func) Func {
	return func(parent *Scope) (any, error) {
		call := ns.eng.enterCall(ns.cur(parent))
		ns.emitScope(activity.VerbScopeEntered, call, nil)
		result := any(nil)
		defer func() {
			if handle, ok := result.(suspendable); ok && handle.adoptScope(ns, call) {
				ns.emitScope(activity.VerbScopeTransferred, call, nil)
				return
			}
			ns.eng.exitCall(call)
			ns.emitScope(activity.VerbScopeExited, call, nil)
		}()
		var err error
		result, err = fn(call)
		return result, err
	}
}

// RunIsolated executes fn inside a brand-new scope seeded with a deep-cloned
// snapshot of the bindings visible from parent. Mutations made by fn are
// never observed by the parent scope. Convenient for thread-pool bridging.
func (ns *Local) RunIsolated(parent *Scope, fn Func) (any, error) {
	return ns.runIsolated(ns.Snapshot(parent), fn)
}

// RunIsolatedWith behaves like RunIsolated with overrides layered on top of
// the captured snapshot, strongest first.
func (ns *Local) RunIsolatedWith(parent *Scope, overrides map[string]any, fn Func) (any, error) {
	snap := layering.MergeLayers(layering.Clone(overrides), ns.Snapshot(parent))
	return ns.runIsolated(snap, fn)
}

func (ns *Local) runIsolated(bindings map[string]any, fn Func) (any, error) {
	sc := ns.eng.isolated(bindings)
	ns.emitScope(activity.VerbScopeEntered, sc, map[string]any{"isolated": true})
	defer func() {
		ns.eng.release(sc)
		ns.emitScope(activity.VerbScopeExited, sc, map[string]any{"isolated": true})
	}()
	return fn(sc)
}
