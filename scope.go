package scoped

import "sync"

// Scope is the handle for one logical unit of execution: a call entered via
// Enter or Bind, a suspendable handle's continuation, or a task. Scopes are
// passed down explicitly (never discovered through runtime introspection) and
// the parent link records actual dynamic call order.
//
// A Scope is opaque; all binding operations go through the owning Local.
type Scope struct {
	id ID

	// parent is the explicit ancestor link followed by the chain walker.
	// The suspension bridge swaps it in and out around a single resumption
	// step; the step protocol's channel hand-off orders those writes against
	// the body's reads.
	parent *Scope

	// Native backend state: an immutable-context snapshot expressed as a
	// copy-on-write map of per-name slot chains, plus the entry depth used
	// to tell own writes from inherited ones. Nil for the explicit backend.
	//
	// varsMu guards the map itself; slots are immutable once published.
	// Transparent handles share the pointer with their driver's scope so
	// writes through either side serialize on the same guard.
	vars   map[string]*slot
	varsMu *sync.RWMutex
	depth  int
}

// ID returns the scope's identity token.
func (s *Scope) ID() ID {
	if s == nil {
		return ID{}
	}
	return s.id
}

// ancestry yields s and its ancestors nearest-first.
func (s *Scope) ancestry(fn func(*Scope) bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if !fn(cur) {
			return
		}
	}
}
