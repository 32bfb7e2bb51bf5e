package scoped

import (
	"fmt"
	"sort"
	"sync"
)

// slot is the immutable per-name value chain used by the native backend. Each
// entry records the value, the context depth that wrote it, and whether the
// entry once shadowed an outer value through a delete. Slots are never
// mutated after publication; writes replace the slot pointer in the owning
// context map, so captured snapshots stay stable.
type slot struct {
	entries []slotEntry
}

type slotEntry struct {
	value    any
	depth    int
	shadowed bool
}

func (s *slot) top() (slotEntry, bool) {
	if s == nil || len(s.entries) == 0 {
		return slotEntry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

func (s *slot) replaceTop(entry slotEntry) *slot {
	entries := make([]slotEntry, len(s.entries))
	copy(entries, s.entries)
	entries[len(entries)-1] = entry
	return &slot{entries: entries}
}

func (s *slot) push(entry slotEntry) *slot {
	entries := make([]slotEntry, len(s.entries), len(s.entries)+1)
	copy(entries, s.entries)
	return &slot{entries: append(entries, entry)}
}

func (s *slot) pop() *slot {
	if len(s.entries) <= 1 {
		return nil
	}
	entries := make([]slotEntry, len(s.entries)-1)
	copy(entries, s.entries[:len(s.entries)-1])
	return &slot{entries: entries}
}

// nativeEngine implements the binding contract on top of an immutable
// snapshot capability: capturing a context copies the slot map, running under
// a snapshot hands that map to the new scope, and manual enter/exit pairs are
// not supported. Shadow and tombstone semantics live inside the per-name
// chains instead of per-scope layers.
type nativeEngine struct {
	rootMu    sync.Mutex
	rootScope *Scope
}

func newNativeEngine() *nativeEngine {
	return &nativeEngine{}
}

func (e *nativeEngine) backend() Backend { return BackendNative }

func (e *nativeEngine) root() *Scope {
	e.rootMu.Lock()
	defer e.rootMu.Unlock()
	if e.rootScope == nil {
		e.rootScope = &Scope{id: newID(), vars: make(map[string]*slot), varsMu: new(sync.RWMutex)}
	}
	return e.rootScope
}

// capture implements the snapshot capability: a shallow copy of the context
// map is a full snapshot because slots are immutable.
func capture(sc *Scope) map[string]*slot {
	sc.varsMu.RLock()
	defer sc.varsMu.RUnlock()
	out := make(map[string]*slot, len(sc.vars))
	for name, s := range sc.vars {
		out[name] = s
	}
	return out
}

func (e *nativeEngine) get(sc *Scope, name string) (any, error) {
	sc.varsMu.RLock()
	s := sc.vars[name]
	sc.varsMu.RUnlock()
	entry, ok := s.top()
	if !ok || entry.value == tombstone {
		return nil, notBound(name)
	}
	return entry.value, nil
}

func (e *nativeEngine) set(sc *Scope, name string, value any) {
	sc.varsMu.Lock()
	defer sc.varsMu.Unlock()
	if sc.vars == nil {
		sc.vars = make(map[string]*slot)
	}
	s := sc.vars[name]
	entry, ok := s.top()
	switch {
	case !ok:
		sc.vars[name] = &slot{entries: []slotEntry{{value: value, depth: sc.depth}}}
	case entry.depth == sc.depth:
		// Own entry: overwrite in place, keeping any shadow flag so later
		// deletes do not resurface an outer value this scope already hid.
		sc.vars[name] = s.replaceTop(slotEntry{value: value, depth: sc.depth, shadowed: entry.shadowed})
	default:
		sc.vars[name] = s.push(slotEntry{value: value, depth: sc.depth})
	}
}

func (e *nativeEngine) del(sc *Scope, name string) error {
	sc.varsMu.Lock()
	defer sc.varsMu.Unlock()
	s := sc.vars[name]
	entry, ok := s.top()
	if !ok || entry.value == tombstone {
		return notBound(name)
	}
	if entry.depth == sc.depth {
		if entry.shadowed {
			sc.vars[name] = s.replaceTop(slotEntry{value: tombstone, depth: sc.depth, shadowed: true})
			return nil
		}
		if popped := s.pop(); popped != nil {
			sc.vars[name] = popped
		} else {
			delete(sc.vars, name)
		}
		return nil
	}
	// Inherited entry: shadow it without touching the captured chain.
	sc.vars[name] = s.push(slotEntry{value: tombstone, depth: sc.depth, shadowed: true})
	return nil
}

func (e *nativeEngine) trace(sc *Scope, name string) []Provenance {
	sc.varsMu.RLock()
	s := sc.vars[name]
	sc.varsMu.RUnlock()
	if s == nil {
		return nil
	}
	out := make([]Provenance, 0, len(s.entries))
	// Chain entries are stored outermost-first; report nearest-first.
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		p := Provenance{
			ScopeID: sc.id.String(),
			Layer:   entry.depth,
			Found:   true,
		}
		if entry.value == tombstone {
			p.Deleted = true
		} else {
			p.Value = entry.value
		}
		out = append(out, p)
	}
	return out
}

func (e *nativeEngine) names(sc *Scope) []string {
	sc.varsMu.RLock()
	defer sc.varsMu.RUnlock()
	visible := make([]string, 0, len(sc.vars))
	for name, s := range sc.vars {
		if entry, ok := s.top(); ok && entry.value != tombstone {
			visible = append(visible, name)
		}
	}
	sort.Strings(visible)
	return visible
}

func (e *nativeEngine) snapshot(sc *Scope) map[string]any {
	sc.varsMu.RLock()
	defer sc.varsMu.RUnlock()
	out := make(map[string]any, len(sc.vars))
	for name, s := range sc.vars {
		if entry, ok := s.top(); ok && entry.value != tombstone {
			out[name] = entry.value
		}
	}
	return out
}

func (e *nativeEngine) enter(*Scope) error {
	return fmt.Errorf("scoped: native backend cannot open manual enter/exit pairs: %w", ErrUnsupportedOperation)
}

func (e *nativeEngine) exit(*Scope) error {
	return fmt.Errorf("scoped: native backend cannot open manual enter/exit pairs: %w", ErrUnsupportedOperation)
}

func (e *nativeEngine) enterCall(parent *Scope) *Scope {
	return &Scope{id: newID(), depth: parent.depth + 1, vars: capture(parent), varsMu: new(sync.RWMutex)}
}

func (e *nativeEngine) exitCall(sc *Scope) {
	sc.varsMu.Lock()
	sc.vars = nil
	sc.varsMu.Unlock()
}

func (e *nativeEngine) newHandleScope() *Scope {
	return &Scope{id: newID(), varsMu: new(sync.RWMutex)}
}

func (e *nativeEngine) adopt(call, handle *Scope) {
	// Keep the call's depth: bindings the factory wrote become the handle's
	// own entries, matching the transferred-layer behaviour.
	snap := capture(call)
	handle.varsMu.Lock()
	handle.vars = snap
	handle.depth = call.depth
	handle.varsMu.Unlock()
}

func (e *nativeEngine) beginStep(handle, caller *Scope) {
	if handle.vars == nil {
		// Transparent handle: bind to the first driver's context so step
		// mutations land where an undecorated callable's would. The guard
		// is shared along with the map.
		handle.vars = caller.vars
		handle.varsMu = caller.varsMu
		handle.depth = caller.depth
	}
}

func (e *nativeEngine) endStep(*Scope) {}

func (e *nativeEngine) isolated(bindings map[string]any) *Scope {
	sc := &Scope{id: newID(), vars: make(map[string]*slot, len(bindings)), varsMu: new(sync.RWMutex)}
	for name, value := range bindings {
		sc.vars[name] = &slot{entries: []slotEntry{{value: value, depth: 0}}}
	}
	return sc
}

func (e *nativeEngine) release(sc *Scope) {
	sc.varsMu.Lock()
	sc.vars = nil
	sc.varsMu.Unlock()
}

func (e *nativeEngine) supportsStreams() bool { return false }
