package scoped

import (
	"sort"
	"sync"
)

// explicitEngine resolves bindings by walking the execution ancestry chain:
// the current scope, whoever invoked it, and so on, consulting each scope's
// layer stack nearest-first. The first layer that either holds the name or
// tombstones it decides the outcome; layers beyond it are never consulted.
type explicitEngine struct {
	reg *registry

	rootMu    sync.Mutex
	rootScope *Scope
}

func newExplicitEngine() *explicitEngine {
	return &explicitEngine{reg: newRegistry()}
}

func (e *explicitEngine) backend() Backend { return BackendExplicit }

func (e *explicitEngine) root() *Scope {
	e.rootMu.Lock()
	defer e.rootMu.Unlock()
	if e.rootScope == nil {
		e.rootScope = &Scope{id: newID()}
	}
	return e.rootScope
}

// resolve returns the nearest layer that defines name (tombstones included),
// along with whether that layer is the topmost layer in the whole chain.
// With an empty name it returns the nearest layer of any kind, which is what
// assignment needs.
func (e *explicitEngine) resolve(sc *Scope, name string) (*bindingLayer, bool, error) {
	walk := newLayerWalk(e.reg, sc)
	top := true
	for {
		layer, ok := walk.next()
		if !ok {
			break
		}
		if name == "" {
			return layer, top, nil
		}
		if _, found := layer.load(name); found {
			return layer, top, nil
		}
		top = false
	}
	if name == "" {
		return nil, false, errNoActiveScope
	}
	return nil, false, notBound(name)
}

func (e *explicitEngine) get(sc *Scope, name string) (any, error) {
	layer, _, err := e.resolve(sc, name)
	if err != nil {
		return nil, notBound(name)
	}
	value, _ := layer.load(name)
	if value == tombstone {
		return nil, notBound(name)
	}
	return value, nil
}

func (e *explicitEngine) set(sc *Scope, name string, value any) {
	layer, _, err := e.resolve(sc, "")
	if err != nil {
		// No ancestor owns a layer yet: open the implicit root layer on the
		// immediate scope.
		layer = e.reg.push(sc.id)
	}
	layer.store(name, value)
}

func (e *explicitEngine) del(sc *Scope, name string) error {
	layer, top, err := e.resolve(sc, name)
	if err != nil {
		return notBound(name)
	}
	value, _ := layer.load(name)
	if value == tombstone {
		// The nearest visible binding is already a tombstone.
		return notBound(name)
	}
	if top {
		if layer.wasDeleted(name) {
			// The outer value was shadowed by a delete before this entry was
			// written; removing the entry must restore the shadow, not the
			// outer value.
			layer.store(name, tombstone)
			return nil
		}
		layer.erase(name)
		return nil
	}
	// The name only exists further out. Shadow it at the nearest layer and
	// remember the delete there, leaving the outer binding untouched.
	e.set(sc, name, tombstone)
	if shadowed, _, err := e.resolve(sc, name); err == nil {
		shadowed.markDeleted(name)
	}
	return nil
}

func (e *explicitEngine) trace(sc *Scope, name string) []Provenance {
	var out []Provenance
	idx := 0
	for node := sc; node != nil; node = node.parent {
		for _, layer := range e.reg.stack(node.id) {
			value, found := layer.load(name)
			p := Provenance{
				ScopeID: node.id.String(),
				Layer:   idx,
				Found:   found,
			}
			if found {
				if value == tombstone {
					p.Deleted = true
				} else {
					p.Value = value
				}
			}
			out = append(out, p)
			idx++
		}
	}
	return out
}

func (e *explicitEngine) names(sc *Scope) []string {
	walk := newLayerWalk(e.reg, sc)
	decided := make(map[string]struct{})
	var visible []string
	for {
		layer, ok := walk.next()
		if !ok {
			break
		}
		layer.each(func(name string, value any) {
			if _, seen := decided[name]; seen {
				return
			}
			decided[name] = struct{}{}
			if value != tombstone {
				visible = append(visible, name)
			}
		})
	}
	sort.Strings(visible)
	return visible
}

func (e *explicitEngine) snapshot(sc *Scope) map[string]any {
	walk := newLayerWalk(e.reg, sc)
	decided := make(map[string]struct{})
	out := make(map[string]any)
	for {
		layer, ok := walk.next()
		if !ok {
			break
		}
		layer.each(func(name string, value any) {
			if _, seen := decided[name]; seen {
				return
			}
			decided[name] = struct{}{}
			if value != tombstone {
				out[name] = value
			}
		})
	}
	return out
}

func (e *explicitEngine) enter(sc *Scope) error {
	e.reg.push(sc.id)
	return nil
}

func (e *explicitEngine) exit(sc *Scope) error {
	e.reg.pop(sc.id)
	return nil
}

func (e *explicitEngine) enterCall(parent *Scope) *Scope {
	sc := &Scope{id: newID(), parent: parent}
	e.reg.push(sc.id)
	return sc
}

func (e *explicitEngine) exitCall(sc *Scope) {
	e.reg.release(sc.id)
}

func (e *explicitEngine) newHandleScope() *Scope {
	return &Scope{id: newID()}
}

func (e *explicitEngine) adopt(call, handle *Scope) {
	e.reg.transfer(call.id, handle.id)
}

func (e *explicitEngine) beginStep(handle, caller *Scope) {
	handle.parent = caller
}

func (e *explicitEngine) endStep(handle *Scope) {
	handle.parent = nil
}

func (e *explicitEngine) isolated(bindings map[string]any) *Scope {
	sc := &Scope{id: newID()}
	layer := e.reg.push(sc.id)
	layer.seed(bindings)
	return sc
}

func (e *explicitEngine) release(sc *Scope) {
	e.reg.release(sc.id)
}

func (e *explicitEngine) supportsStreams() bool { return true }
