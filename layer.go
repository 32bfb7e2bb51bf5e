package scoped

import "sync"

// tombstoneType is the marker stored in a layer when a name is shadow-deleted.
// It is unexported so user data can never equal the sentinel.
type tombstoneType struct{}

var tombstone any = tombstoneType{}

// bindingLayer is one private name→value mapping owned by a single scope
// stack position. Deleted names are remembered in deleted so a later delete
// of the same name re-tombstones instead of resurfacing the outer value.
//
// Ancestor layers are readable from concurrently running descendant scopes,
// so every access goes through the layer mutex. Registry structure is guarded
// separately by the registry lock.
type bindingLayer struct {
	mu      sync.RWMutex
	values  map[string]any
	deleted map[string]struct{}
}

func newBindingLayer() *bindingLayer {
	return &bindingLayer{values: make(map[string]any)}
}

func (l *bindingLayer) load(name string) (any, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.values[name]
	return v, ok
}

func (l *bindingLayer) store(name string, value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values[name] = value
}

func (l *bindingLayer) erase(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.values, name)
}

func (l *bindingLayer) markDeleted(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deleted == nil {
		l.deleted = make(map[string]struct{})
	}
	l.deleted[name] = struct{}{}
}

func (l *bindingLayer) wasDeleted(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.deleted[name]
	return ok
}

// each invokes fn for every binding in the layer, tombstones included.
func (l *bindingLayer) each(fn func(name string, value any)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for name, value := range l.values {
		fn(name, value)
	}
}

// seed bulk-loads initial bindings. Used when materialising snapshot layers
// for tasks and isolated runs.
func (l *bindingLayer) seed(bindings map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, value := range bindings {
		l.values[name] = value
	}
}
