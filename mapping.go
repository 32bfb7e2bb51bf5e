package scoped

// Map exposes the same binding engine through an item-style interface,
// matching mapping use where keys come from data rather than hardcoded
// attribute names. Shadow and tombstone semantics are identical to the
// attribute façade because both route through the same resolver.
type Map struct {
	ns *Local
}

// MapOption configures a Map on construction.
type MapOption func(*mapConfig)

type mapConfig struct {
	initial map[string]any
}

// WithInitial seeds the namespace root with the given bindings through the
// ordinary set path, so later scopes can shadow and restore them normally.
func WithInitial(initial map[string]any) MapOption {
	return func(cfg *mapConfig) {
		cfg.initial = initial
	}
}

// NewMap wraps ns in the mapping façade.
func NewMap(ns *Local, opts ...MapOption) *Map {
	cfg := mapConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	for key, value := range cfg.initial {
		ns.Set(nil, key, value)
	}
	return &Map{ns: ns}
}

// Namespace returns the underlying namespace.
func (m *Map) Namespace() *Local {
	return m.ns
}

// GetItem returns the value for key visible from sc.
func (m *Map) GetItem(sc *Scope, key string) (any, error) {
	return m.ns.Get(sc, key)
}

// SetItem binds key in the nearest layer of sc's ancestry.
func (m *Map) SetItem(sc *Scope, key string, value any) {
	m.ns.Set(sc, key, value)
}

// DeleteItem removes the visible binding for key.
func (m *Map) DeleteItem(sc *Scope, key string) error {
	return m.ns.Delete(sc, key)
}

// Has reports key containment from sc.
func (m *Map) Has(sc *Scope, key string) bool {
	return m.ns.Has(sc, key)
}

// Keys returns the visible keys from sc in sorted order.
func (m *Map) Keys(sc *Scope) []string {
	return m.ns.Names(sc)
}

// Len returns the number of visible keys from sc.
func (m *Map) Len(sc *Scope) int {
	return len(m.ns.Names(sc))
}
