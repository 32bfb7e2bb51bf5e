package scoped

import (
	"github.com/goliatone/go-scoped/internal/hydrate"
)

// Hydrate decodes the bindings visible from sc into a typed value T. Keys in
// the snapshot map onto T's JSON field names; extra keys are ignored.
func Hydrate[T any](ns *Local, sc *Scope) (T, error) {
	dec := hydrate.NewDecoder[T]()
	return dec.Decode(ns.hydrateContext(sc), ns.Snapshot(sc))
}

// HydrateStrict decodes like Hydrate but rejects snapshot keys that do not
// map to a field of T.
func HydrateStrict[T any](ns *Local, sc *Scope) (T, error) {
	dec := hydrate.NewDecoder[T](hydrate.WithDisallowUnknownFields[T]())
	return dec.Decode(ns.hydrateContext(sc), ns.Snapshot(sc))
}

func (ns *Local) hydrateContext(sc *Scope) hydrate.Context {
	return hydrate.Context{
		Namespace: ns.name,
		ScopeID:   ns.cur(sc).id.String(),
	}
}
