package scoped

import layering "github.com/goliatone/go-scoped/layering"

// Snapshot captures the bindings visible from sc as a deep-cloned map,
// nearest-wins per name and tombstones excluded. The clone detaches the
// snapshot from every live layer, so handing it to a task or worker cannot
// leak mutations back through shared references.
func (ns *Local) Snapshot(sc *Scope) map[string]any {
	return layering.Clone(ns.eng.snapshot(ns.cur(sc)))
}
