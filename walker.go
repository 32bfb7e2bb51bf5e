package scoped

// layerWalk produces the lazy, finite, non-restartable sequence of ancestor
// binding layers for a scope, nearest-first. Layers pushed later on the same
// scope come before earlier ones (LIFO), and a scope without layers is
// transparent: the walk moves straight to its ancestor.
type layerWalk struct {
	reg     *registry
	scope   *Scope
	pending []*bindingLayer
}

func newLayerWalk(reg *registry, sc *Scope) *layerWalk {
	return &layerWalk{reg: reg, scope: sc}
}

// next returns the next layer in ancestry order, or false when the chain is
// exhausted.
func (w *layerWalk) next() (*bindingLayer, bool) {
	for {
		if len(w.pending) > 0 {
			layer := w.pending[0]
			w.pending = w.pending[1:]
			return layer, true
		}
		if w.scope == nil {
			return nil, false
		}
		w.pending = w.reg.stack(w.scope.id)
		w.scope = w.scope.parent
	}
}
