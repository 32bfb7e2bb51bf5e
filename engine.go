package scoped

// Backend selects the binding engine constructed for a namespace.
type Backend string

const (
	// BackendExplicit walks the execution ancestry chain through explicit
	// parent links, resolving against per-scope layer stacks.
	BackendExplicit Backend = "explicit"
	// BackendNative builds on an immutable-context-snapshot capability:
	// per-name slot chains inside copy-on-write context maps. It supports a
	// narrower suspension surface (no Enter/Exit pairs, no streams).
	BackendNative Backend = "native"
)

// engine is the capability surface shared by both backends. The façade
// guarantees sc is non-nil for binding operations (nil public scopes resolve
// to the namespace root first).
type engine interface {
	backend() Backend

	// root returns the namespace-level ambient scope, created on first use.
	root() *Scope

	// enter pushes a manually-delimited layer onto sc (with-style nesting);
	// exit pops it. Backends without enter/exit support report
	// ErrUnsupportedOperation.
	enter(sc *Scope) error
	exit(sc *Scope) error

	// enterCall opens a fresh private scope for a wrapped call; exitCall
	// tears it down on any exit path that did not transfer the layer.
	enterCall(parent *Scope) *Scope
	exitCall(sc *Scope)

	// newHandleScope mints the continuation scope for a suspendable handle.
	// The scope stays transparent (no private bindings) until adopted.
	newHandleScope() *Scope

	// adopt transfers lifecycle from an exiting call scope to a suspendable
	// handle, atomically with respect to concurrent registry access.
	adopt(call, handle *Scope)

	// beginStep and endStep bracket one resumption step of a suspendable
	// handle, making the handle's own bindings the nearest ancestor for the
	// duration of that step only.
	beginStep(handle, caller *Scope)
	endStep(handle *Scope)

	// isolated builds a detached scope seeded with the given bindings; it
	// has no traceable caller. release drops whatever state the backend
	// holds for a scope, on every terminal path.
	isolated(bindings map[string]any) *Scope
	release(sc *Scope)

	// trace reports every chain entry consulted when resolving name from
	// sc, nearest-first, including shadowed and tombstoned entries.
	trace(sc *Scope, name string) []Provenance

	get(sc *Scope, name string) (any, error)
	set(sc *Scope, name string, value any)
	del(sc *Scope, name string) error
	names(sc *Scope) []string
	snapshot(sc *Scope) map[string]any

	supportsStreams() bool
}

func newEngine(b Backend) engine {
	switch b {
	case BackendExplicit:
		return newExplicitEngine()
	default:
		return newNativeEngine()
	}
}
