// Package scoped provides hierarchical, call-scoped binding namespaces:
// attributes resolve against the execution ancestry of the current scope
// (dynamic, not lexical), with isolation across threads, suspendable
// callables, and tasks.
package scoped

import (
	"context"
	"sync"

	"github.com/goliatone/go-scoped/pkg/activity"
)

// Local is a long-lived namespace shared by every scope that uses it. Reads
// and writes resolve through the binding engine selected at construction:
// the explicit engine walks ancestor layer stacks, the native engine builds
// on immutable context snapshots.
type Local struct {
	eng     engine
	name    string
	cfg     localConfig
	emitter *activity.Emitter

	evalMu sync.Mutex
}

// Option configures a Local on construction.
type Option func(*localConfig)

type localConfig struct {
	backend         Backend
	name            string
	evaluator       Evaluator
	programCache    ProgramCache
	functions       *FunctionRegistry
	logger          EvaluatorLogger
	activityHooks   activity.Hooks
	activityChannel string
}

// WithBackend selects the binding engine. The default is BackendNative,
// which trades manual enter/exit pairs and stream support for snapshot-based
// isolation.
func WithBackend(backend Backend) Option {
	return func(cfg *localConfig) {
		cfg.backend = backend
	}
}

// WithName labels the namespace in activity events and traces.
func WithName(name string) Option {
	return func(cfg *localConfig) {
		cfg.name = name
	}
}

// WithActivityHooks attaches lifecycle hooks. Nil entries are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	return func(cfg *localConfig) {
		cfg.activityHooks = hooks
	}
}

// WithActivityChannel overrides the default channel stamped on emitted events.
func WithActivityChannel(channel string) Option {
	return func(cfg *localConfig) {
		cfg.activityChannel = channel
	}
}

// New constructs a namespace with the provided configuration.
func New(opts ...Option) *Local {
	cfg := localConfig{backend: BackendNative}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	ns := &Local{
		eng:  newEngine(cfg.backend),
		name: cfg.name,
		cfg:  cfg,
	}
	ns.emitter = activity.NewEmitter(cfg.activityHooks, activity.Config{
		Enabled: len(cfg.activityHooks) > 0,
		Channel: cfg.activityChannel,
	})
	return ns
}

// Backend reports the engine the namespace was built with.
func (ns *Local) Backend() Backend {
	return ns.eng.backend()
}

// Name returns the namespace label, if any.
func (ns *Local) Name() string {
	return ns.name
}

// cur maps the nil public scope to the namespace's ambient root.
func (ns *Local) cur(sc *Scope) *Scope {
	if sc == nil {
		return ns.eng.root()
	}
	return sc
}

// Get returns the value bound to name in the nearest ancestor layer of sc.
// It fails with ErrNotBound when the name was never set or its nearest
// occurrence is a tombstone.
func (ns *Local) Get(sc *Scope, name string) (any, error) {
	return ns.eng.get(ns.cur(sc), name)
}

// Set binds name to value in the nearest layer of sc's ancestry, opening the
// implicit root layer on sc when no ancestor holds one yet.
func (ns *Local) Set(sc *Scope, name string, value any) {
	cur := ns.cur(sc)
	ns.eng.set(cur, name, value)
	ns.emitBinding(activity.VerbBindingSet, cur, name, value)
}

// Delete removes the visible binding for name per the shadow rules: deleting
// a binding owned by the nearest layer exposes the outer value once;
// deleting a name that only exists further out shadows it with a tombstone.
func (ns *Local) Delete(sc *Scope, name string) error {
	cur := ns.cur(sc)
	if err := ns.eng.del(cur, name); err != nil {
		return err
	}
	ns.emitBinding(activity.VerbBindingDeleted, cur, name, nil)
	return nil
}

// Has reports whether name resolves to a visible value from sc.
func (ns *Local) Has(sc *Scope, name string) bool {
	_, err := ns.Get(sc, name)
	return err == nil
}

// Names returns the visible binding names from sc in sorted order, applying
// nearest-wins: a name tombstoned at its nearest defining layer is excluded
// even when an outer layer still holds it.
func (ns *Local) Names(sc *Scope) []string {
	return ns.eng.names(ns.cur(sc))
}

func (ns *Local) emitScope(verb string, sc *Scope, meta map[string]any) {
	if !ns.emitter.Enabled() {
		return
	}
	input := activity.ScopeEventInput{
		Namespace: ns.name,
		Backend:   string(ns.eng.backend()),
		ScopeID:   sc.id.String(),
		Metadata:  meta,
	}
	if sc.parent != nil {
		input.ParentID = sc.parent.id.String()
	}
	_ = ns.emitter.Emit(context.Background(), activity.BuildScopeEvent(verb, input))
}

func (ns *Local) emitBinding(verb string, sc *Scope, name string, value any) {
	if !ns.emitter.Enabled() {
		return
	}
	_ = ns.emitter.Emit(context.Background(), activity.BuildScopeEvent(verb, activity.ScopeEventInput{
		Namespace: ns.name,
		Backend:   string(ns.eng.backend()),
		ScopeID:   sc.id.String(),
		Binding:   name,
		NewValue:  value,
	}))
}
