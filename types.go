package scoped

import "time"

// Response stores a typed result produced by an evaluator.
type Response[T any] struct {
	Value T
}

// EvalContext carries inputs needed when evaluating an expression against a
// binding snapshot.
type EvalContext struct {
	Bindings  map[string]any
	Now       *time.Time
	Args      map[string]any
	Metadata  map[string]any
	Namespace string
	ScopeID   string
}

func (ctx EvalContext) withDefaultNow() EvalContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx EvalContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx EvalContext) withDefaultMaps() EvalContext {
	if ctx.Bindings == nil {
		ctx.Bindings = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx EvalContext) withDefaults() EvalContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx EvalContext) scopeLabel() string {
	if ctx.ScopeID != "" {
		return ctx.ScopeID
	}
	if ctx.Namespace != "" {
		return ctx.Namespace
	}
	return "unknown"
}

func (ctx EvalContext) scopeBinding() map[string]any {
	if ctx.ScopeID == "" && ctx.Namespace == "" {
		return nil
	}
	binding := map[string]any{}
	if ctx.ScopeID != "" {
		binding["id"] = ctx.ScopeID
	}
	if ctx.Namespace != "" {
		binding["namespace"] = ctx.Namespace
	}
	return binding
}

// Evaluator executes expressions against an evaluation context.
type Evaluator interface {
	Evaluate(ctx EvalContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx EvalContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// WithEvaluator configures the expression evaluator used by Evaluate. When
// unset, an expr-lang evaluator is constructed lazily on first use.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *localConfig) {
		cfg.evaluator = e
	}
}
