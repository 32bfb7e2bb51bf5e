package scoped

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoEvaluator = errors.New("scoped: evaluator not configured")

// Evaluate executes expr against the bindings visible from sc using the
// configured evaluator, constructing one lazily when none was configured.
func (ns *Local) Evaluate(sc *Scope, expr string) (Response[any], error) {
	cur := ns.cur(sc)
	return ns.EvaluateWith(EvalContext{
		Bindings:  ns.eng.snapshot(cur),
		Namespace: ns.name,
		ScopeID:   cur.id.String(),
	}, expr)
}

// EvaluateWith executes expr using ctx, filling Bindings from the namespace
// root when nil.
func (ns *Local) EvaluateWith(ctx EvalContext, expr string) (Response[any], error) {
	if expr == "" {
		return Response[any]{}, fmt.Errorf("expression must not be empty")
	}
	evaluator, err := ns.resolveEvaluator()
	if err != nil {
		return Response[any]{}, err
	}
	if ctx.Bindings == nil {
		ctx.Bindings = ns.eng.snapshot(ns.eng.root())
	}
	ctx = ctx.withDefaults()
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = wrapEvaluationError("", expr, ctx.scopeLabel(), evalErr)
	ns.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     expr,
		Scope:    ctx.scopeLabel(),
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return Response[any]{}, evalErr
	}
	return Response[any]{Value: value}, nil
}

func (ns *Local) resolveEvaluator() (Evaluator, error) {
	ns.evalMu.Lock()
	defer ns.evalMu.Unlock()
	if ns.cfg.evaluator != nil {
		return ns.cfg.evaluator, nil
	}
	var exprOpts []ExprEvaluatorOption
	if cache := ns.cfg.programCache; cache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cache))
	}
	if registry := ns.cfg.functions; registry != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(registry))
	}
	defaultEvaluator := NewExprEvaluator(exprOpts...)
	if defaultEvaluator == nil {
		return nil, ErrNoEvaluator
	}
	ns.cfg.evaluator = defaultEvaluator
	return defaultEvaluator, nil
}

func (ns *Local) evaluatorLogger() EvaluatorLogger {
	if ns.cfg.logger != nil {
		return ns.cfg.logger
	}
	return noopEvaluatorLogger{}
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*scoped.exprEvaluator":
		return "expr"
	case "*scoped.celEvaluator":
		return "cel"
	case "*scoped.jsEvaluator":
		return "js"
	default:
		return "custom"
	}
}
