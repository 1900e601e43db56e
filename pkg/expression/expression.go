// Package expression implements the small, closed row-expression language
// used by the "transform" operator's filter predicate and calculated
// columns (spec.md §4.4.2, §9 "Expression language in transform"). It is
// powered by github.com/expr-lang/expr, the same engine the teacher uses
// for its own boolean/value expression evaluation
// (_examples/yesoreyeram-thaiyyal/backend/pkg/expression/expr_adapter.go).
// Compiling against an environment built only from the row's column
// names gives the "refuse anything outside the grammar" behavior spec.md
// calls for: any identifier that isn't a column name fails to compile.
package expression

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Engine compiles and caches expr-lang programs keyed by source text.
type Engine struct {
	boolCache  map[string]*vm.Program
	valueCache map[string]*vm.Program
}

// New creates an empty Engine.
func New() *Engine {
	return &Engine{
		boolCache:  make(map[string]*vm.Program),
		valueCache: make(map[string]*vm.Program),
	}
}

// EvalBool compiles (if needed) and runs expression as a boolean
// predicate against row, used by transform's filter step. A non-boolean
// result is itself a compile-time error from expr.AsBool().
func (e *Engine) EvalBool(expression string, row map[string]any) (bool, error) {
	prog, ok := e.boolCache[expression]
	if !ok {
		var err error
		prog, err = expr.Compile(expression, expr.Env(row), expr.AsBool())
		if err != nil {
			return false, fmt.Errorf("expression: invalid filter %q: %w", expression, err)
		}
		e.boolCache[expression] = prog
	}
	out, err := expr.Run(prog, row)
	if err != nil {
		return false, fmt.Errorf("expression: evaluating filter %q: %w", expression, err)
	}
	b, _ := out.(bool)
	return b, nil
}

// EvalValue compiles (if needed) and runs expression against row,
// returning its value, used by transform's calculated columns.
func (e *Engine) EvalValue(expression string, row map[string]any) (any, error) {
	prog, ok := e.valueCache[expression]
	if !ok {
		var err error
		prog, err = expr.Compile(expression, expr.Env(row))
		if err != nil {
			return nil, fmt.Errorf("expression: invalid formula %q: %w", expression, err)
		}
		e.valueCache[expression] = prog
	}
	out, err := expr.Run(prog, row)
	if err != nil {
		return nil, fmt.Errorf("expression: evaluating formula %q: %w", expression, err)
	}
	return out, nil
}

// CompileCheck validates that expression compiles against an environment
// shaped like row without executing it. The transform operator does not
// call it: it skips a calculated column when EvalValue returns an error.
func CompileCheck(expression string, row map[string]any) error {
	_, err := expr.Compile(expression, expr.Env(row))
	return err
}
