// code is the scripted escape hatch (spec.md §4.4.5). Per SPEC_FULL.md
// §9(c) it ships opt-in and disabled by default, and it does not port
// the legacy Python's unsandboxed exec() (workflow_engine.py:739-755):
// instead of embedding a host-language interpreter, the configured
// script is a sequence of transform-style expr-lang row expressions
// applied to the first input table, so the same closed grammar that
// guards "transform" guards "code".
package operator

import (
	"fmt"

	"github.com/tabflowio/tabflow/pkg/graph"
	"github.com/tabflowio/tabflow/pkg/table"
)

type codeStatement struct {
	Target  string `json:"target"`
	Formula string `json:"formula"`
}

type codeConfig struct {
	Statements []codeStatement `json:"statements"`
}

// CodeOperator runs a restricted set of expr-lang assignments against
// the first input table. Only registered when config.Config.EnableCodeNode
// is true; see cmd/tabflow for the opt-in wiring.
type CodeOperator struct{}

func (CodeOperator) Type() string       { return "code" }
func (CodeOperator) Arity() graph.Arity { return graph.AtLeast(1) }

func (CodeOperator) Execute(ctx *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[codeConfig](node, "code")
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, &MissingInputError{NodeID: node.ID, Operator: "code", Column: "df"}
	}
	result := inputs[0]
	for _, stmt := range cfg.Statements {
		if stmt.Target == "" || stmt.Formula == "" {
			continue
		}
		next, ok := applyCalculation(ctx, result, calculation{Target: stmt.Target, Formula: stmt.Formula})
		if !ok {
			return nil, &ComputeError{NodeID: node.ID, Operator: "code", Err: fmt.Errorf("unresolvable statement %s := %s", stmt.Target, stmt.Formula)}
		}
		result = next
	}
	return result, nil
}
