// Package operator implements the ~20-operator catalog (spec.md §4.4):
// each operator is a pure function over its declared inputs and config,
// realized as a Strategy-pattern Operator registered in a Registry.
// Grounded on the teacher's NodeExecutor/Registry split
// (_examples/yesoreyeram-thaiyyal/backend/pkg/executor/executor.go,
// pkg/executor/registry.go), adapted from the teacher's generic
// interface{} values to table.Table values and from its ExecutionContext
// (workflow state) to the Context below (file resolver, LLM client,
// expression engine, event log).
package operator

import (
	"context"

	"github.com/tabflowio/tabflow/pkg/config"
	"github.com/tabflowio/tabflow/pkg/expression"
	"github.com/tabflowio/tabflow/pkg/graph"
	"github.com/tabflowio/tabflow/pkg/llm"
	"github.com/tabflowio/tabflow/pkg/logging"
	"github.com/tabflowio/tabflow/pkg/resolver"
	"github.com/tabflowio/tabflow/pkg/table"
)

// Context is the set of collaborators an Operator may need: the file
// resolver for sources, the LLM bridge for llm_row, the shared
// expression engine for transform, and an event logger so operators can
// contribute human-readable lines to the run report's log (spec.md §3
// "Run report").
type Context struct {
	// Ctx is the run's context, threaded through so operators that issue
	// their own sequence of blocking calls (llm_row) can honor
	// cancellation between calls instead of only at node boundaries.
	Ctx      context.Context
	Resolver resolver.FileResolver
	LLM      llm.ChatClient
	Config   *config.Config
	Logger   *logging.Logger
	Expr     *expression.Engine
	// Event appends one human-readable line to the run's ordered log.
	Event func(format string, args ...any)
	// RecordOutputFile is called by output/output_csv after a successful
	// write, so the runner can surface it as the report's output_file
	// (spec.md §6 "Run report") without the operator interface needing a
	// richer return type.
	RecordOutputFile func(filename string)
}

// Operator is a pure function (config, inputs) -> table, implemented as
// a Strategy registered under its node type string.
type Operator interface {
	// Type returns the node type this Operator handles, e.g. "join".
	Type() string
	// Arity describes how many inbound edges this operator requires.
	Arity() graph.Arity
	// Execute runs the operator. inputs are already in document edge
	// order (spec.md §3: "order edges appear in the document").
	Execute(ctx *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error)
}
