package operator

import (
	"context"
	"encoding/json"

	"github.com/tabflowio/tabflow/pkg/config"
	"github.com/tabflowio/tabflow/pkg/expression"
	"github.com/tabflowio/tabflow/pkg/graph"
	"github.com/tabflowio/tabflow/pkg/logging"
	"github.com/tabflowio/tabflow/pkg/resolver"
	"github.com/tabflowio/tabflow/pkg/table"
)

// newTestContext builds a Context with a fresh expression engine and a
// discard-to-nowhere logger, enough for operators that don't need a file
// resolver or LLM client.
func newTestContext() *Context {
	return &Context{
		Ctx:    context.Background(),
		Config: config.Default(),
		Logger: logging.New(logging.Config{Level: "error"}),
		Expr:   expression.New(),
		Event:  func(string, ...any) {},
	}
}

func contextWithResolver(r resolver.FileResolver) *Context {
	ctx := newTestContext()
	ctx.Resolver = r
	return ctx
}

func nodeWithConfig(id, nodeType string, cfg any) *graph.Node {
	raw, err := json.Marshal(cfg)
	if err != nil {
		panic(err)
	}
	return &graph.Node{ID: id, Type: nodeType, Config: raw}
}

func mustTable(cols []table.Column, rows [][]any) *table.Table {
	return table.New(cols, rows)
}

func col(name string, typ table.CellType) table.Column { return table.Column{Name: name, Type: typ} }

func cellStr(t *table.Table, r int, name string) string {
	v := t.Cell(r, name)
	if v == nil {
		return "<nil>"
	}
	return table.ToText(v)
}
