// Output operators (spec.md §4.4.7): identity on the input table, plus a
// side-effect of writing it to the configured data directory. Grounded
// on _save_output in workflow_engine.py:846-861.
package operator

import (
	"github.com/tabflowio/tabflow/pkg/graph"
	"github.com/tabflowio/tabflow/pkg/sink"
	"github.com/tabflowio/tabflow/pkg/table"
)

type outputConfig struct {
	Filename string `json:"filename"`
	Encoding string `json:"encoding"`
}

// Sink abstracts the write side so the operator package doesn't need to
// import pkg/sink's concrete filesystem writers in tests.
type Sink interface {
	WriteExcel(dir, filename string, t *table.Table) (string, error)
	WriteCSV(dir, filename string, t *table.Table, encoding string) (string, error)
}

// FileSink is the default Sink, backed by pkg/sink's excelize/csv writers.
type FileSink struct{ Dir string }

func (s FileSink) WriteExcel(dir, filename string, t *table.Table) (string, error) {
	return sink.WriteExcel(dir, filename, t)
}
func (s FileSink) WriteCSV(dir, filename string, t *table.Table, encoding string) (string, error) {
	return sink.WriteCSV(dir, filename, t, encoding)
}

// OutputOperator writes the input table to an .xlsx file and passes the
// table through unchanged.
type OutputOperator struct{ Sink Sink }

func (OutputOperator) Type() string       { return "output" }
func (OutputOperator) Arity() graph.Arity { return graph.Exactly(1) }

func (o OutputOperator) Execute(ctx *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[outputConfig](node, "output")
	if err != nil {
		return nil, err
	}
	filename, err := o.Sink.WriteExcel(ctx.Config.DataDir, cfg.Filename, inputs[0])
	if err != nil {
		return nil, &ComputeError{NodeID: node.ID, Operator: "output", Err: err}
	}
	if ctx.Event != nil {
		ctx.Event("output: wrote %s (%d rows)", filename, inputs[0].RowCount())
	}
	if ctx.RecordOutputFile != nil {
		ctx.RecordOutputFile(filename)
	}
	return inputs[0], nil
}

// OutputCSVOperator writes the input table to a .csv file and passes the
// table through unchanged.
type OutputCSVOperator struct{ Sink Sink }

func (OutputCSVOperator) Type() string       { return "output_csv" }
func (OutputCSVOperator) Arity() graph.Arity { return graph.Exactly(1) }

func (o OutputCSVOperator) Execute(ctx *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[outputConfig](node, "output_csv")
	if err != nil {
		return nil, err
	}
	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "utf-8"
	}
	filename, err := o.Sink.WriteCSV(ctx.Config.DataDir, cfg.Filename, inputs[0], encoding)
	if err != nil {
		return nil, &ComputeError{NodeID: node.ID, Operator: "output_csv", Err: err}
	}
	if ctx.Event != nil {
		ctx.Event("output_csv: wrote %s (%d rows)", filename, inputs[0].RowCount())
	}
	if ctx.RecordOutputFile != nil {
		ctx.RecordOutputFile(filename)
	}
	return inputs[0], nil
}
