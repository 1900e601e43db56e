package operator

import (
	"encoding/json"
	"fmt"

	"github.com/tabflowio/tabflow/pkg/graph"
	"github.com/tabflowio/tabflow/pkg/ingest"
	"github.com/tabflowio/tabflow/pkg/table"
)

// sourceConfig is the "source" node's config (spec.md §4.4.1), grounded
// on _execute_source in workflow_engine.py:248-267. SheetName accepts
// either a JSON string or number, mirroring pandas' sheet_name=0
// convention.
type sourceConfig struct {
	FileID    string          `json:"file_id"`
	SheetName json.RawMessage `json:"sheet_name"`
	HeaderRow int             `json:"header_row"`
	SkipRows  int             `json:"skip_rows"`
}

func (c sourceConfig) sheetNameString() string {
	if len(c.SheetName) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(c.SheetName, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(c.SheetName, &n); err == nil {
		return fmt.Sprintf("%d", int(n))
	}
	return ""
}

// SourceOperator reads one spreadsheet sheet via the file resolver.
type SourceOperator struct{}

func (SourceOperator) Type() string      { return "source" }
func (SourceOperator) Arity() graph.Arity { return graph.Exactly(0) }

func (SourceOperator) Execute(ctx *Context, node *graph.Node, _ []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[sourceConfig](node, "source")
	if err != nil {
		return nil, err
	}
	if cfg.FileID == "" {
		return nil, &ConfigError{NodeID: node.ID, Operator: "source", Reason: "file_id is required"}
	}
	path, err := ctx.Resolver.Resolve(cfg.FileID)
	if err != nil {
		return nil, &MissingInputError{NodeID: node.ID, Operator: "source", Column: cfg.FileID}
	}
	headerRow := cfg.HeaderRow
	if headerRow == 0 {
		headerRow = 1
	}
	sheetName := cfg.sheetNameString()
	if sheetName == "" {
		sheetName = "0"
	}
	t, err := ingest.ReadExcelSheet(path, sheetName, headerRow, cfg.SkipRows)
	if err != nil {
		return nil, &ComputeError{NodeID: node.ID, Operator: "source", Err: err}
	}
	return t, nil
}

// sourceCSVConfig is the "source_csv" node's config (spec.md §4.4.1),
// grounded on _execute_source_csv in workflow_engine.py:269-282.
type sourceCSVConfig struct {
	FileID    string `json:"file_id"`
	Delimiter string `json:"delimiter"`
	Encoding  string `json:"encoding"`
}

// SourceCSVOperator reads a delimited-text file via the file resolver.
type SourceCSVOperator struct{}

func (SourceCSVOperator) Type() string       { return "source_csv" }
func (SourceCSVOperator) Arity() graph.Arity { return graph.Exactly(0) }

func (SourceCSVOperator) Execute(ctx *Context, node *graph.Node, _ []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[sourceCSVConfig](node, "source_csv")
	if err != nil {
		return nil, err
	}
	if cfg.FileID == "" {
		return nil, &ConfigError{NodeID: node.ID, Operator: "source_csv", Reason: "file_id is required"}
	}
	path, err := ctx.Resolver.Resolve(cfg.FileID)
	if err != nil {
		return nil, &MissingInputError{NodeID: node.ID, Operator: "source_csv", Column: cfg.FileID}
	}
	delimiter := ','
	if cfg.Delimiter != "" {
		delimiter = rune(cfg.Delimiter[0])
	}
	t, err := ingest.ReadCSV(path, delimiter, cfg.Encoding)
	if err != nil {
		return nil, &ComputeError{NodeID: node.ID, Operator: "source_csv", Err: err}
	}
	return t, nil
}
