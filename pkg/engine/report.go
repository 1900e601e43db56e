// Package engine implements the Runner (spec.md §4.3): consumes a
// validated graph, executes nodes in topological order through the
// operator registry, and assembles the run report. Grounded on the
// teacher's Execute() loop (_examples/yesoreyeram-thaiyyal/backend/pkg/engine/engine.go)
// and on WorkflowEngine.execute_workflow's report shape
// (_examples/original_source/backend/services/workflow_engine.py:38-157).
package engine

import "github.com/tabflowio/tabflow/pkg/table"

// NodeStatus is one node's terminal state in a run (spec.md §4.4.8).
type NodeStatus string

const (
	StatusPending NodeStatus = "pending"
	StatusSuccess NodeStatus = "success"
	StatusError   NodeStatus = "error"
)

// NodeResult is the per-node result capture used for UI replay
// (spec.md §6 "Run report").
type NodeResult struct {
	Columns   []string `json:"columns,omitempty"`
	Rows      [][]any  `json:"rows,omitempty"`
	TotalRows int      `json:"total_rows,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Preview is the terminal output table's preview, capped at 100 rows
// (workflow_engine.py:124-128: `result_df.head(100)`).
type Preview struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	TotalRows int      `json:"total_rows"`
}

const previewRowCap = 100

// Report is the engine's output (spec.md §6 "Run report").
type Report struct {
	Success     bool                  `json:"success"`
	Error       string                `json:"error,omitempty"`
	OutputFile  string                `json:"output_file,omitempty"`
	Preview     *Preview              `json:"preview,omitempty"`
	Logs        []string              `json:"logs"`
	NodeStatus  map[string]NodeStatus `json:"node_status"`
	NodeResults map[string]NodeResult `json:"node_results"`
}

func tableToResult(t *table.Table) NodeResult {
	return NodeResult{
		Columns:   t.ColumnNames(),
		Rows:      t.Rows(),
		TotalRows: t.RowCount(),
	}
}

func tableToPreview(t *table.Table) *Preview {
	rows := t.Rows()
	if len(rows) > previewRowCap {
		rows = rows[:previewRowCap]
	}
	return &Preview{
		Columns:   t.ColumnNames(),
		Rows:      rows,
		TotalRows: t.RowCount(),
	}
}
