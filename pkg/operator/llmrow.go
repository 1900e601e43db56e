// llm_row is the per-row LLM-prompting node (spec.md §4.4.6), grounded
// on _execute_ai_agent's templating loop
// (_examples/original_source/backend/services/workflow_engine.py:757-811),
// adapted to call the configured llm.ChatClient sequentially instead of
// the legacy raw httpx call.
package operator

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabflowio/tabflow/pkg/graph"
	"github.com/tabflowio/tabflow/pkg/table"
)

type llmRowConfig struct {
	Prompt        string `json:"prompt"`
	TargetColumn  string `json:"target_column"`
	RowLimit      int    `json:"row_limit"`
}

// LLMRowOperator issues one chat-completion call per row, sequentially.
type LLMRowOperator struct{}

func (LLMRowOperator) Type() string       { return "llm_row" }
func (LLMRowOperator) Arity() graph.Arity { return graph.Exactly(1) }

func (LLMRowOperator) Execute(ctx *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[llmRowConfig](node, "llm_row")
	if err != nil {
		return nil, err
	}
	if cfg.Prompt == "" {
		return nil, &ConfigError{NodeID: node.ID, Operator: "llm_row", Reason: "prompt is required"}
	}
	targetColumn := cfg.TargetColumn
	if targetColumn == "" {
		targetColumn = "AI_Result"
	}
	rowLimit := cfg.RowLimit
	if rowLimit <= 0 {
		rowLimit = 20
	}

	in := inputs[0]
	limit := in.RowCount()
	if rowLimit < limit {
		limit = rowLimit
	}

	runCtx := ctx.Ctx
	if runCtx == nil {
		runCtx = context.Background()
	}

	results := make([]any, limit)
	done := limit
	for r := 0; r < limit; r++ {
		select {
		case <-runCtx.Done():
			done = r
		default:
		}
		if r >= done {
			break
		}
		row := in.RowMap(r)
		prompt := renderRowPrompt(cfg.Prompt, in.ColumnNames(), row)
		text, err := ctx.LLM.Chat(runCtx, prompt)
		if err != nil {
			// Per-row LLM failures are soft (spec.md §4.4.9, kind 7): store
			// an error-tagged cell, never abort the node.
			results[r] = fmt.Sprintf("Error: %s", err)
			continue
		}
		results[r] = text
	}
	limit = done
	results = results[:limit]

	head := sliceRows(in, limit)
	out, err := head.AddColumn(targetColumn, table.TypeText, results)
	if err != nil {
		return nil, &ComputeError{NodeID: node.ID, Operator: "llm_row", Err: err}
	}
	return out, nil
}

// renderRowPrompt substitutes {{colname}} tokens; if none were present in
// the template, appends a rendered key/value block of the row (spec.md
// §4.4.6).
func renderRowPrompt(tmpl string, columns []string, row map[string]any) string {
	rendered := tmpl
	substituted := false
	for _, c := range columns {
		placeholder := "{{" + c + "}}"
		if strings.Contains(rendered, placeholder) {
			rendered = strings.ReplaceAll(rendered, placeholder, table.ToText(row[c]))
			substituted = true
		}
	}
	if substituted {
		return rendered
	}
	var sb strings.Builder
	sb.WriteString(tmpl)
	sb.WriteString("\n\ncurrent row:\n")
	for _, c := range columns {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", c, table.ToText(row[c])))
	}
	return sb.String()
}

// sliceRows returns the first n rows of t as a new table.
func sliceRows(t *table.Table, n int) *table.Table {
	if n >= t.RowCount() {
		return t.Clone()
	}
	rows := make([][]any, n)
	for i := 0; i < n; i++ {
		row := make([]any, len(t.Rows()[i]))
		copy(row, t.Rows()[i])
		rows[i] = row
	}
	cols := make([]table.Column, len(t.Columns()))
	copy(cols, t.Columns())
	return table.New(cols, rows)
}
