// Multi-table operators (spec.md §4.4.4), grounded on
// _execute_join/_execute_concat/_execute_vlookup/_execute_diff/_execute_reconcile
// in workflow_engine.py:495-736. The legacy config aliases (`on` vs
// left_on/right_on, `lookup_key` vs left_key/right_key, `detail_key` vs
// join_keys) are absorbed here at parse time (SPEC_FULL.md §9,
// "Dynamic config dictionaries become tagged variants").
package operator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tabflowio/tabflow/pkg/graph"
	"github.com/tabflowio/tabflow/pkg/table"
)

// stringOrSlice unmarshals either a single JSON string or an array of
// strings into a []string, matching the legacy config's acceptance of
// both a scalar and a list for join keys.
type stringOrSlice []string

func (s *stringOrSlice) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single != "" {
			*s = []string{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// ---------------------------------------------------------------------
// join

type joinConfig struct {
	How     string         `json:"how"`
	LeftOn  stringOrSlice  `json:"left_on"`
	RightOn stringOrSlice  `json:"right_on"`
	On      stringOrSlice  `json:"on"`
}

// JoinOperator merges two tables on key columns (spec.md §4.4.4).
type JoinOperator struct{}

func (JoinOperator) Type() string       { return "join" }
func (JoinOperator) Arity() graph.Arity { return graph.Exactly(2) }

func (JoinOperator) Execute(_ *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[joinConfig](node, "join")
	if err != nil {
		return nil, err
	}
	left, right := inputs[0], inputs[1]

	how := cfg.How
	if how == "" {
		how = "inner"
	}
	if how == "full_outer" {
		how = "outer"
	}
	leftOn, rightOn := cfg.LeftOn, cfg.RightOn
	if len(leftOn) == 0 {
		leftOn = cfg.On
	}
	if len(rightOn) == 0 {
		rightOn = cfg.On
	}
	if len(leftOn) == 0 || len(rightOn) == 0 {
		return nil, &ConfigError{NodeID: node.ID, Operator: "join", Reason: "must specify join key(s) (left_on/right_on or on)"}
	}
	if len(leftOn) != len(rightOn) {
		return nil, &ConfigError{NodeID: node.ID, Operator: "join", Reason: "left_on and right_on must have the same length"}
	}
	for _, c := range leftOn {
		if !left.HasColumn(c) {
			return nil, &SchemaError{NodeID: node.ID, Operator: "join", Reason: fmt.Sprintf("left table missing join key %q (available: %v)", c, left.ColumnNames())}
		}
	}
	for _, c := range rightOn {
		if !right.HasColumn(c) {
			return nil, &SchemaError{NodeID: node.ID, Operator: "join", Reason: fmt.Sprintf("right table missing join key %q (available: %v)", c, right.ColumnNames())}
		}
	}

	return mergeTables(left, right, leftOn, rightOn, how)
}

// mergeTables implements inner/left/right/outer merge with keys coerced
// to text, preserving left-row order within each match group (spec.md
// §5 "Joins preserve the row order of the left input").
func mergeTables(left, right *table.Table, leftOn, rightOn []string, how string) (*table.Table, error) {
	leftIdxs := colIdxs(left, leftOn)
	rightIdxs := colIdxs(right, rightOn)

	rightByKey := make(map[string][]int)
	for i, row := range right.Rows() {
		rightByKey[joinKey(row, rightIdxs)] = append(rightByKey[joinKey(row, rightIdxs)], i)
	}

	// Right columns excluding the key columns that duplicate left's keys
	// by position (dropped when names differ, per spec.md §4.4.4).
	rightKeep := make([]int, 0, right.ColumnCount())
	rightKeySet := make(map[int]bool, len(rightIdxs))
	for i, idx := range rightIdxs {
		if leftOn[i] != rightOn[i] {
			rightKeySet[idx] = true
		}
	}
	for i := range right.Columns() {
		if !rightKeySet[i] {
			rightKeep = append(rightKeep, i)
		}
	}

	outNames := append(append([]string{}, left.ColumnNames()...), namesFor(right, rightKeep)...)
	outNames = table.DedupeColumnNames(outNames)
	outCols := make([]table.Column, 0, len(outNames))
	for i, c := range left.Columns() {
		outCols = append(outCols, table.Column{Name: outNames[i], Type: c.Type})
	}
	for j, idx := range rightKeep {
		outCols = append(outCols, table.Column{Name: outNames[len(left.Columns())+j], Type: right.Columns()[idx].Type})
	}

	leftWidth := left.ColumnCount()
	var outRows [][]any
	matchedRight := make(map[int]bool)
	for _, lrow := range left.Rows() {
		k := joinKey(lrow, leftIdxs)
		matches := rightByKey[k]
		if len(matches) == 0 {
			if how == "left" || how == "outer" {
				outRows = append(outRows, combineRow(lrow, nil, rightKeep, leftWidth))
			}
			continue
		}
		for _, ri := range matches {
			matchedRight[ri] = true
			outRows = append(outRows, combineRow(lrow, right.Rows()[ri], rightKeep, leftWidth))
		}
	}
	if how == "right" || how == "outer" {
		for ri, rrow := range right.Rows() {
			if matchedRight[ri] {
				continue
			}
			outRows = append(outRows, combineRow(nil, rrow, rightKeep, leftWidth))
		}
	}
	if outRows == nil {
		outRows = [][]any{}
	}
	return table.New(outCols, outRows), nil
}

func colIdxs(t *table.Table, names []string) []int {
	idxs := make([]int, len(names))
	for i, n := range names {
		idxs[i] = t.IndexOf(n)
	}
	return idxs
}

func namesFor(t *table.Table, idxs []int) []string {
	names := make([]string, len(idxs))
	for i, idx := range idxs {
		names[i] = t.Columns()[idx].Name
	}
	return names
}

func joinKey(row []any, idxs []int) string {
	var sb strings.Builder
	for _, idx := range idxs {
		sb.WriteString(table.ToText(row[idx]))
		sb.WriteByte(0)
	}
	return sb.String()
}

// combineRow stitches a left row and a right row into one output row.
// Either side may be nil (outer-join padding), in which case that side's
// columns are filled with null.
func combineRow(lrow, rrow []any, rightKeep []int, leftWidth int) []any {
	out := make([]any, 0, leftWidth+len(rightKeep))
	if lrow != nil {
		out = append(out, lrow...)
	} else {
		out = append(out, make([]any, leftWidth)...)
	}
	if rrow != nil {
		for _, idx := range rightKeep {
			out = append(out, rrow[idx])
		}
	} else {
		for range rightKeep {
			out = append(out, nil)
		}
	}
	return out
}

// ---------------------------------------------------------------------
// concat

type concatConfig struct {
	Join        string `json:"join"`
	IgnoreIndex bool   `json:"ignore_index"`
}

// ConcatOperator vertically stacks all inputs (spec.md §4.4.4).
type ConcatOperator struct{}

func (ConcatOperator) Type() string       { return "concat" }
func (ConcatOperator) Arity() graph.Arity { return graph.AtLeast(1) }

func (ConcatOperator) Execute(_ *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[concatConfig](node, "concat")
	if err != nil {
		return nil, err
	}
	joinMode := cfg.Join
	if joinMode == "" {
		joinMode = "outer"
	}

	var names []string
	if joinMode == "inner" {
		counts := make(map[string]int)
		for _, in := range inputs {
			for _, c := range in.ColumnNames() {
				counts[c]++
			}
		}
		for _, c := range inputs[0].ColumnNames() {
			if counts[c] == len(inputs) {
				names = append(names, c)
			}
		}
	} else {
		seen := make(map[string]bool)
		for _, in := range inputs {
			for _, c := range in.ColumnNames() {
				if !seen[c] {
					seen[c] = true
					names = append(names, c)
				}
			}
		}
	}

	types := make(map[string]table.CellType)
	for _, in := range inputs {
		for _, c := range in.Columns() {
			if _, ok := types[c.Name]; !ok {
				types[c.Name] = c.Type
			}
		}
	}
	outCols := make([]table.Column, len(names))
	for i, n := range names {
		outCols[i] = table.Column{Name: n, Type: types[n]}
	}

	var outRows [][]any
	for _, in := range inputs {
		for _, row := range in.Rows() {
			newRow := make([]any, len(names))
			for i, n := range names {
				if idx := in.IndexOf(n); idx >= 0 {
					newRow[i] = row[idx]
				}
			}
			outRows = append(outRows, newRow)
		}
	}
	if outRows == nil {
		outRows = [][]any{}
	}
	return table.New(outCols, outRows), nil
}

// ---------------------------------------------------------------------
// vlookup

type vlookupConfig struct {
	LeftKey       string        `json:"left_key"`
	RightKey      string        `json:"right_key"`
	LookupKey     string        `json:"lookup_key"`
	ColumnsToGet  []string      `json:"columns_to_get"`
	ReturnColumns []string      `json:"return_columns"`
}

// VlookupOperator fills columns from a lookup table onto a main table
// (spec.md §4.4.4), preserving the main table's row count and order.
type VlookupOperator struct{}

func (VlookupOperator) Type() string       { return "vlookup" }
func (VlookupOperator) Arity() graph.Arity { return graph.Exactly(2) }

func (o VlookupOperator) Execute(ctx *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[vlookupConfig](node, "vlookup")
	if err != nil {
		return nil, err
	}
	main, lookup := inputs[0], inputs[1]

	leftKey := cfg.LeftKey
	if leftKey == "" {
		leftKey = cfg.LookupKey
	}
	rightKey := cfg.RightKey
	if rightKey == "" {
		rightKey = cfg.LookupKey
	}
	if rightKey == "" {
		rightKey = leftKey
	}
	if leftKey == "" {
		return nil, &ConfigError{NodeID: node.ID, Operator: "vlookup", Reason: "must specify main table key (left_key or lookup_key)"}
	}
	if rightKey == "" {
		return nil, &ConfigError{NodeID: node.ID, Operator: "vlookup", Reason: "must specify lookup table key (right_key or lookup_key)"}
	}
	if !main.HasColumn(leftKey) {
		return nil, &SchemaError{NodeID: node.ID, Operator: "vlookup", Reason: fmt.Sprintf("main table missing key %q (available: %v)", leftKey, main.ColumnNames())}
	}
	if !lookup.HasColumn(rightKey) {
		return nil, &SchemaError{NodeID: node.ID, Operator: "vlookup", Reason: fmt.Sprintf("lookup table missing key %q (available: %v)", rightKey, lookup.ColumnNames())}
	}

	returnColumns := cfg.ColumnsToGet
	if len(returnColumns) == 0 {
		returnColumns = cfg.ReturnColumns
	}

	var validReturn []string
	var missing []string
	for _, c := range returnColumns {
		if c == rightKey {
			continue
		}
		if lookup.HasColumn(c) {
			validReturn = append(validReturn, c)
		} else {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 && ctx.Event != nil {
		ctx.Event("vlookup: ignoring columns not present on lookup table: %v", missing)
	}
	if len(validReturn) == 0 {
		mainSet := make(map[string]bool, main.ColumnCount())
		for _, n := range main.ColumnNames() {
			mainSet[n] = true
		}
		for _, n := range lookup.ColumnNames() {
			if n != rightKey && !mainSet[n] {
				validReturn = append(validReturn, n)
			}
		}
	}

	lookupIdx := lookup.IndexOf(rightKey)
	firstByKey := make(map[string]int)
	for i, row := range lookup.Rows() {
		k := table.ToText(row[lookupIdx])
		if _, ok := firstByKey[k]; !ok {
			firstByKey[k] = i
		}
	}

	returnIdxs := make([]int, len(validReturn))
	for i, c := range validReturn {
		returnIdxs[i] = lookup.IndexOf(c)
	}

	outNames := append(append([]string{}, main.ColumnNames()...), validReturn...)
	outNames = table.DedupeColumnNames(outNames)
	outCols := make([]table.Column, 0, len(outNames))
	for i, c := range main.Columns() {
		outCols = append(outCols, table.Column{Name: outNames[i], Type: c.Type})
	}
	for j, idx := range returnIdxs {
		outCols = append(outCols, table.Column{Name: outNames[len(main.Columns())+j], Type: lookup.Columns()[idx].Type})
	}

	mainKeyIdx := main.IndexOf(leftKey)
	outRows := make([][]any, main.RowCount())
	for r, row := range main.Rows() {
		newRow := make([]any, 0, len(outCols))
		newRow = append(newRow, row...)
		k := table.ToText(row[mainKeyIdx])
		if li, ok := firstByKey[k]; ok {
			lrow := lookup.Rows()[li]
			for _, idx := range returnIdxs {
				newRow = append(newRow, lrow[idx])
			}
		} else {
			for range returnIdxs {
				newRow = append(newRow, nil)
			}
		}
		outRows[r] = newRow
	}

	if ctx.Event != nil {
		ctx.Event("vlookup: main %d rows + lookup %d rows -> %d rows, added columns: %v",
			main.RowCount(), lookup.RowCount(), len(outRows), validReturn)
	}
	return table.New(outCols, outRows), nil
}

// ---------------------------------------------------------------------
// diff

type diffConfig struct {
	CompareColumns []string `json:"compare_columns"`
}

// DiffOperator reports rows present on only one side of a comparison
// (spec.md §4.4.4).
type DiffOperator struct{}

func (DiffOperator) Type() string       { return "diff" }
func (DiffOperator) Arity() graph.Arity { return graph.Exactly(2) }

func (DiffOperator) Execute(_ *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[diffConfig](node, "diff")
	if err != nil {
		return nil, err
	}
	left, right := inputs[0], inputs[1]
	compareCols := cfg.CompareColumns
	if len(compareCols) == 0 {
		rightSet := make(map[string]bool, right.ColumnCount())
		for _, n := range right.ColumnNames() {
			rightSet[n] = true
		}
		for _, n := range left.ColumnNames() {
			if rightSet[n] {
				compareCols = append(compareCols, n)
			}
		}
	}
	leftIdxs := colIdxs(left, compareCols)
	rightIdxs := colIdxs(right, compareCols)

	rightKeys := make(map[string]bool, right.RowCount())
	for _, row := range right.Rows() {
		rightKeys[joinKey(row, rightIdxs)] = true
	}
	leftKeys := make(map[string]bool, left.RowCount())
	for _, row := range left.Rows() {
		leftKeys[joinKey(row, leftIdxs)] = true
	}

	outNames := table.DedupeColumnNames(append(append([]string{}, left.ColumnNames()...), "_diff_status"))
	outCols := make([]table.Column, 0, len(outNames))
	for i, c := range left.Columns() {
		outCols = append(outCols, table.Column{Name: outNames[i], Type: c.Type})
	}
	outCols = append(outCols, table.Column{Name: outNames[len(outNames)-1], Type: table.TypeText})

	var outRows [][]any
	for _, row := range left.Rows() {
		if !rightKeys[joinKey(row, leftIdxs)] {
			newRow := append(append([]any{}, row...), "only in 1")
			outRows = append(outRows, newRow)
		}
	}
	for _, row := range right.Rows() {
		if !leftKeys[joinKey(row, rightIdxs)] {
			newRow := make([]any, len(left.Columns()))
			for i, ln := range left.ColumnNames() {
				if idx := right.IndexOf(ln); idx >= 0 {
					newRow[i] = row[idx]
				}
			}
			newRow = append(newRow, "only in 2")
			outRows = append(outRows, newRow)
		}
	}
	if outRows == nil {
		outRows = [][]any{}
	}
	return table.New(outCols, outRows), nil
}

// ---------------------------------------------------------------------
// reconcile

type reconcileConfig struct {
	JoinKeys     stringOrSlice `json:"join_keys"`
	DetailKey    stringOrSlice `json:"detail_key"`
	LeftColumn   string        `json:"left_column"`
	DetailAmount string        `json:"detail_amount"`
	RightColumn  string        `json:"right_column"`
	SummaryAmt   string        `json:"summary_amount"`
	OutputMode   string        `json:"output_mode"`
	Tolerance    float64       `json:"tolerance"`
}

// ReconcileOperator groups the detail table by join keys, compares
// against summary amounts, and reports matches/mismatches within a
// tolerance (spec.md §4.4.4).
type ReconcileOperator struct{}

func (ReconcileOperator) Type() string       { return "reconcile" }
func (ReconcileOperator) Arity() graph.Arity { return graph.Exactly(2) }

func (ReconcileOperator) Execute(ctx *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[reconcileConfig](node, "reconcile")
	if err != nil {
		return nil, err
	}
	detail, summary := inputs[0], inputs[1]

	joinKeys := cfg.JoinKeys
	if len(joinKeys) == 0 {
		joinKeys = cfg.DetailKey
	}
	leftColumn := cfg.LeftColumn
	if leftColumn == "" {
		leftColumn = cfg.DetailAmount
	}
	rightColumn := cfg.RightColumn
	if rightColumn == "" {
		rightColumn = cfg.SummaryAmt
	}
	if len(joinKeys) == 0 {
		return nil, &ConfigError{NodeID: node.ID, Operator: "reconcile", Reason: "must specify join_keys (or detail_key)"}
	}
	if leftColumn == "" {
		return nil, &ConfigError{NodeID: node.ID, Operator: "reconcile", Reason: "must specify left_column (or detail_amount)"}
	}
	if rightColumn == "" {
		return nil, &ConfigError{NodeID: node.ID, Operator: "reconcile", Reason: "must specify right_column (or summary_amount)"}
	}
	for _, k := range joinKeys {
		if !detail.HasColumn(k) {
			return nil, &SchemaError{NodeID: node.ID, Operator: "reconcile", Reason: fmt.Sprintf("detail table missing key %q (available: %v)", k, detail.ColumnNames())}
		}
		if !summary.HasColumn(k) {
			return nil, &SchemaError{NodeID: node.ID, Operator: "reconcile", Reason: fmt.Sprintf("summary table missing key %q (available: %v)", k, summary.ColumnNames())}
		}
	}
	if !detail.HasColumn(leftColumn) {
		return nil, &SchemaError{NodeID: node.ID, Operator: "reconcile", Reason: fmt.Sprintf("detail table missing amount column %q", leftColumn)}
	}
	if !summary.HasColumn(rightColumn) {
		return nil, &SchemaError{NodeID: node.ID, Operator: "reconcile", Reason: fmt.Sprintf("summary table missing amount column %q", rightColumn)}
	}

	keyIdxs := colIdxs(detail, joinKeys)
	leftIdx := detail.IndexOf(leftColumn)
	detailSums := make(map[string]float64)
	detailKeyValues := make(map[string][]any)
	detailOrder := []string{}
	for _, row := range detail.Rows() {
		k := joinKey(row, keyIdxs)
		if _, ok := detailKeyValues[k]; !ok {
			keyValues := make([]any, len(keyIdxs))
			for i, idx := range keyIdxs {
				keyValues[i] = row[idx]
			}
			detailKeyValues[k] = keyValues
			detailOrder = append(detailOrder, k)
		}
		if f, ok := table.ToFloat64(row[leftIdx]); ok {
			detailSums[k] += f
		}
	}

	summaryKeyIdxs := colIdxs(summary, joinKeys)
	rightIdx := summary.IndexOf(rightColumn)
	summaryAmts := make(map[string]float64)
	summaryKeyValues := make(map[string][]any)
	summaryOrder := []string{}
	for _, row := range summary.Rows() {
		k := joinKey(row, summaryKeyIdxs)
		if _, ok := summaryKeyValues[k]; !ok {
			keyValues := make([]any, len(summaryKeyIdxs))
			for i, idx := range summaryKeyIdxs {
				keyValues[i] = row[idx]
			}
			summaryKeyValues[k] = keyValues
			summaryOrder = append(summaryOrder, k)
		}
		if f, ok := table.ToFloat64(row[rightIdx]); ok {
			summaryAmts[k] += f
		}
	}

	allKeys := make(map[string]bool)
	order := []string{}
	for _, k := range detailOrder {
		if !allKeys[k] {
			allKeys[k] = true
			order = append(order, k)
		}
	}
	for _, k := range summaryOrder {
		if !allKeys[k] {
			allKeys[k] = true
			order = append(order, k)
		}
	}

	outputMode := cfg.OutputMode
	if outputMode == "" {
		outputMode = "diff_only"
	}
	tolerance := cfg.Tolerance
	if tolerance < 0 {
		tolerance = 0
	}

	outCols := make([]table.Column, 0, len(joinKeys)+3)
	for i := range joinKeys {
		outCols = append(outCols, table.Column{Name: joinKeys[i], Type: detail.Columns()[keyIdxs[i]].Type})
	}
	outCols = append(outCols,
		table.Column{Name: "detail_total", Type: table.TypeFloat64},
		table.Column{Name: "summary_total", Type: table.TypeFloat64},
		table.Column{Name: "difference", Type: table.TypeFloat64},
		table.Column{Name: "verdict", Type: table.TypeText},
	)

	mismatchCount := 0
	var outRows [][]any
	for _, k := range order {
		keyValues := detailKeyValues[k]
		if keyValues == nil {
			keyValues = summaryKeyValues[k]
		}
		detailTotal := detailSums[k]
		summaryTotal := summaryAmts[k]
		diff := detailTotal - summaryTotal
		absDiff := diff
		if absDiff < 0 {
			absDiff = -absDiff
		}
		verdict := "match"
		if absDiff > tolerance {
			verdict = "mismatch"
			mismatchCount++
		}
		if outputMode == "diff_only" && verdict == "match" {
			continue
		}
		row := append(append([]any{}, keyValues...), detailTotal, summaryTotal, diff, verdict)
		outRows = append(outRows, row)
	}
	if outRows == nil {
		outRows = [][]any{}
	}
	if ctx.Event != nil {
		ctx.Event("reconcile: detail %d rows vs summary %d rows, found %d mismatch(es)",
			detail.RowCount(), summary.RowCount(), mismatchCount)
	}
	return table.New(outCols, outRows), nil
}
