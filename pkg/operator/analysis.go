// Analysis operators (spec.md §4.4.3), grounded on
// _execute_group_aggregate/_execute_pivot/_execute_unpivot in
// workflow_engine.py:449-492.
package operator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tabflowio/tabflow/pkg/graph"
	"github.com/tabflowio/tabflow/pkg/table"
)

// ---------------------------------------------------------------------
// group_aggregate

type aggregation struct {
	Column string `json:"column"`
	Func   string `json:"func"`
	Alias  string `json:"alias"`
}

type groupAggregateConfig struct {
	GroupBy      []string      `json:"group_by"`
	Aggregations []aggregation `json:"aggregations"`
}

// GroupAggregateOperator groups by keys and reduces each group with the
// declared aggregation functions (spec.md §4.4.3).
type GroupAggregateOperator struct{}

func (GroupAggregateOperator) Type() string       { return "group_aggregate" }
func (GroupAggregateOperator) Arity() graph.Arity { return graph.Exactly(1) }

func (GroupAggregateOperator) Execute(_ *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[groupAggregateConfig](node, "group_aggregate")
	if err != nil {
		return nil, err
	}
	in := inputs[0]
	if len(cfg.GroupBy) == 0 {
		return in.Clone(), nil
	}
	for _, k := range cfg.GroupBy {
		if !in.HasColumn(k) {
			return nil, &SchemaError{NodeID: node.ID, Operator: "group_aggregate", Reason: fmt.Sprintf("group_by column %q not found (available: %v)", k, in.ColumnNames())}
		}
	}

	aggs := cfg.Aggregations
	if len(aggs) == 0 {
		// Empty aggregations = numeric-column sum over all non-key columns
		// (spec.md §4.4.3).
		groupSet := make(map[string]bool, len(cfg.GroupBy))
		for _, k := range cfg.GroupBy {
			groupSet[k] = true
		}
		for _, c := range in.Columns() {
			if groupSet[c.Name] || !table.IsNumericType(c.Type) {
				continue
			}
			aggs = append(aggs, aggregation{Column: c.Name, Func: "sum", Alias: c.Name + "_sum"})
		}
	}

	groupIdxs := make([]int, len(cfg.GroupBy))
	for i, k := range cfg.GroupBy {
		groupIdxs[i] = in.IndexOf(k)
	}

	type groupState struct {
		keyValues []any
		rows      [][]any
	}
	order := make([]string, 0)
	groups := make(map[string]*groupState)
	for _, row := range in.Rows() {
		var sb strings.Builder
		keyValues := make([]any, len(groupIdxs))
		for i, idx := range groupIdxs {
			keyValues[i] = row[idx]
			sb.WriteString(table.ToText(row[idx]))
			sb.WriteByte(0)
		}
		k := sb.String()
		st, ok := groups[k]
		if !ok {
			st = &groupState{keyValues: keyValues}
			groups[k] = st
			order = append(order, k)
		}
		st.rows = append(st.rows, row)
	}
	sort.Strings(order) // deterministic group iteration order

	outCols := make([]table.Column, 0, len(cfg.GroupBy)+len(aggs))
	for i, k := range cfg.GroupBy {
		outCols = append(outCols, table.Column{Name: k, Type: in.Columns()[groupIdxs[i]].Type})
	}
	aggIdxs := make([]int, len(aggs))
	aliases := make([]string, len(aggs))
	for i, a := range aggs {
		aggIdxs[i] = in.IndexOf(a.Column)
		if aggIdxs[i] < 0 {
			return nil, &SchemaError{NodeID: node.ID, Operator: "group_aggregate", Reason: fmt.Sprintf("aggregation column %q not found (available: %v)", a.Column, in.ColumnNames())}
		}
		alias := a.Alias
		if alias == "" {
			alias = fmt.Sprintf("%s_%s", a.Column, a.Func)
		}
		aliases[i] = alias
		aggType := table.TypeFloat64
		if a.Func == "count" {
			aggType = table.TypeInt64
		}
		outCols = append(outCols, table.Column{Name: alias, Type: aggType})
	}
	outCols = renameColumnsUnique(outCols)

	outRows := make([][]any, 0, len(order))
	for _, k := range order {
		st := groups[k]
		row := make([]any, 0, len(outCols))
		row = append(row, st.keyValues...)
		for i, a := range aggs {
			row = append(row, reduceAggregation(st.rows, aggIdxs[i], a.Func))
		}
		outRows = append(outRows, row)
	}
	return table.New(outCols, outRows), nil
}

func reduceAggregation(rows [][]any, idx int, fn string) any {
	switch fn {
	case "count":
		n := 0
		for _, row := range rows {
			if row[idx] != nil {
				n++
			}
		}
		return int64(n)
	case "first":
		return rows[0][idx]
	case "last":
		return rows[len(rows)-1][idx]
	case "min", "max", "sum", "mean":
		var vals []float64
		for _, row := range rows {
			if f, ok := table.ToFloat64(row[idx]); ok {
				vals = append(vals, f)
			}
		}
		if len(vals) == 0 {
			return nil
		}
		switch fn {
		case "sum":
			return sum(vals)
		case "mean":
			return mean(vals)
		case "min":
			m := vals[0]
			for _, v := range vals {
				if v < m {
					m = v
				}
			}
			return m
		case "max":
			m := vals[0]
			for _, v := range vals {
				if v > m {
					m = v
				}
			}
			return m
		}
	}
	return nil
}

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func renameColumnsUnique(cols []table.Column) []table.Column {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	deduped := table.DedupeColumnNames(names)
	out := make([]table.Column, len(cols))
	for i, c := range cols {
		out[i] = table.Column{Name: deduped[i], Type: c.Type}
	}
	return out
}

// ---------------------------------------------------------------------
// pivot

type pivotConfig struct {
	Index   []string `json:"index"`
	Columns string   `json:"columns"`
	Values  string   `json:"values"`
	AggFunc string   `json:"aggfunc"`
}

// PivotOperator reshapes long data into an index x columns matrix, with
// missing cells = 0 (spec.md §4.4.3).
type PivotOperator struct{}

func (PivotOperator) Type() string       { return "pivot" }
func (PivotOperator) Arity() graph.Arity { return graph.Exactly(1) }

func (PivotOperator) Execute(_ *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[pivotConfig](node, "pivot")
	if err != nil {
		return nil, err
	}
	in := inputs[0]
	if len(cfg.Index) == 0 || cfg.Columns == "" || cfg.Values == "" {
		return in.Clone(), nil
	}
	for _, c := range append(append([]string{}, cfg.Index...), cfg.Columns, cfg.Values) {
		if !in.HasColumn(c) {
			return nil, &SchemaError{NodeID: node.ID, Operator: "pivot", Reason: fmt.Sprintf("column %q not found (available: %v)", c, in.ColumnNames())}
		}
	}
	aggFunc := cfg.AggFunc
	if aggFunc == "" {
		aggFunc = "sum"
	}

	indexIdxs := make([]int, len(cfg.Index))
	for i, c := range cfg.Index {
		indexIdxs[i] = in.IndexOf(c)
	}
	colsIdx := in.IndexOf(cfg.Columns)
	valIdx := in.IndexOf(cfg.Values)

	type cellKey struct{ idx, col string }
	buckets := make(map[cellKey][]float64)
	indexOrder := []string{}
	indexKeyValues := make(map[string][]any)
	colValues := make(map[string]bool)
	colOrder := []string{}

	for _, row := range in.Rows() {
		var idxKey strings.Builder
		keyValues := make([]any, len(indexIdxs))
		for i, idx := range indexIdxs {
			keyValues[i] = row[idx]
			idxKey.WriteString(table.ToText(row[idx]))
			idxKey.WriteByte(0)
		}
		ik := idxKey.String()
		if _, ok := indexKeyValues[ik]; !ok {
			indexKeyValues[ik] = keyValues
			indexOrder = append(indexOrder, ik)
		}
		colVal := table.ToText(row[colsIdx])
		if !colValues[colVal] {
			colValues[colVal] = true
			colOrder = append(colOrder, colVal)
		}
		if f, ok := table.ToFloat64(row[valIdx]); ok {
			k := cellKey{idx: ik, col: colVal}
			buckets[k] = append(buckets[k], f)
		}
	}
	sort.Strings(indexOrder)
	sort.Strings(colOrder)

	outCols := make([]table.Column, 0, len(cfg.Index)+len(colOrder))
	for i, c := range cfg.Index {
		outCols = append(outCols, table.Column{Name: c, Type: in.Columns()[indexIdxs[i]].Type})
	}
	for _, cv := range colOrder {
		outCols = append(outCols, table.Column{Name: cv, Type: table.TypeFloat64})
	}
	outCols = renameColumnsUnique(outCols)

	outRows := make([][]any, 0, len(indexOrder))
	for _, ik := range indexOrder {
		row := make([]any, 0, len(outCols))
		row = append(row, indexKeyValues[ik]...)
		for _, cv := range colOrder {
			vals := buckets[cellKey{idx: ik, col: cv}]
			if len(vals) == 0 {
				row = append(row, float64(0))
				continue
			}
			row = append(row, reduceFloats(vals, aggFunc))
		}
		outRows = append(outRows, row)
	}
	return table.New(outCols, outRows), nil
}

func reduceFloats(vals []float64, fn string) float64 {
	switch fn {
	case "mean":
		return mean(vals)
	case "min":
		m := vals[0]
		for _, v := range vals {
			if v < m {
				m = v
			}
		}
		return m
	case "max":
		m := vals[0]
		for _, v := range vals {
			if v > m {
				m = v
			}
		}
		return m
	case "count":
		return float64(len(vals))
	default: // sum
		return sum(vals)
	}
}

// ---------------------------------------------------------------------
// unpivot

type unpivotConfig struct {
	IDVars    []string `json:"id_vars"`
	ValueVars []string `json:"value_vars"`
	VarName   string   `json:"var_name"`
	ValueName string   `json:"value_name"`
}

// UnpivotOperator melts value_vars into {var_name, value_name}, preserving
// id_vars (spec.md §4.4.3).
type UnpivotOperator struct{}

func (UnpivotOperator) Type() string       { return "unpivot" }
func (UnpivotOperator) Arity() graph.Arity { return graph.Exactly(1) }

func (UnpivotOperator) Execute(_ *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[unpivotConfig](node, "unpivot")
	if err != nil {
		return nil, err
	}
	in := inputs[0]
	varName := cfg.VarName
	if varName == "" {
		varName = "variable"
	}
	valueName := cfg.ValueName
	if valueName == "" {
		valueName = "value"
	}

	idVars := cfg.IDVars
	valueVars := cfg.ValueVars
	if len(valueVars) == 0 {
		idSet := make(map[string]bool, len(idVars))
		for _, c := range idVars {
			idSet[c] = true
		}
		for _, c := range in.ColumnNames() {
			if !idSet[c] {
				valueVars = append(valueVars, c)
			}
		}
	}

	idIdxs := make([]int, 0, len(idVars))
	for _, c := range idVars {
		if idx := in.IndexOf(c); idx >= 0 {
			idIdxs = append(idIdxs, idx)
		}
	}

	outCols := make([]table.Column, 0, len(idVars)+2)
	for _, idx := range idIdxs {
		outCols = append(outCols, in.Columns()[idx])
	}
	outCols = append(outCols, table.Column{Name: varName, Type: table.TypeText})
	outCols = append(outCols, table.Column{Name: valueName, Type: table.TypeText})
	outCols = renameColumnsUnique(outCols)

	outRows := make([][]any, 0, in.RowCount()*len(valueVars))
	for _, row := range in.Rows() {
		for _, vv := range valueVars {
			vIdx := in.IndexOf(vv)
			if vIdx < 0 {
				continue
			}
			newRow := make([]any, 0, len(outCols))
			for _, idx := range idIdxs {
				newRow = append(newRow, row[idx])
			}
			newRow = append(newRow, vv, row[vIdx])
			outRows = append(outRows, newRow)
		}
	}
	return table.New(outCols, outRows), nil
}
