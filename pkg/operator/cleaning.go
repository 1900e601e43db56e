// Cleaning operators (spec.md §4.4.2), grounded on the unary cleaning
// methods of WorkflowEngine
// (_examples/original_source/backend/services/workflow_engine.py:285-446).
package operator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tabflowio/tabflow/pkg/graph"
	"github.com/tabflowio/tabflow/pkg/table"
)

// ---------------------------------------------------------------------
// transform

type calculation struct {
	Target  string `json:"target"`
	Formula string `json:"formula"`
}

type transformConfig struct {
	FilterCode       string            `json:"filter_code"`
	DropColumns      []string          `json:"drop_columns"`
	Calculations     []calculation     `json:"calculations"`
	RenameMap        map[string]string `json:"rename_map"`
	SelectedColumns  []string          `json:"selected_columns"`
	SortBy           string            `json:"sort_by"`
	SortOrder        string            `json:"sort_order"`
}

// TransformOperator is the composite cleaner: filter, drop, calculate,
// rename, select, sort, applied in that fixed order (spec.md §4.4.2).
type TransformOperator struct{}

func (TransformOperator) Type() string       { return "transform" }
func (TransformOperator) Arity() graph.Arity { return graph.Exactly(1) }

func (o TransformOperator) Execute(ctx *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[transformConfig](node, "transform")
	if err != nil {
		return nil, err
	}
	in := inputs[0]

	// 1. filter
	filtered := in
	if cfg.FilterCode != "" {
		kept := make([][]any, 0, in.RowCount())
		for r := 0; r < in.RowCount(); r++ {
			row := in.RowMap(r)
			ok, err := ctx.Expr.EvalBool(cfg.FilterCode, row)
			if err != nil {
				return nil, &SchemaError{NodeID: node.ID, Operator: "transform", Reason: err.Error()}
			}
			if ok {
				kept = append(kept, in.Rows()[r])
			}
		}
		filtered = table.New(in.Columns(), kept)
	}

	// 2. drop named columns (missing silently ignored)
	dropped := filtered
	if len(cfg.DropColumns) > 0 {
		dropped = filtered.DropColumns(cfg.DropColumns)
	}

	// 3. calculated columns; unresolvable formulas are silently skipped,
	// logged at debug level (SPEC_FULL.md §9(a)).
	calculated := dropped
	for _, calc := range cfg.Calculations {
		if calc.Target == "" || calc.Formula == "" {
			continue
		}
		next, ok := applyCalculation(ctx, calculated, calc)
		if !ok {
			ctx.Logger.WithNodeID(node.ID).WithField("target", calc.Target).WithField("formula", calc.Formula).
				Debug("transform: skipping unresolvable calculated column")
			continue
		}
		calculated = next
	}

	// 4. rename
	renamed := calculated
	if len(cfg.RenameMap) > 0 {
		renamed = calculated.RenameColumns(cfg.RenameMap)
	}

	// 5. select (preserves order; missing names silently dropped)
	selected := renamed
	if len(cfg.SelectedColumns) > 0 {
		selected, _ = renamed.SelectColumns(cfg.SelectedColumns)
	}

	// 6. sort (stable); unlike step 5's select, a missing sort_by column is
	// a hard SchemaError (spec.md §8 scenario 6), not a silent no-op.
	if cfg.SortBy != "" {
		if !selected.HasColumn(cfg.SortBy) {
			return nil, &SchemaError{NodeID: node.ID, Operator: "transform", Reason: fmt.Sprintf("sort_by column %q not found (available: %v)", cfg.SortBy, selected.ColumnNames())}
		}
		ascending := cfg.SortOrder != "desc"
		sorted, err := selected.SortBy(cfg.SortBy, ascending)
		if err != nil {
			return nil, &SchemaError{NodeID: node.ID, Operator: "transform", Reason: err.Error()}
		}
		selected = sorted
	}

	return selected, nil
}

func applyCalculation(ctx *Context, t *table.Table, calc calculation) (*table.Table, bool) {
	values := make([]any, t.RowCount())
	for r := 0; r < t.RowCount(); r++ {
		v, err := ctx.Expr.EvalValue(calc.Formula, t.RowMap(r))
		if err != nil {
			return t, false
		}
		// expr-lang returns integer arithmetic as int; int64 columns hold
		// int64 cells.
		if n, ok := v.(int); ok {
			v = int64(n)
		}
		values[r] = v
	}
	typ := table.TypeText
	switch values[0].(type) {
	case int64, int:
		typ = table.TypeInt64
	case float64:
		typ = table.TypeFloat64
	case bool:
		typ = table.TypeBool
	}
	if idx := t.IndexOf(calc.Target); idx >= 0 {
		// Re-assigning an existing column: rebuild via DropColumns+AddColumn
		// to keep column-name uniqueness (spec.md §3).
		t = t.DropColumns([]string{calc.Target})
	}
	out, err := t.AddColumn(calc.Target, typ, values)
	if err != nil {
		return t, false
	}
	return out, true
}

// ---------------------------------------------------------------------
// type_convert

type conversion struct {
	Column string `json:"column"`
	Dtype  string `json:"dtype"`
}

type typeConvertConfig struct {
	Conversions []conversion `json:"conversions"`
}

// TypeConvertOperator coerces columns to a target dtype. Uncoercible
// cells become null (soft PerCellCoerce, never raises — spec.md §4.4.9).
type TypeConvertOperator struct{}

func (TypeConvertOperator) Type() string       { return "type_convert" }
func (TypeConvertOperator) Arity() graph.Arity { return graph.Exactly(1) }

func (TypeConvertOperator) Execute(_ *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[typeConvertConfig](node, "type_convert")
	if err != nil {
		return nil, err
	}
	out := inputs[0].Clone()
	for _, conv := range cfg.Conversions {
		if conv.Column == "" || conv.Dtype == "" || !out.HasColumn(conv.Column) {
			continue
		}
		idx := out.IndexOf(conv.Column)
		newType, ok := dtypeToCellType(conv.Dtype)
		if !ok {
			continue
		}
		for _, row := range out.Rows() {
			row[idx] = coerceCell(row[idx], conv.Dtype)
		}
		out.Columns()[idx].Type = newType
	}
	return out, nil
}

func dtypeToCellType(dtype string) (table.CellType, bool) {
	switch dtype {
	case "int":
		return table.TypeInt64, true
	case "float":
		return table.TypeFloat64, true
	case "str":
		return table.TypeText, true
	case "datetime":
		return table.TypeDatetime, true
	case "bool":
		return table.TypeBool, true
	}
	return 0, false
}

func coerceCell(v any, dtype string) any {
	switch dtype {
	case "int":
		if n, ok := table.ToInt64(v); ok {
			return n
		}
		return nil
	case "float":
		if f, ok := table.ToFloat64(v); ok {
			return f
		}
		return nil
	case "str":
		return table.ToText(v)
	case "datetime":
		if t, ok := table.ToDatetime(v); ok {
			return t
		}
		return nil
	case "bool":
		if b, ok := table.ToBool(v); ok {
			return b
		}
		return nil
	}
	return v
}

// ---------------------------------------------------------------------
// fill_na

type fillNAConfig struct {
	Strategy  string   `json:"strategy"`
	Columns   []string `json:"columns"`
	FillValue any      `json:"fill_value"`
}

// FillNAOperator handles null rows/cells per a chosen strategy (spec.md
// §4.4.2), grounded on _execute_fill_na, workflow_engine.py:352-377.
type FillNAOperator struct{}

func (FillNAOperator) Type() string       { return "fill_na" }
func (FillNAOperator) Arity() graph.Arity { return graph.Exactly(1) }

func (FillNAOperator) Execute(_ *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[fillNAConfig](node, "fill_na")
	if err != nil {
		return nil, err
	}
	in := inputs[0]
	targetCols := cfg.Columns
	if len(targetCols) == 0 {
		targetCols = in.ColumnNames()
	}
	idxs := make([]int, 0, len(targetCols))
	for _, c := range targetCols {
		if idx := in.IndexOf(c); idx >= 0 {
			idxs = append(idxs, idx)
		}
	}

	strategy := cfg.Strategy
	if strategy == "" {
		strategy = "drop"
	}

	switch strategy {
	case "drop":
		kept := make([][]any, 0, in.RowCount())
		for _, row := range in.Rows() {
			hasNull := false
			for _, idx := range idxs {
				if row[idx] == nil {
					hasNull = true
					break
				}
			}
			if !hasNull {
				kept = append(kept, row)
			}
		}
		return table.New(in.Columns(), kept), nil

	case "fill_value":
		out := in.Clone()
		for _, row := range out.Rows() {
			for _, idx := range idxs {
				if row[idx] == nil {
					row[idx] = cfg.FillValue
				}
			}
		}
		return out, nil

	case "ffill":
		out := in.Clone()
		for _, idx := range idxs {
			var last any
			for _, row := range out.Rows() {
				if row[idx] == nil {
					row[idx] = last
				} else {
					last = row[idx]
				}
			}
		}
		return out, nil

	case "bfill":
		out := in.Clone()
		rows := out.Rows()
		for _, idx := range idxs {
			var next any
			for i := len(rows) - 1; i >= 0; i-- {
				if rows[i][idx] == nil {
					rows[i][idx] = next
				} else {
					next = rows[i][idx]
				}
			}
		}
		return out, nil

	case "mean", "median":
		out := in.Clone()
		for _, idx := range idxs {
			if !table.IsNumericType(out.Columns()[idx].Type) {
				continue
			}
			vals := make([]float64, 0, out.RowCount())
			for _, row := range out.Rows() {
				if f, ok := table.ToFloat64(row[idx]); ok {
					vals = append(vals, f)
				}
			}
			if len(vals) == 0 {
				continue
			}
			var fillVal float64
			if strategy == "mean" {
				fillVal = mean(vals)
			} else {
				fillVal = median(vals)
			}
			for _, row := range out.Rows() {
				if row[idx] == nil {
					row[idx] = fillVal
				}
			}
		}
		return out, nil
	}

	return in.Clone(), nil
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// ---------------------------------------------------------------------
// deduplicate

// KeepPolicy selects which duplicate row survives deduplicate.
type KeepPolicy int

const (
	KeepFirst KeepPolicy = iota
	KeepLast
	KeepNone
)

type deduplicateConfig struct {
	Subset []string `json:"subset"`
	Keep   string   `json:"keep"`
}

func (c deduplicateConfig) keepPolicy() KeepPolicy {
	switch c.Keep {
	case "last":
		return KeepLast
	case "none", "false":
		return KeepNone
	default:
		return KeepFirst
	}
}

// DeduplicateOperator drops duplicate rows by a key subset (default: all
// columns), per SPEC_FULL.md §9(b)'s canonicalized Keep policy.
type DeduplicateOperator struct{}

func (DeduplicateOperator) Type() string       { return "deduplicate" }
func (DeduplicateOperator) Arity() graph.Arity { return graph.Exactly(1) }

func (DeduplicateOperator) Execute(_ *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[deduplicateConfig](node, "deduplicate")
	if err != nil {
		return nil, err
	}
	in := inputs[0]
	subset := cfg.Subset
	if len(subset) == 0 {
		subset = in.ColumnNames()
	}
	idxs := make([]int, 0, len(subset))
	for _, c := range subset {
		if idx := in.IndexOf(c); idx >= 0 {
			idxs = append(idxs, idx)
		}
	}

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	lastSeen := make(map[string]int)
	keyOf := func(row []any) string {
		var sb strings.Builder
		for _, idx := range idxs {
			sb.WriteString(table.ToText(row[idx]))
			sb.WriteByte(0)
		}
		return sb.String()
	}
	for i, row := range in.Rows() {
		k := keyOf(row)
		counts[k]++
		if _, ok := firstSeen[k]; !ok {
			firstSeen[k] = i
		}
		lastSeen[k] = i
	}

	policy := cfg.keepPolicy()
	kept := make([][]any, 0, in.RowCount())
	for i, row := range in.Rows() {
		k := keyOf(row)
		switch policy {
		case KeepFirst:
			if i == firstSeen[k] {
				kept = append(kept, row)
			}
		case KeepLast:
			if i == lastSeen[k] {
				kept = append(kept, row)
			}
		case KeepNone:
			if counts[k] == 1 {
				kept = append(kept, row)
			}
		}
	}
	return table.New(in.Columns(), kept), nil
}

// ---------------------------------------------------------------------
// text_process

type textProcessConfig struct {
	Column      string `json:"column"`
	Operation   string `json:"operation"`
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
}

// TextProcessOperator applies one string operation to a column (spec.md
// §4.4.2), grounded on _execute_text_process, workflow_engine.py:388-409.
type TextProcessOperator struct{}

func (TextProcessOperator) Type() string       { return "text_process" }
func (TextProcessOperator) Arity() graph.Arity { return graph.Exactly(1) }

func (TextProcessOperator) Execute(_ *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[textProcessConfig](node, "text_process")
	if err != nil {
		return nil, err
	}
	in := inputs[0]
	if cfg.Column == "" || !in.HasColumn(cfg.Column) {
		return in.Clone(), nil
	}
	idx := in.IndexOf(cfg.Column)

	switch cfg.Operation {
	case "trim", "lower", "upper", "replace":
		out := in.Clone()
		var re *regexp.Regexp
		if cfg.Operation == "replace" {
			re, err = regexp.Compile(cfg.Pattern)
			if err != nil {
				return nil, &ConfigError{NodeID: node.ID, Operator: "text_process", Reason: fmt.Sprintf("invalid pattern: %v", err)}
			}
		}
		for _, row := range out.Rows() {
			s := table.ToText(row[idx])
			switch cfg.Operation {
			case "trim":
				s = strings.TrimSpace(s)
			case "lower":
				s = strings.ToLower(s)
			case "upper":
				s = strings.ToUpper(s)
			case "replace":
				s = re.ReplaceAllString(s, cfg.Replacement)
			}
			row[idx] = s
		}
		out.Columns()[idx].Type = table.TypeText
		return out, nil

	case "extract":
		re, err := regexp.Compile("(" + cfg.Pattern + ")")
		if err != nil {
			return nil, &ConfigError{NodeID: node.ID, Operator: "text_process", Reason: fmt.Sprintf("invalid pattern: %v", err)}
		}
		values := make([]any, in.RowCount())
		for r, row := range in.Rows() {
			s := table.ToText(row[idx])
			m := re.FindStringSubmatch(s)
			if len(m) > 1 {
				values[r] = m[1]
			}
		}
		out, err := in.AddColumn(cfg.Column+"_extracted", table.TypeText, values)
		if err != nil {
			return nil, &ComputeError{NodeID: node.ID, Operator: "text_process", Err: err}
		}
		return out, nil
	}
	return in.Clone(), nil
}

// ---------------------------------------------------------------------
// date_process

type dateProcessConfig struct {
	Column  string   `json:"column"`
	Extract []string `json:"extract"`
	Offset  string   `json:"offset"`
}

var offsetPattern = regexp.MustCompile(`^([+-]?\d+)([dMy])$`)

// DateProcessOperator parses a column as datetime, extracts date parts
// and/or shifts the value (spec.md §4.4.2), grounded on
// _execute_date_process, workflow_engine.py:411-446.
type DateProcessOperator struct{}

func (DateProcessOperator) Type() string       { return "date_process" }
func (DateProcessOperator) Arity() graph.Arity { return graph.Exactly(1) }

func (DateProcessOperator) Execute(_ *Context, node *graph.Node, inputs []*table.Table) (*table.Table, error) {
	cfg, err := parseConfig[dateProcessConfig](node, "date_process")
	if err != nil {
		return nil, err
	}
	in := inputs[0]
	if cfg.Column == "" || !in.HasColumn(cfg.Column) {
		return in.Clone(), nil
	}
	idx := in.IndexOf(cfg.Column)

	out := in.Clone()
	parsed := make([]time.Time, out.RowCount())
	valid := make([]bool, out.RowCount())
	for r, row := range out.Rows() {
		if t, ok := table.ToDatetime(row[idx]); ok {
			row[idx] = t
			parsed[r] = t
			valid[r] = true
		} else {
			row[idx] = nil
		}
	}
	out.Columns()[idx].Type = table.TypeDatetime

	for _, ext := range cfg.Extract {
		name, typ, extractor, ok := datePartExtractor(cfg.Column, ext)
		if !ok {
			continue
		}
		values := make([]any, out.RowCount())
		for r := range values {
			if valid[r] {
				values[r] = extractor(parsed[r])
			}
		}
		next, err := out.AddColumn(name, typ, values)
		if err != nil {
			return nil, &ComputeError{NodeID: node.ID, Operator: "date_process", Err: err}
		}
		out = next
	}

	if cfg.Offset != "" {
		if m := offsetPattern.FindStringSubmatch(cfg.Offset); m != nil {
			n, _ := strconv.Atoi(m[1])
			unit := m[2]
			idx = out.IndexOf(cfg.Column)
			for r, row := range out.Rows() {
				if !valid[r] {
					continue
				}
				row[idx] = shiftDate(parsed[r], n, unit)
			}
		}
	}

	return out, nil
}

func datePartExtractor(col, ext string) (name string, typ table.CellType, fn func(time.Time) any, ok bool) {
	switch ext {
	case "year":
		return col + "_year", table.TypeInt64, func(t time.Time) any { return int64(t.Year()) }, true
	case "month":
		return col + "_month", table.TypeInt64, func(t time.Time) any { return int64(t.Month()) }, true
	case "day":
		return col + "_day", table.TypeInt64, func(t time.Time) any { return int64(t.Day()) }, true
	case "weekday":
		// Go's Weekday is Sunday=0..Saturday=6; spec.md wants Monday=1..Sunday=7.
		return col + "_weekday", table.TypeInt64, func(t time.Time) any { return (int64(t.Weekday())+6)%7 + 1 }, true
	case "quarter":
		return col + "_quarter", table.TypeInt64, func(t time.Time) any { return int64((int(t.Month())-1)/3 + 1) }, true
	}
	return "", 0, nil, false
}

func shiftDate(t time.Time, n int, unit string) time.Time {
	switch unit {
	case "d":
		return t.AddDate(0, 0, n)
	case "M":
		return t.AddDate(0, n, 0)
	case "y":
		return t.AddDate(n, 0, 0)
	}
	return t
}
