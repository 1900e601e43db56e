// Package table implements the engine's in-memory tabular value: named,
// typed columns and positional rows. Every operator in pkg/operator is a
// pure function over Tables. Grounded on the teacher's typed, interface-
// driven value model (_examples/yesoreyeram-thaiyyal/backend/pkg/types)
// adapted from a generic JSON DAG value to a columnar table.
package table

import (
	"fmt"
	"sort"
)

// CellType is the logical type of a column. Individual cells may always
// be null regardless of their column's type (spec.md §3: "Null is first
// class").
type CellType int

const (
	TypeText CellType = iota
	TypeInt64
	TypeFloat64
	TypeBool
	TypeDatetime
)

func (t CellType) String() string {
	switch t {
	case TypeInt64:
		return "int64"
	case TypeFloat64:
		return "float64"
	case TypeBool:
		return "bool"
	case TypeDatetime:
		return "datetime"
	default:
		return "text"
	}
}

// Column describes one named, typed column.
type Column struct {
	Name string
	Type CellType
}

// Table is an ordered list of named columns plus row-ordered cell data.
// Row i's value for column j lives at rows[i][j]; a nil entry is a null
// cell. Row count is uniform across columns by construction.
type Table struct {
	columns []Column
	rows    [][]any
}

// New builds a Table from columns and rows. Rows must each have exactly
// len(columns) entries; callers within this module are expected to
// maintain that invariant (operators build tables via the helpers below,
// never by hand-assembling mismatched rows).
func New(columns []Column, rows [][]any) *Table {
	return &Table{columns: columns, rows: rows}
}

// Empty returns a zero-row table with the given columns.
func Empty(columns []Column) *Table {
	return &Table{columns: columns, rows: [][]any{}}
}

func (t *Table) Columns() []Column { return t.columns }

// ColumnNames returns the ordered column names.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) RowCount() int    { return len(t.rows) }
func (t *Table) ColumnCount() int { return len(t.columns) }

// Rows returns the raw row slices, in column order. Callers must treat
// the result as read-only; use Clone to get a mutable copy.
func (t *Table) Rows() [][]any { return t.rows }

// HasColumn reports whether name is a column (case- and whitespace-
// sensitive per spec.md §3).
func (t *Table) HasColumn(name string) bool {
	return t.IndexOf(name) >= 0
}

// IndexOf returns the column index for name, or -1.
func (t *Table) IndexOf(name string) int {
	for i, c := range t.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColumnType returns the logical type of name and whether it exists.
func (t *Table) ColumnType(name string) (CellType, bool) {
	idx := t.IndexOf(name)
	if idx < 0 {
		return 0, false
	}
	return t.columns[idx].Type, true
}

// Cell returns the value of column name at row i (nil if null or absent).
func (t *Table) Cell(row int, name string) any {
	idx := t.IndexOf(name)
	if idx < 0 || row < 0 || row >= len(t.rows) {
		return nil
	}
	return t.rows[row][idx]
}

// RowMap returns row i as a name->value map, useful for expression
// evaluation and per-row LLM prompt rendering.
func (t *Table) RowMap(row int) map[string]any {
	m := make(map[string]any, len(t.columns))
	for i, c := range t.columns {
		m[c.Name] = t.rows[row][i]
	}
	return m
}

// Clone returns a deep-enough copy: columns and the row slice headers are
// copied, so callers can mutate the result without affecting the
// original. Cell values themselves (immutable scalars) are shared.
func (t *Table) Clone() *Table {
	cols := make([]Column, len(t.columns))
	copy(cols, t.columns)
	rows := make([][]any, len(t.rows))
	for i, r := range t.rows {
		row := make([]any, len(r))
		copy(row, r)
		rows[i] = row
	}
	return &Table{columns: cols, rows: rows}
}

// SelectColumns returns a new table containing only names, in the order
// given, preserving each name's original type. Names missing from the
// table are silently dropped (spec.md §4.4.2 transform step 5); the
// result reports which requested names were actually kept.
func (t *Table) SelectColumns(names []string) (*Table, []string) {
	kept := make([]string, 0, len(names))
	idxs := make([]int, 0, len(names))
	for _, n := range names {
		if idx := t.IndexOf(n); idx >= 0 {
			kept = append(kept, n)
			idxs = append(idxs, idx)
		}
	}
	cols := make([]Column, len(idxs))
	for i, idx := range idxs {
		cols[i] = t.columns[idx]
	}
	rows := make([][]any, len(t.rows))
	for r, row := range t.rows {
		newRow := make([]any, len(idxs))
		for i, idx := range idxs {
			newRow[i] = row[idx]
		}
		rows[r] = newRow
	}
	return &Table{columns: cols, rows: rows}, kept
}

// DropColumns removes named columns; missing names are ignored
// (spec.md §4.4.2 transform step 2).
func (t *Table) DropColumns(names []string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	keep := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if !drop[c.Name] {
			keep = append(keep, c.Name)
		}
	}
	out, _ := t.SelectColumns(keep)
	return out
}

// RenameColumns applies a rename map; names not present in the map are
// unchanged (spec.md §4.4.2 transform step 4).
func (t *Table) RenameColumns(renameMap map[string]string) *Table {
	out := t.Clone()
	for i, c := range out.columns {
		if newName, ok := renameMap[c.Name]; ok && newName != "" {
			out.columns[i].Name = newName
		}
	}
	return out
}

// AddColumn appends a new column with the given per-row values. The
// caller must supply exactly RowCount() values.
func (t *Table) AddColumn(name string, typ CellType, values []any) (*Table, error) {
	if len(values) != len(t.rows) {
		return nil, fmt.Errorf("table: AddColumn %q: got %d values, want %d", name, len(values), len(t.rows))
	}
	out := t.Clone()
	out.columns = append(out.columns, Column{Name: name, Type: typ})
	for i := range out.rows {
		out.rows[i] = append(out.rows[i], values[i])
	}
	return out, nil
}

// SortBy stably sorts rows by column name, ascending or descending.
// Nulls sort first in ascending order, last in descending order.
func (t *Table) SortBy(name string, ascending bool) (*Table, error) {
	idx := t.IndexOf(name)
	if idx < 0 {
		return nil, fmt.Errorf("table: sort column %q not found", name)
	}
	out := t.Clone()
	sort.SliceStable(out.rows, func(i, j int) bool {
		less := compareCells(out.rows[i][idx], out.rows[j][idx])
		if ascending {
			return less < 0
		}
		return less > 0
	})
	return out, nil
}

// compareCells orders two cell values for sorting. Nulls compare as
// smallest. Values are compared numerically if both numeric, otherwise
// by string representation.
func compareCells(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// DedupeColumnNames renders a list of proposed column names unique by
// deterministically suffixing collisions with _2, _3, ... Used by join,
// vlookup, diff and the analysis operators to satisfy the
// column-uniqueness invariant (spec.md §3).
func DedupeColumnNames(names []string) []string {
	seen := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		seen[n]++
		if seen[n] == 1 {
			out[i] = n
			continue
		}
		candidate := fmt.Sprintf("%s_%d", n, seen[n])
		for {
			if seen[candidate] == 0 {
				seen[candidate] = 1
				out[i] = candidate
				break
			}
			seen[n]++
			candidate = fmt.Sprintf("%s_%d", n, seen[n])
		}
	}
	return out
}
