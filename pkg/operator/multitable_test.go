package operator

import (
	"testing"

	"github.com/tabflowio/tabflow/pkg/table"
)

func TestJoin_InnerLeftRightOuter(t *testing.T) {
	left := mustTable([]table.Column{col("id", table.TypeInt64), col("name", table.TypeText)},
		[][]any{{int64(1), "a"}, {int64(2), "b"}})
	right := mustTable([]table.Column{col("id", table.TypeInt64), col("score", table.TypeInt64)},
		[][]any{{int64(2), int64(90)}, {int64(3), int64(70)}})

	cases := []struct {
		how      string
		wantRows int
	}{
		{"inner", 1},
		{"left", 2},
		{"right", 2},
		{"outer", 3},
	}
	for _, c := range cases {
		node := nodeWithConfig("j", "join", map[string]any{"how": c.how, "left_on": "id", "right_on": "id"})
		out, err := JoinOperator{}.Execute(newTestContext(), node, []*table.Table{left, right})
		if err != nil {
			t.Fatalf("join how=%s: %v", c.how, err)
		}
		if out.RowCount() != c.wantRows {
			t.Fatalf("join how=%s rows = %d, want %d", c.how, out.RowCount(), c.wantRows)
		}
	}
}

func TestJoin_InnerRowCountNeverExceedsProduct(t *testing.T) {
	left := mustTable([]table.Column{col("k", table.TypeText)}, [][]any{{"a"}, {"a"}, {"b"}})
	right := mustTable([]table.Column{col("k", table.TypeText), col("v", table.TypeInt64)}, [][]any{{"a", int64(1)}, {"a", int64(2)}})
	node := nodeWithConfig("j2", "join", map[string]any{"how": "inner", "on": "k"})
	out, err := JoinOperator{}.Execute(newTestContext(), node, []*table.Table{left, right})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if out.RowCount() > left.RowCount()*right.RowCount() {
		t.Fatalf("inner join rows %d exceeds |left|*|right| = %d", out.RowCount(), left.RowCount()*right.RowCount())
	}
}

func TestJoin_MissingKeyIsSchemaError(t *testing.T) {
	left := mustTable([]table.Column{col("id", table.TypeInt64)}, [][]any{{int64(1)}})
	right := mustTable([]table.Column{col("id", table.TypeInt64)}, [][]any{{int64(1)}})
	node := nodeWithConfig("j3", "join", map[string]any{"left_on": "nope", "right_on": "id"})
	if _, err := (JoinOperator{}).Execute(newTestContext(), node, []*table.Table{left, right}); err == nil {
		t.Fatalf("expected SchemaError for missing join key")
	}
}

func TestConcat_OuterUnionsColumnsWithNulls(t *testing.T) {
	// spec.md §8 scenario 4.
	a := mustTable([]table.Column{col("a", table.TypeInt64), col("b", table.TypeInt64)}, [][]any{{int64(1), int64(2)}})
	b := mustTable([]table.Column{col("b", table.TypeInt64), col("c", table.TypeInt64)}, [][]any{{int64(3), int64(4)}})
	node := nodeWithConfig("c1", "concat", map[string]any{"join": "outer"})
	out, err := ConcatOperator{}.Execute(newTestContext(), node, []*table.Table{a, b})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.RowCount() != 2 {
		t.Fatalf("row count = %d, want 2 (sum of inputs)", out.RowCount())
	}
	if out.Cell(0, "c") != nil {
		t.Fatalf("first row's missing column c should be null, got %v", out.Cell(0, "c"))
	}
	if out.Cell(1, "a") != nil {
		t.Fatalf("second row's missing column a should be null, got %v", out.Cell(1, "a"))
	}
	if out.Cell(0, "a") != int64(1) || out.Cell(0, "b") != int64(2) || out.Cell(1, "b") != int64(3) || out.Cell(1, "c") != int64(4) {
		t.Fatalf("concat cell values mismatched")
	}
}

func TestConcat_InnerTakesColumnIntersection(t *testing.T) {
	a := mustTable([]table.Column{col("a", table.TypeInt64), col("b", table.TypeInt64)}, [][]any{{int64(1), int64(2)}})
	b := mustTable([]table.Column{col("b", table.TypeInt64), col("c", table.TypeInt64)}, [][]any{{int64(3), int64(4)}})
	node := nodeWithConfig("c2", "concat", map[string]any{"join": "inner"})
	out, err := ConcatOperator{}.Execute(newTestContext(), node, []*table.Table{a, b})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(out.ColumnNames()) != 1 || out.ColumnNames()[0] != "b" {
		t.Fatalf("inner concat columns = %v, want [b]", out.ColumnNames())
	}
}

func TestConcat_RowCountIsSumOfInputs(t *testing.T) {
	a := mustTable([]table.Column{col("x", table.TypeInt64)}, [][]any{{int64(1)}, {int64(2)}})
	b := mustTable([]table.Column{col("x", table.TypeInt64)}, [][]any{{int64(3)}})
	c := mustTable([]table.Column{col("x", table.TypeInt64)}, [][]any{{int64(4)}, {int64(5)}, {int64(6)}})
	node := nodeWithConfig("c3", "concat", map[string]any{})
	out, err := ConcatOperator{}.Execute(newTestContext(), node, []*table.Table{a, b, c})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.RowCount() != 6 {
		t.Fatalf("row count = %d, want 6", out.RowCount())
	}
}

func TestVlookup_FillsNameByKeyAndPreservesMainRowCount(t *testing.T) {
	// spec.md §8 scenario 2.
	main := mustTable([]table.Column{col("sku", table.TypeInt64)},
		[][]any{{int64(1)}, {int64(2)}, {int64(3)}})
	lookup := mustTable([]table.Column{col("sku", table.TypeInt64), col("name", table.TypeText)},
		[][]any{{int64(1), "x"}, {int64(2), "y"}})
	node := nodeWithConfig("v1", "vlookup", map[string]any{
		"left_key": "sku", "right_key": "sku", "columns_to_get": []string{"name"},
	})
	out, err := VlookupOperator{}.Execute(contextWithResolver(nil), node, []*table.Table{main, lookup})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.RowCount() != 3 {
		t.Fatalf("row count = %d, want 3", out.RowCount())
	}
	if out.Cell(0, "name") != "x" || out.Cell(1, "name") != "y" || out.Cell(2, "name") != nil {
		t.Fatalf("name column = [%v %v %v], want [x y <nil>]", out.Cell(0, "name"), out.Cell(1, "name"), out.Cell(2, "name"))
	}
}

func TestVlookup_DefaultColumnsExcludeKeyAndMainSideCollisions(t *testing.T) {
	main := mustTable([]table.Column{col("sku", table.TypeInt64), col("name", table.TypeText)},
		[][]any{{int64(1), "existing"}})
	lookup := mustTable([]table.Column{col("sku", table.TypeInt64), col("name", table.TypeText), col("price", table.TypeFloat64)},
		[][]any{{int64(1), "lookup-name", 9.99}})
	node := nodeWithConfig("v2", "vlookup", map[string]any{"left_key": "sku", "right_key": "sku"})
	out, err := VlookupOperator{}.Execute(contextWithResolver(nil), node, []*table.Table{main, lookup})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.HasColumn("price") {
		t.Fatalf("default columns_to_get should include non-colliding lookup columns, got %v", out.ColumnNames())
	}
	if out.Cell(0, "name") != "existing" {
		t.Fatalf("main side's own 'name' column must not be overwritten by the lookup's 'name'")
	}
}

func TestDiff_TagsRowsPresentOnOnlyOneSide(t *testing.T) {
	left := mustTable([]table.Column{col("id", table.TypeInt64)}, [][]any{{int64(1)}, {int64(2)}})
	right := mustTable([]table.Column{col("id", table.TypeInt64)}, [][]any{{int64(2)}, {int64(3)}})
	node := nodeWithConfig("diff1", "diff", map[string]any{})
	out, err := DiffOperator{}.Execute(newTestContext(), node, []*table.Table{left, right})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.RowCount() != 2 {
		t.Fatalf("row count = %d, want 2", out.RowCount())
	}
	statuses := map[string]bool{}
	for r := 0; r < out.RowCount(); r++ {
		statuses[cellStr(out, r, "_diff_status")] = true
	}
	if !statuses["only in 1"] || !statuses["only in 2"] {
		t.Fatalf("expected both 'only in 1' and 'only in 2' statuses, got %v", statuses)
	}
}

func TestReconcile_WithinToleranceIsEmptyInDiffOnlyMode(t *testing.T) {
	// spec.md §8 scenario 3.
	detail := mustTable([]table.Column{col("m", table.TypeText), col("a", table.TypeFloat64)},
		[][]any{{"A", 10.0}, {"A", 20.0}, {"B", 5.0}})
	summary := mustTable([]table.Column{col("m", table.TypeText), col("s", table.TypeFloat64)},
		[][]any{{"A", 29.995}, {"B", 5.0}})
	node := nodeWithConfig("r1", "reconcile", map[string]any{
		"join_keys": []string{"m"}, "left_column": "a", "right_column": "s",
		"tolerance": 0.01, "output_mode": "diff_only",
	})
	out, err := ReconcileOperator{}.Execute(newTestContext(), node, []*table.Table{detail, summary})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.RowCount() != 0 {
		t.Fatalf("row count = %d, want 0 (both groups within tolerance)", out.RowCount())
	}
}

func TestReconcile_MismatchSurfacesInDiffOnlyMode(t *testing.T) {
	detail := mustTable([]table.Column{col("m", table.TypeText), col("a", table.TypeFloat64)}, [][]any{{"A", 100.0}})
	summary := mustTable([]table.Column{col("m", table.TypeText), col("s", table.TypeFloat64)}, [][]any{{"A", 50.0}})
	node := nodeWithConfig("r2", "reconcile", map[string]any{
		"join_keys": []string{"m"}, "left_column": "a", "right_column": "s", "output_mode": "diff_only",
	})
	out, err := ReconcileOperator{}.Execute(newTestContext(), node, []*table.Table{detail, summary})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.RowCount() != 1 {
		t.Fatalf("row count = %d, want 1 mismatch", out.RowCount())
	}
	if out.Cell(0, "verdict") != "mismatch" {
		t.Fatalf("verdict = %v, want mismatch", out.Cell(0, "verdict"))
	}
	if out.Cell(0, "difference") != 50.0 {
		t.Fatalf("difference = %v, want 50", out.Cell(0, "difference"))
	}
}

func TestReconcile_AllModeKeepsMatches(t *testing.T) {
	detail := mustTable([]table.Column{col("m", table.TypeText), col("a", table.TypeFloat64)}, [][]any{{"A", 10.0}})
	summary := mustTable([]table.Column{col("m", table.TypeText), col("s", table.TypeFloat64)}, [][]any{{"A", 10.0}})
	node := nodeWithConfig("r3", "reconcile", map[string]any{
		"join_keys": []string{"m"}, "left_column": "a", "right_column": "s", "output_mode": "all",
	})
	out, err := ReconcileOperator{}.Execute(newTestContext(), node, []*table.Table{detail, summary})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.RowCount() != 1 || out.Cell(0, "verdict") != "match" {
		t.Fatalf("expected one matching row in all mode, got rows=%d verdict=%v", out.RowCount(), out.Cell(0, "verdict"))
	}
}

func TestReconcile_MissingConfigIsConfigError(t *testing.T) {
	detail := mustTable([]table.Column{col("m", table.TypeText), col("a", table.TypeFloat64)}, [][]any{{"A", 10.0}})
	summary := mustTable([]table.Column{col("m", table.TypeText), col("s", table.TypeFloat64)}, [][]any{{"A", 10.0}})
	node := nodeWithConfig("r4", "reconcile", map[string]any{"join_keys": []string{"m"}})
	_, err := ReconcileOperator{}.Execute(newTestContext(), node, []*table.Table{detail, summary})
	if err == nil {
		t.Fatalf("expected ConfigError for missing left_column/right_column")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Fatalf("error type = %T, want *ConfigError", err)
	}
}
