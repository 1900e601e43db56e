package operator

import (
	"testing"

	"github.com/tabflowio/tabflow/pkg/table"
)

func TestCode_AppliesRestrictedAssignments(t *testing.T) {
	in := citiesTable()
	node := nodeWithConfig("code1", "code", map[string]any{
		"statements": []map[string]any{{"target": "doubled", "formula": "amt * 2"}},
	})
	out, err := CodeOperator{}.Execute(newTestContext(), node, []*table.Table{in})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Cell(0, "doubled") != int64(20) {
		t.Fatalf("doubled = %v, want 20", out.Cell(0, "doubled"))
	}
}

func TestCode_UnresolvableStatementIsComputeError(t *testing.T) {
	in := citiesTable()
	node := nodeWithConfig("code2", "code", map[string]any{
		"statements": []map[string]any{{"target": "x", "formula": "not_a_column + 1"}},
	})
	_, err := CodeOperator{}.Execute(newTestContext(), node, []*table.Table{in})
	if err == nil {
		t.Fatalf("expected ComputeError for an unresolvable statement")
	}
	if _, ok := err.(*ComputeError); !ok {
		t.Fatalf("error type = %T, want *ComputeError", err)
	}
}

func TestCode_RequiresAtLeastOneInput(t *testing.T) {
	node := nodeWithConfig("code3", "code", map[string]any{})
	_, err := CodeOperator{}.Execute(newTestContext(), node, nil)
	if _, ok := err.(*MissingInputError); !ok {
		t.Fatalf("error type = %T, want *MissingInputError", err)
	}
}
