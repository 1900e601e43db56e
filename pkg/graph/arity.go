package graph

import "fmt"

// Arity describes how many inbound edges a node type requires
// (spec.md §3 invariants): source/source_csv = 0, unary transforms = 1,
// binary operators = 2, concat = at least 1.
type Arity struct {
	Min      int
	Max      int // -1 means unbounded
}

func Exactly(n int) Arity { return Arity{Min: n, Max: n} }
func AtLeast(n int) Arity { return Arity{Min: n, Max: -1} }

// Accepts reports whether count inbound edges satisfies this arity.
func (a Arity) Accepts(count int) bool {
	if count < a.Min {
		return false
	}
	if a.Max >= 0 && count > a.Max {
		return false
	}
	return true
}

func (a Arity) String() string {
	if a.Max == a.Min {
		return fmt.Sprintf("exactly %d", a.Min)
	}
	if a.Max < 0 {
		return fmt.Sprintf("at least %d", a.Min)
	}
	return fmt.Sprintf("between %d and %d", a.Min, a.Max)
}
