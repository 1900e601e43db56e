package graph

import "fmt"

// ShapeError is the GraphShape error kind (spec.md §7 kind 1): an
// unknown node id referenced by an edge, a cycle, or an arity mismatch.
// Reported before any node executes.
type ShapeError struct {
	NodeID string
	EdgeTo string
	Reason string
}

func (e *ShapeError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("graph shape error at node %q: %s", e.NodeID, e.Reason)
	}
	return fmt.Sprintf("graph shape error: %s", e.Reason)
}
