// Package graph implements the Graph Validator and Scheduler (spec.md
// §4.1, §4.2): parsing a graph document, checking its shape, and
// computing a topological execution order with document-order
// tie-breaking. Grounded on the teacher's Kahn's-algorithm
// implementation (_examples/yesoreyeram-thaiyyal/backend/pkg/graph/graph.go),
// adapted so the orphan-node tie-break follows document insertion order
// (spec.md §4.2: "Tie-break is insertion order of node ids as they
// appear in the document") instead of the teacher's alphabetical
// ordering, and so InputEdgeSources preserves edge order instead of
// being treated as an unordered set (spec.md §3: edge order at a target
// is semantically significant for binary/variadic operators).
package graph

import (
	"encoding/json"
	"fmt"
)

// Node is one entry of a graph document's "nodes" array.
type Node struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Label  string          `json:"label,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Edge is one entry of a graph document's "edges" array.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Document is the parsed graph document (spec.md §3).
type Document struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Parse decodes a JSON graph document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("graph: parsing document: %w", err)
	}
	return &doc, nil
}

// Graph wraps a parsed Document with indexed lookups for validation and
// scheduling.
type Graph struct {
	doc      *Document
	nodeIdx  map[string]int
	nodePos  map[string]int // position of node id in document order
}

// New indexes a Document for repeated lookups.
func New(doc *Document) *Graph {
	g := &Graph{
		doc:     doc,
		nodeIdx: make(map[string]int, len(doc.Nodes)),
		nodePos: make(map[string]int, len(doc.Nodes)),
	}
	for i, n := range doc.Nodes {
		g.nodeIdx[n.ID] = i
		g.nodePos[n.ID] = i
	}
	return g
}

// Document returns the underlying parsed document.
func (g *Graph) Document() *Document { return g.doc }

// GetNode returns a node by id, or nil.
func (g *Graph) GetNode(id string) *Node {
	if i, ok := g.nodeIdx[id]; ok {
		return &g.doc.Nodes[i]
	}
	return nil
}

// InputEdgeSources returns the ids of nodes feeding nodeID, in the order
// their edges appear in the document — significant for binary/variadic
// operators (spec.md §3).
func (g *Graph) InputEdgeSources(nodeID string) []string {
	var sources []string
	for _, e := range g.doc.Edges {
		if e.Target == nodeID {
			sources = append(sources, e.Source)
		}
	}
	return sources
}

// Validate checks graph shape per spec.md §4.1: every edge endpoint
// resolves to an existing node, the graph is acyclic, and each node's
// inbound edge count matches the arity its type requires.
func (g *Graph) Validate(arityOf func(nodeType string) (Arity, bool)) error {
	for _, e := range g.doc.Edges {
		if _, ok := g.nodeIdx[e.Source]; !ok {
			return &ShapeError{Reason: fmt.Sprintf("edge references unknown source node %q", e.Source)}
		}
		if _, ok := g.nodeIdx[e.Target]; !ok {
			return &ShapeError{Reason: fmt.Sprintf("edge references unknown target node %q", e.Target)}
		}
	}

	if _, err := g.TopologicalSort(); err != nil {
		return err
	}

	for _, n := range g.doc.Nodes {
		arity, known := arityOf(n.Type)
		if !known {
			return &ShapeError{NodeID: n.ID, Reason: fmt.Sprintf("unknown node type %q", n.Type)}
		}
		count := len(g.InputEdgeSources(n.ID))
		if !arity.Accepts(count) {
			return &ShapeError{
				NodeID: n.ID,
				Reason: fmt.Sprintf("node type %q requires %s input(s), got %d", n.Type, arity.String(), count),
			}
		}
	}
	return nil
}

// TopologicalSort computes Kahn's-algorithm execution order. Ties among
// nodes with no remaining dependencies are broken by document order
// (spec.md §4.2), giving reproducible runs.
func (g *Graph) TopologicalSort() ([]string, error) {
	numNodes := len(g.doc.Nodes)
	if numNodes == 0 {
		return []string{}, nil
	}

	inDegree := make(map[string]int, numNodes)
	adjacency := make(map[string][]string, numNodes)
	for _, n := range g.doc.Nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range g.doc.Edges {
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		inDegree[e.Target]++
	}

	// Ready queue, always appended in document order and drained FIFO so
	// ties resolve to document order (not numeric/lexical id order).
	ready := make([]string, 0, numNodes)
	for _, n := range g.doc.Nodes {
		if inDegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	order := make([]string, 0, numNodes)
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)

		// Collect newly-ready neighbors, then append them in document
		// order (not edge order) to keep tie-breaking well-defined.
		var newlyReady []string
		for _, neighbor := range adjacency[current] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				newlyReady = append(newlyReady, neighbor)
			}
		}
		if len(newlyReady) > 1 {
			sortByDocumentOrder(newlyReady, g.nodePos)
		}
		ready = append(ready, newlyReady...)
	}

	if len(order) != numNodes {
		return nil, &ShapeError{Reason: "graph contains a cycle"}
	}
	return order, nil
}

func sortByDocumentOrder(ids []string, pos map[string]int) {
	for i := 1; i < len(ids); i++ {
		key := ids[i]
		j := i - 1
		for j >= 0 && pos[ids[j]] > pos[key] {
			ids[j+1] = ids[j]
			j--
		}
		ids[j+1] = key
	}
}
