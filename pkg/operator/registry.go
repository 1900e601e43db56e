package operator

import (
	"fmt"

	"github.com/tabflowio/tabflow/pkg/graph"
)

// Registry dispatches a node type string to its Operator, mirroring the
// teacher's pkg/executor/registry.go Register/MustRegister/Get shape.
type Registry struct {
	operators map[string]Operator
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{operators: make(map[string]Operator)}
}

// Register adds op under its own Type(). Returns an error if that type
// is already registered.
func (r *Registry) Register(op Operator) error {
	t := op.Type()
	if _, exists := r.operators[t]; exists {
		return fmt.Errorf("operator: type %q already registered", t)
	}
	r.operators[t] = op
	return nil
}

// MustRegister panics on duplicate registration — used by BuildRegistry
// for the builtin catalog, where a collision is a programming error.
func (r *Registry) MustRegister(op Operator) {
	if err := r.Register(op); err != nil {
		panic(err)
	}
}

// Get returns the Operator registered for nodeType, if any.
func (r *Registry) Get(nodeType string) (Operator, bool) {
	op, ok := r.operators[nodeType]
	return op, ok
}

// ArityOf adapts the registry to graph.Graph.Validate's lookup shape.
func (r *Registry) ArityOf(nodeType string) (graph.Arity, bool) {
	op, ok := r.operators[nodeType]
	if !ok {
		return graph.Arity{}, false
	}
	return op.Arity(), true
}

// Types returns the registered node type names.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.operators))
	for t := range r.operators {
		types = append(types, t)
	}
	return types
}
