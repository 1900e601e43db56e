package operator

import (
	"encoding/json"

	"github.com/tabflowio/tabflow/pkg/graph"
)

// parseConfig decodes a node's raw JSON config into T, wrapping decode
// failures as a ConfigError. Grounded on smilemakc-mbflow's generic
// parseConfig[T] helper used by every one of its node executors
// (_examples/smilemakc-mbflow/internal/application/executor/node_executors.go).
func parseConfig[T any](node *graph.Node, operatorName string) (T, error) {
	var cfg T
	if len(node.Config) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return cfg, &ConfigError{NodeID: node.ID, Operator: operatorName, Reason: err.Error()}
	}
	return cfg, nil
}
