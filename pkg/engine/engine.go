package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/tabflowio/tabflow/pkg/config"
	"github.com/tabflowio/tabflow/pkg/expression"
	"github.com/tabflowio/tabflow/pkg/graph"
	"github.com/tabflowio/tabflow/pkg/llm"
	"github.com/tabflowio/tabflow/pkg/logging"
	"github.com/tabflowio/tabflow/pkg/operator"
	"github.com/tabflowio/tabflow/pkg/resolver"
	"github.com/tabflowio/tabflow/pkg/table"
)

// sinkTypes are the node types whose execution also produces the run's
// output_file/preview (spec.md §4.4.7).
var sinkTypes = map[string]bool{"output": true, "output_csv": true}

// Runner executes a validated graph document end-to-end (spec.md §4.3).
type Runner struct {
	Registry *operator.Registry
	Resolver resolver.FileResolver
	LLM      llm.ChatClient
	Config   *config.Config
	Logger   *logging.Logger
}

// New builds a Runner from its collaborators.
func New(registry *operator.Registry, res resolver.FileResolver, chat llm.ChatClient, cfg *config.Config, logger *logging.Logger) *Runner {
	return &Runner{Registry: registry, Resolver: res, LLM: chat, Config: cfg, Logger: logger}
}

// Run executes doc's graph to completion, never returning an error for
// node-level failures — those are captured as a value-level outcome in
// the returned Report (spec.md §4.3: "failure of a node does NOT raise
// out of the runner"). Run returns an error only before any node
// executes: for a malformed graph document (GraphShape, kind 1), or a
// ConfigError for a "code" node when the code operator is not registered.
func (rn *Runner) Run(ctx context.Context, doc *graph.Document) (*Report, error) {
	if err := rn.checkDisabledCode(doc); err != nil {
		return nil, err
	}
	g := graph.New(doc)
	if err := g.Validate(rn.arityOf); err != nil {
		return nil, err
	}
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}

	report := &Report{
		NodeStatus:  make(map[string]NodeStatus, len(doc.Nodes)),
		NodeResults: make(map[string]NodeResult, len(doc.Nodes)),
	}
	for _, n := range doc.Nodes {
		report.NodeStatus[n.ID] = StatusPending
	}

	var logs []string
	logEvent := func(format string, args ...any) {
		logs = append(logs, fmt.Sprintf("[%s] %s", time.Now().UTC().Format("15:04:05"), fmt.Sprintf(format, args...)))
	}

	var lastOutputFile string
	opCtx := &operator.Context{
		Ctx:              ctx,
		Resolver:         rn.Resolver,
		LLM:              rn.LLM,
		Config:           rn.Config,
		Logger:           rn.Logger,
		Expr:             expression.New(),
		Event:            logEvent,
		RecordOutputFile: func(filename string) { lastOutputFile = filename },
	}

	results := make(map[string]*table.Table, len(doc.Nodes))
	for _, nodeID := range order {
		select {
		case <-ctx.Done():
			report.Success = false
			report.Error = ctx.Err().Error()
			report.Logs = logs
			return report, nil
		default:
		}

		node := g.GetNode(nodeID)
		logEvent("starting node: %s (%s)", displayLabel(node), node.ID)

		inputs := make([]*table.Table, 0, len(g.InputEdgeSources(nodeID)))
		for _, src := range g.InputEdgeSources(nodeID) {
			if t, ok := results[src]; ok {
				inputs = append(inputs, t)
			}
		}

		op, ok := rn.Registry.Get(node.Type)
		if !ok {
			report.NodeStatus[nodeID] = StatusError
			report.NodeResults[nodeID] = NodeResult{Error: fmt.Sprintf("unknown node type %q", node.Type)}
			report.Success = false
			report.Error = fmt.Sprintf("node %q: unknown node type %q", nodeID, node.Type)
			logEvent("node %s failed: %s", displayLabel(node), report.Error)
			report.Logs = logs
			return report, nil
		}

		out, err := op.Execute(opCtx, node, inputs)
		if err != nil {
			report.NodeStatus[nodeID] = StatusError
			report.NodeResults[nodeID] = NodeResult{Error: err.Error()}
			report.Success = false
			report.Error = err.Error()
			logEvent("node %s failed: %s", displayLabel(node), err)
			report.Logs = logs
			return report, nil
		}

		results[nodeID] = out
		report.NodeStatus[nodeID] = StatusSuccess
		report.NodeResults[nodeID] = tableToResult(out)
		logEvent("node %s succeeded, %d row(s)", displayLabel(node), out.RowCount())

		if sinkTypes[node.Type] {
			report.OutputFile = lastOutputFile
			report.Preview = tableToPreview(out)
		}
	}

	report.Success = true
	report.Logs = logs
	return report, nil
}

func (rn *Runner) arityOf(nodeType string) (graph.Arity, bool) {
	return rn.Registry.ArityOf(nodeType)
}

// checkDisabledCode rejects a graph containing a "code" node when the
// registry has no operator registered for it (SPEC_FULL.md §9(c)): this
// is a ConfigError naming the node, distinct from the GraphShape error
// graph.Validate would otherwise raise for an "unknown node type".
func (rn *Runner) checkDisabledCode(doc *graph.Document) error {
	if _, ok := rn.Registry.Get("code"); ok {
		return nil
	}
	for _, n := range doc.Nodes {
		if n.Type == "code" {
			return &operator.ConfigError{NodeID: n.ID, Operator: "code", Reason: "the code operator is disabled for this deployment"}
		}
	}
	return nil
}

func displayLabel(n *graph.Node) string {
	if n.Label != "" {
		return n.Label
	}
	return n.Type
}
