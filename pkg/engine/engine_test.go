package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/tabflowio/tabflow/pkg/config"
	"github.com/tabflowio/tabflow/pkg/graph"
	"github.com/tabflowio/tabflow/pkg/llm"
	"github.com/tabflowio/tabflow/pkg/logging"
	"github.com/tabflowio/tabflow/pkg/operator"
	"github.com/tabflowio/tabflow/pkg/resolver"
	"github.com/tabflowio/tabflow/pkg/table"
)

// noopSink satisfies operator.Sink without touching a filesystem, for
// tests that don't care about the written file's bytes.
type noopSink struct{}

func (noopSink) WriteExcel(dir, filename string, t *table.Table) (string, error) {
	if filename == "" {
		filename = "out"
	}
	return filename + ".xlsx", nil
}
func (noopSink) WriteCSV(dir, filename string, t *table.Table, encoding string) (string, error) {
	if filename == "" {
		filename = "out"
	}
	return filename + ".csv", nil
}

func node(id, typ string, cfg any) graph.Node {
	raw, err := json.Marshal(cfg)
	if err != nil {
		panic(err)
	}
	return graph.Node{ID: id, Type: typ, Config: raw}
}

func runnerWithFixture(cfg *config.Config, fixtures map[string]*table.Table) *Runner {
	return runnerWithFixtureAndChat(cfg, fixtures, nil)
}

func runnerWithFixtureAndChat(cfg *config.Config, fixtures map[string]*table.Table, chat llm.ChatClient) *Runner {
	reg := operator.BuildRegistry(cfg, noopSink{})
	for id, t := range fixtures {
		// Each fixture gets its own node type name so multiple sources can
		// coexist in one document.
		reg.MustRegister(fixtureOperator{nodeType: id, table: t})
	}
	return New(reg, resolver.MapResolver{}, chat, cfg, logging.New(logging.Config{Level: "error"}))
}

type fixtureOperator struct {
	nodeType string
	table    *table.Table
}

func (f fixtureOperator) Type() string       { return f.nodeType }
func (f fixtureOperator) Arity() graph.Arity { return graph.Exactly(0) }
func (f fixtureOperator) Execute(_ *operator.Context, _ *graph.Node, _ []*table.Table) (*table.Table, error) {
	return f.table, nil
}

func citiesFixture() *table.Table {
	return table.New(
		[]table.Column{{Name: "city", Type: table.TypeText}, {Name: "amt", Type: table.TypeInt64}},
		[][]any{{"A", int64(10)}, {"A", int64(20)}, {"B", int64(5)}},
	)
}

func TestScenario1_FilterThenGroupSum(t *testing.T) {
	cfg := config.Default()
	rn := runnerWithFixture(cfg, map[string]*table.Table{"fixture_cities": citiesFixture()})
	doc := &graph.Document{
		Nodes: []graph.Node{
			node("src", "fixture_cities", nil),
			node("filter", "transform", map[string]any{"filter_code": "amt > 8"}),
			node("agg", "group_aggregate", map[string]any{
				"group_by":     []string{"city"},
				"aggregations": []map[string]any{{"column": "amt", "func": "sum", "alias": "total"}},
			}),
			node("out", "output", map[string]any{}),
		},
		Edges: []graph.Edge{
			{Source: "src", Target: "filter"},
			{Source: "filter", Target: "agg"},
			{Source: "agg", Target: "out"},
		},
	}
	report, err := rn.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Success {
		t.Fatalf("report.Success = false, error: %s", report.Error)
	}
	if report.Preview == nil || report.Preview.TotalRows != 1 {
		t.Fatalf("preview = %+v, want 1 row", report.Preview)
	}
	if report.Preview.Rows[0][0] != "A" || report.Preview.Rows[0][1] != 30.0 {
		t.Fatalf("result row = %v, want [A 30]", report.Preview.Rows[0])
	}
	for _, id := range []string{"src", "filter", "agg", "out"} {
		if report.NodeStatus[id] != StatusSuccess {
			t.Fatalf("node %s status = %s, want success", id, report.NodeStatus[id])
		}
	}
}

func TestScenario5_ArityFailureStopsTheRun(t *testing.T) {
	// spec.md §8 scenario 5: a join node with one inbound edge.
	cfg := config.Default()
	rn := runnerWithFixture(cfg, map[string]*table.Table{"fixture_cities": citiesFixture()})
	doc := &graph.Document{
		Nodes: []graph.Node{
			node("src", "fixture_cities", nil),
			node("j", "join", map[string]any{"on": "city"}),
		},
		Edges: []graph.Edge{{Source: "src", Target: "j"}},
	}
	report, err := rn.Run(context.Background(), doc)
	if err == nil {
		t.Fatalf("expected a GraphShape error rejecting the document before any node runs, got report=%+v", report)
	}
	if report != nil {
		t.Fatalf("arity failures are rejected before building a report, got non-nil report")
	}
}

func TestScenario6_MissingColumnInTransformIsSchemaErrorUpstreamSucceeds(t *testing.T) {
	// spec.md §8 scenario 6.
	cfg := config.Default()
	rn := runnerWithFixture(cfg, map[string]*table.Table{"fixture_cities": citiesFixture()})
	doc := &graph.Document{
		Nodes: []graph.Node{
			node("src", "fixture_cities", nil),
			node("bad", "transform", map[string]any{"sort_by": "nope"}),
		},
		Edges: []graph.Edge{{Source: "src", Target: "bad"}},
	}
	report, err := rn.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Success {
		t.Fatalf("expected report.Success = false")
	}
	if report.NodeStatus["src"] != StatusSuccess {
		t.Fatalf("upstream source node status = %s, want success", report.NodeStatus["src"])
	}
	if report.NodeStatus["bad"] != StatusError {
		t.Fatalf("bad node status = %s, want error", report.NodeStatus["bad"])
	}
}

func TestFailFast_StopsSchedulingAfterFirstError(t *testing.T) {
	cfg := config.Default()
	rn := runnerWithFixture(cfg, map[string]*table.Table{"fixture_cities": citiesFixture()})
	doc := &graph.Document{
		Nodes: []graph.Node{
			node("src", "fixture_cities", nil),
			node("bad", "transform", map[string]any{"sort_by": "nope"}),
			node("never", "transform", map[string]any{}),
		},
		Edges: []graph.Edge{
			{Source: "src", Target: "bad"},
			{Source: "bad", Target: "never"},
		},
	}
	report, err := rn.Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	successCount := 0
	for _, s := range report.NodeStatus {
		if s == StatusSuccess {
			successCount++
		}
	}
	if successCount != 1 {
		t.Fatalf("success count = %d, want 1 (only 'src')", successCount)
	}
	if report.NodeStatus["never"] != StatusPending {
		t.Fatalf("downstream-of-failure node status = %s, want pending", report.NodeStatus["never"])
	}
}

func TestDeterminism_SameDocumentSameReport(t *testing.T) {
	cfg := config.Default()
	buildDoc := func() *graph.Document {
		return &graph.Document{
			Nodes: []graph.Node{
				node("src", "fixture_cities", nil),
				node("agg", "group_aggregate", map[string]any{
					"group_by":     []string{"city"},
					"aggregations": []map[string]any{{"column": "amt", "func": "sum", "alias": "total"}},
				}),
			},
			Edges: []graph.Edge{{Source: "src", Target: "agg"}},
		}
	}
	rn1 := runnerWithFixture(cfg, map[string]*table.Table{"fixture_cities": citiesFixture()})
	rn2 := runnerWithFixture(cfg, map[string]*table.Table{"fixture_cities": citiesFixture()})
	r1, err := rn1.Run(context.Background(), buildDoc())
	if err != nil {
		t.Fatalf("Run 1: %v", err)
	}
	r2, err := rn2.Run(context.Background(), buildDoc())
	if err != nil {
		t.Fatalf("Run 2: %v", err)
	}
	b1, _ := json.Marshal(r1.NodeResults)
	b2, _ := json.Marshal(r2.NodeResults)
	if string(b1) != string(b2) {
		t.Fatalf("identical document + resolver state produced different reports:\n%s\nvs\n%s", b1, b2)
	}
}

func TestCodeNodeDisabledIsConfigError(t *testing.T) {
	cfg := config.Default() // EnableCodeNode defaults false
	rn := runnerWithFixture(cfg, map[string]*table.Table{"fixture_cities": citiesFixture()})
	doc := &graph.Document{
		Nodes: []graph.Node{
			node("src", "fixture_cities", nil),
			node("c", "code", map[string]any{}),
		},
		Edges: []graph.Edge{{Source: "src", Target: "c"}},
	}
	_, err := rn.Run(context.Background(), doc)
	if err == nil {
		t.Fatalf("expected an error rejecting a 'code' node when EnableCodeNode is false")
	}
}

func namesFixture(n int) *table.Table {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{fmt.Sprintf("item-%d", i)}
	}
	return table.New([]table.Column{{Name: "name", Type: table.TypeText}}, rows)
}

// cancelingChatClient cancels the run's context partway through the
// llm_row node, so the operator's ctx.Done() check between per-row calls
// gets exercised. The llm_row node is the last node of the test graph, so
// the engine's check between node executions is not reached afterwards.
type cancelingChatClient struct {
	cancelAfter int
	cancel      context.CancelFunc
	calls       int
}

func (c *cancelingChatClient) Chat(_ context.Context, _ string) (string, error) {
	c.calls++
	if c.calls == c.cancelAfter {
		c.cancel()
	}
	return fmt.Sprintf("reply-%d", c.calls-1), nil
}

func TestLLMRow_HonorsRunContextCancellationBetweenRows(t *testing.T) {
	cfg := config.Default()
	runCtx, cancel := context.WithCancel(context.Background())
	client := &cancelingChatClient{cancelAfter: 2, cancel: cancel}
	rn := runnerWithFixtureAndChat(cfg, map[string]*table.Table{"fixture_names": namesFixture(5)}, client)
	doc := &graph.Document{
		Nodes: []graph.Node{
			node("src", "fixture_names", nil),
			node("ask", "llm_row", map[string]any{"prompt": "{{name}}", "target_column": "r"}),
		},
		Edges: []graph.Edge{{Source: "src", Target: "ask"}},
	}
	report, err := rn.Run(runCtx, doc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("calls = %d, want exactly 2 (cancelled before a 3rd call)", client.calls)
	}
	if report.NodeStatus["ask"] != StatusSuccess {
		t.Fatalf("ask node status = %s, want success (cancellation truncates rows, it does not error the node)", report.NodeStatus["ask"])
	}
	if report.NodeResults["ask"].TotalRows != 2 {
		t.Fatalf("ask node row count = %d, want 2, matching the rows processed before cancellation", report.NodeResults["ask"].TotalRows)
	}
}
