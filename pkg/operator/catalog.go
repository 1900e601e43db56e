package operator

import "github.com/tabflowio/tabflow/pkg/config"

// BuildRegistry assembles the full operator catalog (spec.md §6's closed
// type set) plus the opt-in "code" node, gated on cfg.EnableCodeNode
// (SPEC_FULL.md §9(c)). Mirrors the teacher's registry bootstrap
// (_examples/yesoreyeram-thaiyyal/backend/pkg/executor/registry.go),
// adapted to build the registry once per run configuration rather than
// at package init, so EnableCodeNode can vary per process.
func BuildRegistry(cfg *config.Config, fileSink Sink) *Registry {
	r := NewRegistry()
	r.MustRegister(SourceOperator{})
	r.MustRegister(SourceCSVOperator{})
	r.MustRegister(TransformOperator{})
	r.MustRegister(TypeConvertOperator{})
	r.MustRegister(FillNAOperator{})
	r.MustRegister(DeduplicateOperator{})
	r.MustRegister(TextProcessOperator{})
	r.MustRegister(DateProcessOperator{})
	r.MustRegister(GroupAggregateOperator{})
	r.MustRegister(PivotOperator{})
	r.MustRegister(UnpivotOperator{})
	r.MustRegister(JoinOperator{})
	r.MustRegister(ConcatOperator{})
	r.MustRegister(VlookupOperator{})
	r.MustRegister(DiffOperator{})
	r.MustRegister(ReconcileOperator{})
	r.MustRegister(LLMRowOperator{})
	r.MustRegister(OutputOperator{Sink: fileSink})
	r.MustRegister(OutputCSVOperator{Sink: fileSink})
	if cfg.EnableCodeNode {
		r.MustRegister(CodeOperator{})
	}
	return r
}
