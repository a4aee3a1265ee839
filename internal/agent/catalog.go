package agent

import (
	aiprovider "github.com/alpinesboltltd/boltz-ai/internal/provider/ai-provider"

	"github.com/alpinesboltltd/boltz-ai/internal/extract"
	"github.com/alpinesboltltd/boltz-ai/internal/rag"
)

// Document type identifiers, shared with internal/phasegate's required
// document lists and internal/registry's doc_type column.
const (
	DocTypeMarketResearch      = "market_research"
	DocTypeAcquisitionPlan     = "acquisition_plan"
	DocTypeIGCE                = "igce"
	DocTypePWS                 = "pws"
	DocTypeSolicitation        = "solicitation"
	DocTypeEvaluationScorecard = "evaluation_scorecard"
)

// Deps bundles what every catalog constructor needs: one LLM provider and
// the shared retriever. Each constructor builds its own extractor, since
// field definitions differ per doc type.
type Deps struct {
	Provider  aiprovider.LLMProvider
	Retriever *rag.Retriever
}

// NewMarketResearchAgent builds the agent that synthesizes a market
// research report from uploaded knowledge and retrieved evidence; it has
// no upstream document dependencies.
func NewMarketResearchAgent(deps Deps) *BaseAgent {
	fields := []extract.FieldDefinition{
		{Name: "market_summary", Type: extract.FieldTypeText},
		{Name: "vendor_count", Type: extract.FieldTypeNumber},
		{Name: "estimated_price_range", Type: extract.FieldTypeCurrency},
	}
	return NewBaseAgent(Config{
		DocType:      DocTypeMarketResearch,
		Section:      "market_research",
		SystemPrompt: "You are a federal contracting market research analyst. Produce a thorough, well-organized market research report in markdown.",
		SchemaPrompt: "Return a JSON object with market_summary, vendor_count, and estimated_price_range.",
		Provider:     deps.Provider,
		Retriever:    deps.Retriever,
		Extractor:    extract.NewExtractor(fields, nil),
	})
}

// NewAcquisitionPlanAgent builds the agent that drafts the acquisition
// plan, which depends on the market research report.
func NewAcquisitionPlanAgent(deps Deps) *BaseAgent {
	fields := []extract.FieldDefinition{
		{Name: "acquisition_strategy", Type: extract.FieldTypeText},
		{Name: "period_of_performance", Type: extract.FieldTypeDuration},
		{Name: "estimated_total_cost", Type: extract.FieldTypeCurrency},
	}
	return NewBaseAgent(Config{
		DocType:      DocTypeAcquisitionPlan,
		Section:      "acquisition_plan",
		SystemPrompt: "You are a federal contracting officer drafting an acquisition plan in markdown, consistent with the supplied market research.",
		SchemaPrompt: "Return a JSON object with acquisition_strategy, period_of_performance, and estimated_total_cost.",
		Provider:     deps.Provider,
		Retriever:    deps.Retriever,
		Extractor:    extract.NewExtractor(fields, nil),
	})
}

// NewIGCEAgent builds the agent that produces the independent government
// cost estimate, which depends on the acquisition plan.
func NewIGCEAgent(deps Deps) *BaseAgent {
	fields := []extract.FieldDefinition{
		{Name: "total_cost", Type: extract.FieldTypeCurrency},
		{Name: "period_of_performance", Type: extract.FieldTypeDuration},
		{Name: "cost_basis", Type: extract.FieldTypeText},
	}
	return NewBaseAgent(Config{
		DocType:      DocTypeIGCE,
		Section:      "igce",
		SystemPrompt: "You are a cost analyst producing an independent government cost estimate in markdown, derived from the acquisition plan's scope and period of performance.",
		SchemaPrompt: "Return a JSON object with total_cost, period_of_performance, and cost_basis.",
		Provider:     deps.Provider,
		Retriever:    deps.Retriever,
		Extractor:    extract.NewExtractor(fields, nil),
	})
}

// NewPWSAgent builds the agent that drafts the performance work statement,
// which depends on the acquisition plan.
func NewPWSAgent(deps Deps) *BaseAgent {
	fields := []extract.FieldDefinition{
		{Name: "scope_of_work", Type: extract.FieldTypeText},
		{Name: "deliverables", Type: extract.FieldTypeText},
		{Name: "period_of_performance", Type: extract.FieldTypeDuration},
	}
	return NewBaseAgent(Config{
		DocType:      DocTypePWS,
		Section:      "pws",
		SystemPrompt: "You are a contracting officer's representative drafting a performance work statement in markdown, consistent with the acquisition plan's scope.",
		SchemaPrompt: "Return a JSON object with scope_of_work, deliverables, and period_of_performance.",
		Provider:     deps.Provider,
		Retriever:    deps.Retriever,
		Extractor:    extract.NewExtractor(fields, nil),
	})
}

// NewSolicitationAgent builds the agent that assembles the solicitation
// document, which depends on both the PWS and the IGCE.
func NewSolicitationAgent(deps Deps) *BaseAgent {
	fields := []extract.FieldDefinition{
		{Name: "solicitation_number", Type: extract.FieldTypeIdentifier},
		{Name: "closing_date", Type: extract.FieldTypeDate},
		{Name: "estimated_value", Type: extract.FieldTypeCurrency},
	}
	return NewBaseAgent(Config{
		DocType:      DocTypeSolicitation,
		Section:      "solicitation",
		SystemPrompt: "You are a contracting officer assembling a solicitation document in markdown from the performance work statement and independent government cost estimate.",
		SchemaPrompt: "Return a JSON object with solicitation_number, closing_date, and estimated_value.",
		Provider:     deps.Provider,
		Retriever:    deps.Retriever,
		Extractor:    extract.NewExtractor(fields, nil),
	})
}

// NewEvaluationScorecardAgent builds the agent that produces the proposal
// evaluation scorecard, which depends on the solicitation.
func NewEvaluationScorecardAgent(deps Deps) *BaseAgent {
	fields := []extract.FieldDefinition{
		{Name: "evaluation_criteria", Type: extract.FieldTypeText},
		{Name: "weighting", Type: extract.FieldTypePercentage},
	}
	return NewBaseAgent(Config{
		DocType:      DocTypeEvaluationScorecard,
		Section:      "evaluation_scorecard",
		SystemPrompt: "You are a source selection evaluator drafting an evaluation scorecard in markdown, consistent with the solicitation's stated criteria.",
		SchemaPrompt: "Return a JSON object with evaluation_criteria and weighting.",
		Provider:     deps.Provider,
		Retriever:    deps.Retriever,
		Extractor:    extract.NewExtractor(fields, nil),
	})
}

// NewDefaultRegistry builds the startup registry with all six per-artifact
// agents, each wired to the same provider and retriever.
func NewDefaultRegistry(deps Deps) *Registry {
	reg := NewRegistry()
	reg.Register(NewMarketResearchAgent(deps))
	reg.Register(NewAcquisitionPlanAgent(deps))
	reg.Register(NewIGCEAgent(deps))
	reg.Register(NewPWSAgent(deps))
	reg.Register(NewSolicitationAgent(deps))
	reg.Register(NewEvaluationScorecardAgent(deps))
	return reg
}

// Dependencies maps each doc_type to the doc_types its agent needs as
// ancestor context, the static dependency graph the coordinator topo-sorts.
var Dependencies = map[string][]string{
	DocTypeMarketResearch:      {},
	DocTypeAcquisitionPlan:     {DocTypeMarketResearch},
	DocTypeIGCE:                {DocTypeAcquisitionPlan},
	DocTypePWS:                 {DocTypeAcquisitionPlan},
	DocTypeSolicitation:        {DocTypePWS, DocTypeIGCE},
	DocTypeEvaluationScorecard: {DocTypeSolicitation},
}

// DocTypeOrder is the canonical declaration order of the six doc types,
// matching NewDefaultRegistry's registration order. The coordinator uses
// it to break topological-sort ties deterministically.
var DocTypeOrder = []string{
	DocTypeMarketResearch,
	DocTypeAcquisitionPlan,
	DocTypeIGCE,
	DocTypePWS,
	DocTypeSolicitation,
	DocTypeEvaluationScorecard,
}
