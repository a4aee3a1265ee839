// Package agent implements the per-artifact generation agents: each
// doc_type (market research, acquisition plan, IGCE, PWS, solicitation,
// evaluation scorecard) is handled by an Agent that composes an
// aiprovider.LLMProvider with the retriever and extractor.
package agent

import (
	"context"
	"fmt"
	"sync"

	aiprovider "github.com/alpinesboltltd/boltz-ai/internal/provider/ai-provider"

	"github.com/alpinesboltltd/boltz-ai/internal/entity"
	"github.com/alpinesboltltd/boltz-ai/internal/extract"
	"github.com/alpinesboltltd/boltz-ai/internal/rag"
)

// Request is everything an Agent needs to produce one artifact.
type Request struct {
	Program     string
	DocType     string
	Assumptions []entity.Assumption
	// ProjectContext is the requesting program's descriptive fields (name,
	// type, current phase, estimated value, ...), folded into the prompt
	// so the model has the same program-level facts a human drafter would.
	ProjectContext entity.ProjectContext
	// AdditionalContext is free-form caller-supplied context, distinct
	// from ProjectContext's fixed fields.
	AdditionalContext string
	// AncestorContext is the truncated, already-assembled text of
	// dependency documents the coordinator resolved for this artifact.
	AncestorContext string
	Usage           *UsageTracker
}

// Result is one artifact's generated content plus whatever the hybrid
// extractor could pull out of it, ready for the metadata store.
type Result struct {
	Content       string
	ExtractedData map[string]interface{}
	RetrievedDocs []string         // distinct retrieval source identifiers used
	Retrieval     []RetrievalSource // per-source score/chunk detail, for lineage CONTEXT edges
}

// RetrievalSource summarizes the chunks pulled from one knowledge source
// during Execute, so the coordinator can record a single CONTEXT edge per
// source with an averaged score instead of one edge per chunk.
type RetrievalSource struct {
	Source       string
	AverageScore float64
	ChunkIDs     []string
}

// Agent produces a single procurement artifact.
type Agent interface {
	DocType() string
	Execute(ctx context.Context, req Request) (Result, error)
}

// UsageTracker accumulates token usage explicitly, passed through
// Request rather than kept as ambient/global state.
type UsageTracker struct {
	mu     sync.Mutex
	totals map[string]int
}

func NewUsageTracker() *UsageTracker {
	return &UsageTracker{totals: make(map[string]int)}
}

func (u *UsageTracker) Add(provider string, tokens int) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.totals[provider] += tokens
}

func (u *UsageTracker) Total() int {
	if u == nil {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	sum := 0
	for _, v := range u.totals {
		sum += v
	}
	return sum
}

// Registry is the doc_type -> Agent startup registry, grounded on
// aiprovider.ProviderFactory's map-of-constructors shape.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.DocType()] = a
}

func (r *Registry) Get(docType string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[docType]
	if !ok {
		return nil, fmt.Errorf("agent: no agent registered for doc_type %q", docType)
	}
	return a, nil
}

func (r *Registry) DocTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.agents))
	for dt := range r.agents {
		out = append(out, dt)
	}
	return out
}

// BaseAgent is the concrete Agent implementation every per-artifact agent
// is built from: a system prompt, a field schema for extraction, a
// retrieval section key, and the shared provider/retriever/extractor.
type BaseAgent struct {
	docType           string
	systemPrompt      string
	schemaPrompt      string
	section           string
	provider          aiprovider.LLMProvider
	retriever         *rag.Retriever
	extractor         *extract.Extractor
	retrieveTopK      int
	retrieveThreshold float32
	minCharBudget     int
}

// Config configures one BaseAgent instance.
type Config struct {
	DocType           string
	SystemPrompt      string
	SchemaPrompt      string
	Section           string
	Provider          aiprovider.LLMProvider
	Retriever         *rag.Retriever
	Extractor         *extract.Extractor
	RetrieveTopK      int
	RetrieveThreshold float32
	CharBudget        int
}

func NewBaseAgent(cfg Config) *BaseAgent {
	topK := cfg.RetrieveTopK
	if topK <= 0 {
		topK = 5
	}
	budget := cfg.CharBudget
	if budget <= 0 {
		budget = 6000
	}
	return &BaseAgent{
		docType:           cfg.DocType,
		systemPrompt:      cfg.SystemPrompt,
		schemaPrompt:      cfg.SchemaPrompt,
		section:           cfg.Section,
		provider:          cfg.Provider,
		retriever:         cfg.Retriever,
		extractor:         cfg.Extractor,
		retrieveTopK:      topK,
		retrieveThreshold: cfg.RetrieveThreshold,
		minCharBudget:     budget,
	}
}

func (a *BaseAgent) DocType() string { return a.docType }

// Execute retrieves supporting knowledge, assembles a conversation,
// completes it, cleans the markdown, and runs extraction over both the
// retrieved evidence and the freshly generated content.
func (a *BaseAgent) Execute(ctx context.Context, req Request) (Result, error) {
	var retrieved []rag.ScoredChunk
	if a.retriever != nil {
		opts := rag.RetrievalOptions{TopK: a.retrieveTopK, Threshold: a.retrieveThreshold}
		var err error
		retrieved, err = a.retriever.RetrieveForSection(ctx, req.Program, a.docType, a.section, opts)
		if err != nil {
			return Result{}, fmt.Errorf("agent %s: retrieval failed: %w", a.docType, err)
		}
	}

	userPrompt := a.buildUserPrompt(req, retrieved)

	conversation := aiprovider.Conversation{Messages: []aiprovider.Message{
		{Role: aiprovider.RoleSystem, Content: a.systemPrompt},
		{Role: aiprovider.RoleUser, Content: userPrompt},
	}}

	raw, err := a.provider.CompleteConversation(conversation, nil)
	if err != nil {
		return Result{}, fmt.Errorf("agent %s: completion failed: %w", a.docType, err)
	}

	content := CleanMarkdown(raw)

	hits := make([]extract.RetrievalHit, 0, len(retrieved)+1)
	for _, rc := range retrieved {
		hits = append(hits, extract.RetrievalHit{Content: rc.Chunk.Content, Metadata: rc.Chunk.Metadata})
	}
	hits = append(hits, extract.RetrievalHit{Content: content, Metadata: map[string]string{"source": "generated"}})

	var extracted map[string]interface{}
	if a.extractor != nil {
		record := a.extractor.Extract(ctx, hits, a.schemaPrompt)
		extracted = map[string]interface{}{
			"fields": record.Fields,
			"lists":  record.Lists,
			"stage":  record.Stage,
		}
	}

	sources := make([]string, 0, len(retrieved))
	seen := make(map[string]bool, len(retrieved))
	order := make([]string, 0, len(retrieved))
	scoreSum := make(map[string]float64, len(retrieved))
	scoreCount := make(map[string]int, len(retrieved))
	chunkIDs := make(map[string][]string, len(retrieved))
	for _, rc := range retrieved {
		if rc.Chunk.Source == "" {
			continue
		}
		if !seen[rc.Chunk.Source] {
			seen[rc.Chunk.Source] = true
			sources = append(sources, rc.Chunk.Source)
			order = append(order, rc.Chunk.Source)
		}
		scoreSum[rc.Chunk.Source] += float64(rc.Score)
		scoreCount[rc.Chunk.Source]++
		chunkIDs[rc.Chunk.Source] = append(chunkIDs[rc.Chunk.Source], rc.Chunk.ChunkID)
	}

	retrievalDetail := make([]RetrievalSource, 0, len(order))
	for _, src := range order {
		retrievalDetail = append(retrievalDetail, RetrievalSource{
			Source:       src,
			AverageScore: scoreSum[src] / float64(scoreCount[src]),
			ChunkIDs:     chunkIDs[src],
		})
	}

	return Result{Content: content, ExtractedData: extracted, RetrievedDocs: sources, Retrieval: retrievalDetail}, nil
}

func (a *BaseAgent) buildUserPrompt(req Request, retrieved []rag.ScoredChunk) string {
	prompt := fmt.Sprintf("Produce the %s for program %q.\n\n", a.docType, req.Program)

	if !req.ProjectContext.Empty() {
		prompt += "Project context:\n"
		pc := req.ProjectContext
		if pc.Name != "" {
			prompt += fmt.Sprintf("- Name: %s\n", pc.Name)
		}
		if pc.Description != "" {
			prompt += fmt.Sprintf("- Description: %s\n", pc.Description)
		}
		if pc.ProjectType != "" {
			prompt += fmt.Sprintf("- Project type: %s\n", pc.ProjectType)
		}
		if pc.CurrentPhase != "" {
			prompt += fmt.Sprintf("- Current phase: %s\n", pc.CurrentPhase)
		}
		if pc.EstimatedValue != 0 {
			prompt += fmt.Sprintf("- Estimated value: %.2f\n", pc.EstimatedValue)
		}
		if pc.ContractType != "" {
			prompt += fmt.Sprintf("- Contract type: %s\n", pc.ContractType)
		}
		if pc.PeriodOfPerformance != "" {
			prompt += fmt.Sprintf("- Period of performance: %s\n", pc.PeriodOfPerformance)
		}
		prompt += "\n"
	}

	if req.AdditionalContext != "" {
		prompt += "Additional context:\n" + req.AdditionalContext + "\n\n"
	}

	if len(req.Assumptions) > 0 {
		prompt += "Assumptions:\n"
		for _, as := range req.Assumptions {
			prompt += fmt.Sprintf("- %s: %s\n", as.Key, as.Value)
		}
		prompt += "\n"
	}

	if req.AncestorContext != "" {
		prompt += "Context from prior artifacts:\n" + req.AncestorContext + "\n\n"
	}

	if len(retrieved) > 0 {
		prompt += "Relevant knowledge base excerpts:\n"
		for _, rc := range retrieved {
			prompt += "- " + rc.Chunk.Content + "\n"
		}
		prompt += "\n"
	}

	return prompt
}
