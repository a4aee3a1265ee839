package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/alpinesboltltd/boltz-ai/internal/agent"
	"github.com/alpinesboltltd/boltz-ai/internal/cache"
	"github.com/alpinesboltltd/boltz-ai/internal/entity"
	"github.com/alpinesboltltd/boltz-ai/internal/incache"
	"github.com/alpinesboltltd/boltz-ai/internal/registry"
	"github.com/alpinesboltltd/boltz-ai/internal/validate"

	aiprovider "github.com/alpinesboltltd/boltz-ai/internal/provider/ai-provider"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeProvider struct {
	response string
}

func (f *fakeProvider) CompleteConversation(conversation aiprovider.Conversation, config map[string]interface{}) (string, error) {
	return f.response, nil
}

func (f *fakeProvider) CompleteMultimodalConversation(messages []aiprovider.MultimodalMessage, config map[string]interface{}) (string, error) {
	return f.response, nil
}

func (f *fakeProvider) CompleteConversationStream(conversation aiprovider.Conversation, config map[string]interface{}, callback aiprovider.StreamCallback) error {
	return callback(f.response, true)
}

func (f *fakeProvider) GetCapabilities() entity.ModelCapabilities {
	return entity.ModelCapabilities{Text: true}
}

// erroringAgent always fails, for exercising the partial_failure path.
type erroringAgent struct {
	docType string
}

func (e *erroringAgent) DocType() string { return e.docType }

func (e *erroringAgent) Execute(ctx context.Context, req agent.Request) (agent.Result, error) {
	return agent.Result{}, fmt.Errorf("simulated model failure")
}

// countingAgent wraps another Agent and counts Execute calls, for
// asserting an incremental-cache hit never reaches the underlying agent.
type countingAgent struct {
	inner agent.Agent
	calls int32
}

func (c *countingAgent) DocType() string { return c.inner.DocType() }

func (c *countingAgent) Execute(ctx context.Context, req agent.Request) (agent.Result, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.inner.Execute(ctx, req)
}

func buildAgent(t *testing.T, docType, response string) *agent.BaseAgent {
	t.Helper()
	return agent.NewBaseAgent(agent.Config{
		DocType:      docType,
		Section:      docType,
		SystemPrompt: "system",
		SchemaPrompt: "schema",
		Provider:     &fakeProvider{response: response},
	})
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := db.AutoMigrate(&entity.Project{}, &entity.ProjectDocument{}, &entity.Document{}, &entity.LineageEdge{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// seedAncestor records an already-approved ProjectDocument so it is
// eligible to be read as an external ancestor without being generated by
// the task under test.
func seedAncestor(t *testing.T, db *gorm.DB, program, docType, content string) string {
	t.Helper()
	docID := uuid.NewString()
	pd := entity.ProjectDocument{
		ID:               uuid.NewString(),
		Program:          program,
		DocType:          docType,
		DocumentID:       docID,
		Status:           entity.DocChecklistStatusApproved,
		GeneratedContent: content,
		GenerationStatus: entity.ArtifactStatusGenerated,
	}
	if err := db.Create(&pd).Error; err != nil {
		t.Fatalf("failed to seed ancestor %s: %v", docType, err)
	}
	return docID
}

func newCoordinator(db *gorm.DB, agents *agent.Registry, cacheLayer cache.Layer) *Coordinator {
	reg := registry.NewRegistry(db)
	ic := incache.New(cacheLayer)
	return New(db, reg, ic, agents, cacheLayer, Config{})
}

func TestRunDependencyOrderAndLineage(t *testing.T) {
	db := setupTestDB(t)
	program := "prog-order"
	seedAncestor(t, db, program, agent.DocTypeAcquisitionPlan, "Acquisition plan content.")

	agents := agent.NewRegistry()
	agents.Register(buildAgent(t, agent.DocTypePWS, "# PWS\nscope of work"))
	agents.Register(buildAgent(t, agent.DocTypeIGCE, "# IGCE\ncost estimate"))
	agents.Register(buildAgent(t, agent.DocTypeSolicitation, "# Solicitation\nfinal package"))

	cacheLayer := cache.NewMemoryLayer()
	coord := newCoordinator(db, agents, cacheLayer)

	gt, err := coord.Run(context.Background(), Task{
		ID:      "task-order",
		Program: program,
		DocTypes: []string{
			agent.DocTypeSolicitation,
			agent.DocTypePWS,
			agent.DocTypeIGCE,
		},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if gt.Status != entity.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s (errors: %v)", gt.Status, gt.Errors)
	}
	if gt.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", gt.Progress)
	}
	if len(gt.Sections) != 3 {
		t.Fatalf("expected 3 generated sections, got %d: %v", len(gt.Sections), gt.Sections)
	}
	if gt.Sections[agent.DocTypePWS] != agent.CleanMarkdown("# PWS\nscope of work") {
		t.Fatalf("unexpected pws content: %q", gt.Sections[agent.DocTypePWS])
	}

	reg := registry.NewRegistry(db)
	lineage, err := reg.ListLineage(context.Background(), program)
	if err != nil {
		t.Fatalf("ListLineage failed: %v", err)
	}

	dataSourceEdges := 0
	for _, e := range lineage {
		if e.Relation == entity.LineageRelationDataSource {
			dataSourceEdges++
		}
	}
	// pws->acquisition_plan, igce->acquisition_plan, solicitation->pws, solicitation->igce
	if dataSourceEdges != 4 {
		t.Fatalf("expected 4 data_source edges, got %d: %+v", dataSourceEdges, lineage)
	}
}

func TestRunMissingDependencyFailsUpfront(t *testing.T) {
	db := setupTestDB(t)
	program := "prog-missing"

	agents := agent.NewRegistry()
	agents.Register(buildAgent(t, agent.DocTypePWS, "# PWS\nshould never run"))

	cacheLayer := cache.NewMemoryLayer()
	coord := newCoordinator(db, agents, cacheLayer)

	gt, err := coord.Run(context.Background(), Task{
		ID:       "task-missing",
		Program:  program,
		DocTypes: []string{agent.DocTypePWS},
	})
	if err == nil {
		t.Fatalf("expected error for missing ancestor")
	}
	if gt.Status != entity.TaskStatusFailed {
		t.Fatalf("expected failed, got %s", gt.Status)
	}
	found := false
	for _, m := range gt.Errors {
		if m == agent.DocTypeAcquisitionPlan {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected missing ancestor %q listed in errors, got %v", agent.DocTypeAcquisitionPlan, gt.Errors)
	}

	reg := registry.NewRegistry(db)
	docs, err := reg.ListForProgram(context.Background(), program)
	if err != nil {
		t.Fatalf("ListForProgram failed: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no partial progress committed, found %d documents", len(docs))
	}
}

func TestRunPartialFailureOnAgentError(t *testing.T) {
	db := setupTestDB(t)
	program := "prog-partial"
	seedAncestor(t, db, program, agent.DocTypeAcquisitionPlan, "Acquisition plan content.")

	agents := agent.NewRegistry()
	agents.Register(buildAgent(t, agent.DocTypePWS, "# PWS\nscope of work"))
	agents.Register(&erroringAgent{docType: agent.DocTypeIGCE})

	cacheLayer := cache.NewMemoryLayer()
	coord := newCoordinator(db, agents, cacheLayer)

	gt, err := coord.Run(context.Background(), Task{
		ID:       "task-partial",
		Program:  program,
		DocTypes: []string{agent.DocTypePWS, agent.DocTypeIGCE},
	})
	if err != nil {
		t.Fatalf("Run should not return an error for a single artifact failure: %v", err)
	}
	if gt.Status != entity.TaskStatusPartialFailure {
		t.Fatalf("expected partial_failure, got %s", gt.Status)
	}
	if _, ok := gt.Sections[agent.DocTypePWS]; !ok {
		t.Fatalf("expected pws to have succeeded")
	}
	if _, ok := gt.Sections[agent.DocTypeIGCE]; ok {
		t.Fatalf("expected igce to have failed, not be present in sections")
	}
	found := false
	for _, m := range gt.Errors {
		if len(m) >= len(agent.DocTypeIGCE) && m[:len(agent.DocTypeIGCE)] == agent.DocTypeIGCE {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an error entry for igce, got %v", gt.Errors)
	}
}

func TestRunIncrementalCacheHitSkipsAgent(t *testing.T) {
	db := setupTestDB(t)
	program := "prog-cache"
	ancestorContent := "Acquisition plan content."
	seedAncestor(t, db, program, agent.DocTypeAcquisitionPlan, ancestorContent)

	underlying := buildAgent(t, agent.DocTypePWS, "# PWS\nfresh generation")
	counting := &countingAgent{inner: underlying}

	agents := agent.NewRegistry()
	agents.Register(counting)

	cacheLayer := cache.NewMemoryLayer()
	ic := incache.New(cacheLayer)

	inputs := incache.Inputs{
		Program: program,
		DocType: agent.DocTypePWS,
		Dependencies: map[string]string{
			agent.DocTypeAcquisitionPlan: incache.ContentHash(ancestorContent),
		},
	}
	if err := ic.Store(context.Background(), inputs, incache.Result{DocumentID: "cached-doc-1", Content: "# Cached PWS"}); err != nil {
		t.Fatalf("failed to seed cache: %v", err)
	}

	reg := registry.NewRegistry(db)
	coord := New(db, reg, ic, agents, cacheLayer, Config{})

	gt, err := coord.Run(context.Background(), Task{
		ID:       "task-cache",
		Program:  program,
		DocTypes: []string{agent.DocTypePWS},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if gt.Status != entity.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s (errors: %v)", gt.Status, gt.Errors)
	}
	if gt.Sections[agent.DocTypePWS] != "# Cached PWS" {
		t.Fatalf("expected cached content, got %q", gt.Sections[agent.DocTypePWS])
	}
	if atomic.LoadInt32(&counting.calls) != 0 {
		t.Fatalf("expected agent never called on cache hit, got %d calls", counting.calls)
	}

	var pd entity.ProjectDocument
	if err := db.Where("program = ? AND doc_type = ?", program, agent.DocTypePWS).First(&pd).Error; err != nil {
		t.Fatalf("failed to load project document: %v", err)
	}
	if pd.GenerationStatus != entity.ArtifactStatusCached {
		t.Fatalf("expected generation_status cached, got %s", pd.GenerationStatus)
	}
	if pd.DocumentID != "cached-doc-1" {
		t.Fatalf("expected cached doc id, got %s", pd.DocumentID)
	}
}

func TestRunPublishesConsistencyCheckEvent(t *testing.T) {
	db := setupTestDB(t)
	program := "prog-consistency"
	seedAncestor(t, db, program, agent.DocTypeAcquisitionPlan, "Total cost: $500,000\n")

	agents := agent.NewRegistry()
	agents.Register(buildAgent(t, agent.DocTypeIGCE, "# IGCE\nTotal cost: $500,000\n"))

	cacheLayer := cache.NewMemoryLayer()
	coord := newCoordinator(db, agents, cacheLayer)

	_, err := coord.Run(context.Background(), Task{
		ID:       "task-consistency",
		Program:  program,
		DocTypes: []string{agent.DocTypeIGCE},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var found bool
	for _, p := range cacheLayer.Published() {
		var ev entity.ProgressEvent
		if err := json.Unmarshal(p.Payload, &ev); err != nil {
			continue
		}
		if ev.EventType != "consistency_check" {
			continue
		}
		found = true
		if ev.Extra["ancestor"] != agent.DocTypeAcquisitionPlan {
			t.Fatalf("expected consistency check against %s, got %v", agent.DocTypeAcquisitionPlan, ev.Extra["ancestor"])
		}
		fields, ok := ev.Extra["fields"].(map[string]interface{})
		if !ok {
			t.Fatalf("expected fields map in consistency event, got %T", ev.Extra["fields"])
		}
		if fields["total_cost"] != string(validate.StatusPass) {
			t.Fatalf("expected total_cost PASS for matching costs, got %v", fields["total_cost"])
		}
	}
	if !found {
		t.Fatalf("expected a consistency_check progress event for igce vs acquisition_plan")
	}
}

func TestRunPublishesProgressEvents(t *testing.T) {
	db := setupTestDB(t)
	program := "prog-progress"

	agents := agent.NewRegistry()
	agents.Register(buildAgent(t, agent.DocTypeMarketResearch, "# Market Research\nfindings"))

	cacheLayer := cache.NewMemoryLayer()
	coord := newCoordinator(db, agents, cacheLayer)

	_, err := coord.Run(context.Background(), Task{
		ID:       "task-progress",
		Program:  program,
		DocTypes: []string{agent.DocTypeMarketResearch},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	published := cacheLayer.Published()
	if len(published) < 2 {
		t.Fatalf("expected at least a started and completed event, got %d", len(published))
	}

	var first, last entity.ProgressEvent
	if err := json.Unmarshal(published[0].Payload, &first); err != nil {
		t.Fatalf("failed to unmarshal first event: %v", err)
	}
	if err := json.Unmarshal(published[len(published)-1].Payload, &last); err != nil {
		t.Fatalf("failed to unmarshal last event: %v", err)
	}

	if first.EventType != entity.ProgressEventStarted {
		t.Fatalf("expected first event started, got %s", first.EventType)
	}
	if last.EventType != entity.ProgressEventCompleted {
		t.Fatalf("expected last event completed, got %s", last.EventType)
	}
	if last.Progress != 100 {
		t.Fatalf("expected final progress 100, got %d", last.Progress)
	}
	for _, p := range published {
		if p.Channel != "ws:"+program {
			t.Fatalf("expected channel ws:%s, got %s", program, p.Channel)
		}
	}
}
