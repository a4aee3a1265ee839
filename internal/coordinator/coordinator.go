// Package coordinator implements the Agent Coordinator: it resolves an
// artifact dependency chain into an execution order, assembles context
// for each artifact, drives the Agent/Extractor/Incremental-Cache chain
// per artifact, persists results and lineage, and reports progress.
//
// Grounded on the teacher's internal/engine scaffold: artifacts run wave by
// wave, and the artifacts of one wave execute concurrently behind a
// semaphore the way
// scheduler.Start gates worker goroutines, and progress fans out through
// the Cache Layer's pub/sub channel the way dispatcher.InMemDispatcher
// fans out OutboxEvents, generalized to a cross-process channel.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alpinesboltltd/boltz-ai/internal/agent"
	"github.com/alpinesboltltd/boltz-ai/internal/cache"
	"github.com/alpinesboltltd/boltz-ai/internal/entity"
	"github.com/alpinesboltltd/boltz-ai/internal/errors"
	"github.com/alpinesboltltd/boltz-ai/internal/incache"
	"github.com/alpinesboltltd/boltz-ai/internal/registry"
	"github.com/alpinesboltltd/boltz-ai/internal/validate"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task is one generation request: produce every doc_type in DocTypes for
// Program. Ancestors of DocTypes that are not themselves requested must
// already be approved, uploaded, or generated; the coordinator never
// implicitly schedules generation of an artifact nobody asked for.
type Task struct {
	ID          string
	Program     string
	DocTypes    []string
	Assumptions []entity.Assumption
	RequestedBy string

	// ProjectContext carries the requesting program's descriptive fields
	// (name, type, current phase, estimated value, ...) into every
	// artifact's prompt; see entity.ProjectContext.
	ProjectContext entity.ProjectContext
	// AdditionalContext is free-form caller-supplied context folded into
	// both the agent prompt and the Incremental Cache's input hash, so a
	// task re-run with different context never hits a stale cache entry.
	AdditionalContext string
}

// Config tunes the coordinator; zero values fall back to the documented
// defaults.
type Config struct {
	AncestorCharCap int               // truncation cap per ancestor, default 2000
	MaxConcurrency  int               // worker semaphore size per wave, default 4
	AgentConfig     map[string]string // {model, temperature, version} subset folded into input_hash
}

// Coordinator executes GenerationTasks end to end.
type Coordinator struct {
	db         *gorm.DB
	registry   *registry.Registry
	incache    *incache.Cache
	agents     *agent.Registry
	cacheLayer cache.Layer
	consistency *validate.Validator

	ancestorCharCap int
	maxConcurrency  int
	agentConfig     map[string]string
}

func New(db *gorm.DB, reg *registry.Registry, ic *incache.Cache, agents *agent.Registry, cacheLayer cache.Layer, cfg Config) *Coordinator {
	charCap := cfg.AncestorCharCap
	if charCap <= 0 {
		charCap = 2000
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Coordinator{
		db:              db,
		registry:        reg,
		incache:         ic,
		agents:          agents,
		cacheLayer:      cacheLayer,
		consistency:     validate.NewValidator(validate.DefaultFields()),
		ancestorCharCap: charCap,
		maxConcurrency:  maxConcurrency,
		agentConfig:     cfg.AgentConfig,
	}
}

// artifactOutcome is the coordinator's record of one successfully
// completed artifact within the current task, kept in memory for
// downstream ancestor lookups without a database round trip.
type artifactOutcome struct {
	DocumentID string
	Content    string
}

// Run executes task end to end and returns the final GenerationTask
// record. It never returns a nil *entity.GenerationTask, even on early
// failure, so callers always have a status and error list to report.
func (c *Coordinator) Run(ctx context.Context, task Task) (*entity.GenerationTask, error) {
	now := time.Now()
	gt := &entity.GenerationTask{
		ID:          task.ID,
		Program:     task.Program,
		DocTypes:    task.DocTypes,
		Assumptions: task.Assumptions,
		Status:      entity.TaskStatusRunning,
		Sections:    make(map[string]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	requestedSet := make(map[string]bool, len(task.DocTypes))
	for _, dt := range task.DocTypes {
		if _, ok := agent.Dependencies[dt]; !ok {
			return c.fail(gt, fmt.Errorf("coordinator: unknown doc_type %q", dt))
		}
		requestedSet[dt] = true
	}

	missing, err := c.checkEligibility(ctx, task.Program, requestedSet)
	if err != nil {
		return c.fail(gt, err)
	}
	if len(missing) > 0 {
		appErr := errors.NewMissingDependencyError(
			fmt.Sprintf("missing or unapproved ancestor documents: %s", strings.Join(missing, ", ")))
		gt.Errors = missing
		gt.Status = entity.TaskStatusFailed
		gt.UpdatedAt = time.Now()
		c.publishProgress(ctx, task.Program, entity.ProgressEvent{
			TaskID: task.ID, Program: task.Program, EventType: entity.ProgressEventError,
			Message: appErr.Message, Timestamp: time.Now(),
		})
		return gt, appErr
	}

	order, err := resolveOrder(requestedSet)
	if err != nil {
		return c.fail(gt, err)
	}

	c.publishProgress(ctx, task.Program, entity.ProgressEvent{
		TaskID: task.ID, Program: task.Program, EventType: entity.ProgressEventStarted,
		Timestamp: time.Now(),
	})

	usage := agent.NewUsageTracker()
	results := make(map[string]artifactOutcome, len(order))
	blocked := make(map[string]bool, len(order))
	total := len(order)
	completed := 0
	anyFailed := false

	remaining := order
	for len(remaining) > 0 {
		select {
		case <-ctx.Done():
			gt.Status = entity.TaskStatusFailed
			gt.Errors = append(gt.Errors, "cancelled")
			gt.UpdatedAt = time.Now()
			c.publishProgress(ctx, task.Program, entity.ProgressEvent{
				TaskID: task.ID, Program: task.Program, EventType: entity.ProgressEventError,
				Message: "task cancelled", Timestamp: time.Now(),
			})
			return gt, ctx.Err()
		default:
		}

		wave, rest := splitWave(remaining, requestedSet, results, blocked)
		if len(wave) == 0 {
			// resolveOrder guarantees a valid topo order and splitWave counts
			// blocked ancestors as resolved, so a wave is not empty while
			// artifacts remain; this is a defensive guard.
			for _, dt := range rest {
				blocked[dt] = true
				gt.Errors = append(gt.Errors, fmt.Sprintf("%s: missing_dependency", dt))
				completed++
			}
			break
		}

		type outcome struct {
			docType string
			result  artifactOutcome
			err     error
			skipped bool
		}
		outcomes := make([]outcome, len(wave))

		sem := make(chan struct{}, c.maxConcurrency)
		var wg sync.WaitGroup
		snapshot := snapshotResults(results)

		for i, dt := range wave {
			if dependsOnBlocked(dt, requestedSet, blocked) {
				outcomes[i] = outcome{docType: dt, skipped: true}
				continue
			}

			wg.Add(1)
			sem <- struct{}{}
			go func(idx int, docType string) {
				defer wg.Done()
				defer func() { <-sem }()
				res, execErr := c.executeArtifact(ctx, task, docType, requestedSet, snapshot, usage)
				outcomes[idx] = outcome{docType: docType, result: res, err: execErr}
			}(i, dt)
		}
		wg.Wait()

		for _, o := range outcomes {
			completed++
			gt.Progress = completed * 100 / total
			switch {
			case o.skipped:
				blocked[o.docType] = true
				gt.Errors = append(gt.Errors, fmt.Sprintf("%s: missing_dependency", o.docType))
				c.publishProgress(ctx, task.Program, entity.ProgressEvent{
					TaskID: task.ID, Program: task.Program, EventType: entity.ProgressEventProgress,
					Progress: gt.Progress, Message: o.docType + ": skipped (missing_dependency)",
					Timestamp: time.Now(),
				})
			case o.err != nil:
				blocked[o.docType] = true
				anyFailed = true
				gt.Errors = append(gt.Errors, fmt.Sprintf("%s: %v", o.docType, o.err))
				c.publishProgress(ctx, task.Program, entity.ProgressEvent{
					TaskID: task.ID, Program: task.Program, EventType: entity.ProgressEventError,
					Progress: gt.Progress, Message: fmt.Sprintf("%s: %v", o.docType, o.err),
					Timestamp: time.Now(),
				})
			default:
				results[o.docType] = o.result
				gt.Sections[o.docType] = o.result.Content
				c.publishProgress(ctx, task.Program, entity.ProgressEvent{
					TaskID: task.ID, Program: task.Program, EventType: entity.ProgressEventProgress,
					Progress: gt.Progress, Message: o.docType + ": generated",
					Timestamp: time.Now(),
				})
			}
		}

		remaining = rest
	}

	gt.Progress = 100
	gt.UpdatedAt = time.Now()
	if anyFailed {
		gt.Status = entity.TaskStatusPartialFailure
	} else {
		gt.Status = entity.TaskStatusCompleted
	}

	c.publishProgress(ctx, task.Program, entity.ProgressEvent{
		TaskID: task.ID, Program: task.Program, EventType: entity.ProgressEventCompleted,
		Progress: 100, Timestamp: time.Now(),
		Extra: map[string]interface{}{"status": gt.Status, "token_usage": usage.Total()},
	})

	return gt, nil
}

func (c *Coordinator) fail(gt *entity.GenerationTask, err error) (*entity.GenerationTask, error) {
	gt.Status = entity.TaskStatusFailed
	gt.Errors = append(gt.Errors, err.Error())
	gt.UpdatedAt = time.Now()
	return gt, err
}

// splitWave partitions remaining into artifacts whose within-request
// dependencies have all already resolved (completed or blocked) and
// everything still waiting on at least one.
func splitWave(remaining []string, requestedSet map[string]bool, results map[string]artifactOutcome, blocked map[string]bool) (wave, rest []string) {
	for _, dt := range remaining {
		ready := true
		for _, dep := range agent.Dependencies[dt] {
			if !requestedSet[dep] {
				continue // external ancestor, already verified eligible upfront
			}
			if _, done := results[dep]; done {
				continue
			}
			if blocked[dep] {
				continue
			}
			ready = false
			break
		}
		if ready {
			wave = append(wave, dt)
		} else {
			rest = append(rest, dt)
		}
	}
	return wave, rest
}

func dependsOnBlocked(docType string, requestedSet map[string]bool, blocked map[string]bool) bool {
	for _, dep := range agent.Dependencies[docType] {
		if requestedSet[dep] && blocked[dep] {
			return true
		}
	}
	return false
}

func snapshotResults(results map[string]artifactOutcome) map[string]artifactOutcome {
	out := make(map[string]artifactOutcome, len(results))
	for k, v := range results {
		out[k] = v
	}
	return out
}

// resolveOrder computes a topological order over requestedSet's internal
// dependency edges (edges to artifacts outside requestedSet are ignored,
// since those ancestors are required to already exist), breaking ties by
// agent.DocTypeOrder's declaration order.
func resolveOrder(requestedSet map[string]bool) ([]string, error) {
	declIndex := make(map[string]int, len(agent.DocTypeOrder))
	for i, dt := range agent.DocTypeOrder {
		declIndex[dt] = i
	}
	byDecl := func(s []string) {
		sort.Slice(s, func(i, j int) bool { return declIndex[s[i]] < declIndex[s[j]] })
	}

	inDegree := make(map[string]int, len(requestedSet))
	dependents := make(map[string][]string, len(requestedSet))
	for dt := range requestedSet {
		count := 0
		for _, dep := range agent.Dependencies[dt] {
			if requestedSet[dep] {
				count++
				dependents[dep] = append(dependents[dep], dt)
			}
		}
		inDegree[dt] = count
	}

	var ready []string
	for dt := range requestedSet {
		if inDegree[dt] == 0 {
			ready = append(ready, dt)
		}
	}
	byDecl(ready)

	order := make([]string, 0, len(requestedSet))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		var newlyReady []string
		for _, dep := range dependents[next] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				newlyReady = append(newlyReady, dep)
			}
		}
		byDecl(newlyReady)
		ready = append(ready, newlyReady...)
		byDecl(ready)
	}

	if len(order) != len(requestedSet) {
		return nil, fmt.Errorf("coordinator: dependency cycle detected in requested set")
	}
	return order, nil
}

// checkEligibility returns the sorted list of external ancestors (not
// themselves requested) that are neither approved, uploaded, nor already
// generated.
func (c *Coordinator) checkEligibility(ctx context.Context, program string, requestedSet map[string]bool) ([]string, error) {
	var missing []string
	checked := make(map[string]bool)
	for dt := range requestedSet {
		for _, anc := range agent.Dependencies[dt] {
			if requestedSet[anc] || checked[anc] {
				continue
			}
			checked[anc] = true
			eligible, err := c.ancestorEligible(ctx, program, anc)
			if err != nil {
				return nil, err
			}
			if !eligible {
				missing = append(missing, anc)
			}
		}
	}
	sort.Strings(missing)
	return missing, nil
}

func (c *Coordinator) ancestorEligible(ctx context.Context, program, docType string) (bool, error) {
	var pd entity.ProjectDocument
	err := c.db.WithContext(ctx).Where("program = ? AND doc_type = ?", program, docType).
		Order("created_at DESC").First(&pd).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("coordinator: failed to check ancestor %s: %w", docType, err)
	}
	if pd.Status == entity.DocChecklistStatusApproved || pd.Status == entity.DocChecklistStatusUploaded {
		return true, nil
	}
	return pd.GenerationStatus == entity.ArtifactStatusGenerated, nil
}

// resolveAncestor returns an ancestor's document id and content, first
// from this task's own in-memory results (for ancestors generated earlier
// in the same task), falling back to the persisted ProjectDocument row.
func (c *Coordinator) resolveAncestor(ctx context.Context, program, docType string, results map[string]artifactOutcome) (string, string, error) {
	if out, ok := results[docType]; ok {
		return out.DocumentID, out.Content, nil
	}
	var pd entity.ProjectDocument
	if err := c.db.WithContext(ctx).Where("program = ? AND doc_type = ?", program, docType).
		Order("created_at DESC").First(&pd).Error; err != nil {
		return "", "", fmt.Errorf("coordinator: failed to load ancestor %s: %w", docType, err)
	}
	return pd.DocumentID, pd.GeneratedContent, nil
}

// executeArtifact runs the per-artifact protocol: hash check against the
// Incremental Cache, agent execution on miss, persistence, lineage, and
// the consistency check. Progress events are published by Run. A non-nil
// error marks the artifact FAILED in the caller's bookkeeping.
func (c *Coordinator) executeArtifact(ctx context.Context, task Task, docType string, requestedSet map[string]bool, results map[string]artifactOutcome, usage *agent.UsageTracker) (artifactOutcome, error) {
	deps := agent.Dependencies[docType]

	depHashes := make(map[string]string, len(deps))
	ancestorIDs := make(map[string]string, len(deps))
	ancestorContents := make(map[string]string, len(deps))
	ancestorParts := make([]string, 0, len(deps))
	for _, dep := range deps {
		docID, content, err := c.resolveAncestor(ctx, task.Program, dep, results)
		if err != nil {
			return artifactOutcome{}, err
		}
		ancestorIDs[dep] = docID
		ancestorContents[dep] = content
		depHashes[dep] = incache.ContentHash(content)
		ancestorParts = append(ancestorParts, fmt.Sprintf("## %s\n%s", dep, truncate(content, c.ancestorCharCap)))
	}

	inputs := incache.Inputs{
		Program:           task.Program,
		DocType:           docType,
		Phase:             task.ProjectContext.CurrentPhase,
		Assumptions:       task.Assumptions,
		AdditionalContext: task.AdditionalContext,
		AgentConfig:       c.agentConfig,
		Dependencies:      depHashes,
	}

	if cached, _, hit := c.incache.Check(ctx, inputs); hit {
		if err := c.upsertProjectDocument(ctx, task.Program, docType, cached.DocumentID, cached.Content, entity.ArtifactStatusCached, nil); err != nil {
			return artifactOutcome{}, err
		}
		return artifactOutcome{DocumentID: cached.DocumentID, Content: cached.Content}, nil
	}

	ag, err := c.agents.Get(docType)
	if err != nil {
		return artifactOutcome{}, fmt.Errorf("%s: %w", errors.AgentFailure, err)
	}

	req := agent.Request{
		Program:           task.Program,
		DocType:           docType,
		Assumptions:       task.Assumptions,
		ProjectContext:    task.ProjectContext,
		AdditionalContext: task.AdditionalContext,
		AncestorContext:   strings.Join(ancestorParts, "\n\n"),
		Usage:             usage,
	}

	result, err := ag.Execute(ctx, req)
	if err != nil {
		return artifactOutcome{}, fmt.Errorf("%s: %w", errors.AgentFailure, err)
	}

	references := make(map[string]string, len(ancestorIDs))
	for dep, id := range ancestorIDs {
		if id != "" {
			references[dep] = id
		}
	}

	docID, err := c.registry.SaveDocument(ctx, docType, task.Program, result.Content, result.ExtractedData, references, "coordinator")
	if err != nil {
		return artifactOutcome{}, fmt.Errorf("persist failed: %w", err)
	}

	for _, dep := range deps {
		ancID := ancestorIDs[dep]
		if ancID == "" {
			continue
		}
		relevance := 1.0
		if c.ancestorCharCap > 0 {
			used := len(truncate(ancestorContents[dep], c.ancestorCharCap))
			relevance = float64(used) / float64(c.ancestorCharCap)
			if relevance > 1 {
				relevance = 1
			}
		}
		if err := c.registry.AddReference(ctx, task.Program, docID, entity.LineageRelationDataSource, ancID, relevance, "coordinator"); err != nil {
			return artifactOutcome{}, fmt.Errorf("lineage data_source edge failed: %w", err)
		}
	}

	for _, rs := range result.Retrieval {
		if err := c.registry.AddContextReference(ctx, task.Program, docID, rs.Source, rs.AverageScore, rs.ChunkIDs, "coordinator"); err != nil {
			return artifactOutcome{}, fmt.Errorf("lineage context edge failed: %w", err)
		}
	}

	if err := c.upsertProjectDocument(ctx, task.Program, docType, docID, result.Content, entity.ArtifactStatusGenerated, nil); err != nil {
		return artifactOutcome{}, err
	}

	c.checkConsistency(ctx, task.Program, docType, result.Content, ancestorContents)

	// Incremental Cache I/O failures are warnings, not artifact failures.
	_ = c.incache.Store(ctx, inputs, incache.Result{DocumentID: docID, Content: result.Content})

	return artifactOutcome{DocumentID: docID, Content: result.Content}, nil
}

// checkConsistency runs the Consistency Validator against every ancestor
// validate.Checks declares for docType and publishes the result as a
// progress event. It is an observer of the Metadata Store, not a gate:
// a FAIL field never blocks or fails the artifact, it only gets reported.
func (c *Coordinator) checkConsistency(ctx context.Context, program, docType, content string, ancestorContents map[string]string) {
	for _, dep := range validate.Checks[docType] {
		ancestorContent, ok := ancestorContents[dep]
		if !ok || ancestorContent == "" {
			continue
		}
		report := c.consistency.Compare(content, ancestorContent)
		fields := make(map[string]interface{}, len(report.Fields))
		for _, f := range report.Fields {
			fields[f.Field] = f.Status
		}
		c.publishProgress(ctx, program, entity.ProgressEvent{
			Program:   program,
			EventType: "consistency_check",
			Message:   fmt.Sprintf("%s vs %s: grade %s", docType, dep, report.Grade),
			Timestamp: time.Now(),
			Extra: map[string]interface{}{
				"doc_type": docType,
				"ancestor": dep,
				"grade":    report.Grade,
				"fields":   fields,
			},
		})
	}
}

func (c *Coordinator) upsertProjectDocument(ctx context.Context, program, docType, docID, content, generationStatus string, score *float64) error {
	now := time.Now()
	var pd entity.ProjectDocument
	err := c.db.WithContext(ctx).Where("program = ? AND doc_type = ?", program, docType).First(&pd).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		pd = entity.ProjectDocument{
			ID:      uuid.NewString(),
			Program: program,
			DocType: docType,
			Status:  entity.DocChecklistStatusPending,
		}
	case err != nil:
		return fmt.Errorf("coordinator: failed to load project document: %w", err)
	}

	pd.DocumentID = docID
	pd.GeneratedContent = content
	pd.GeneratedAt = &now
	pd.GenerationStatus = generationStatus
	pd.AIQualityScore = score

	return c.db.WithContext(ctx).Save(&pd).Error
}

func (c *Coordinator) publishProgress(ctx context.Context, program string, ev entity.ProgressEvent) {
	if c.cacheLayer == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = c.cacheLayer.Publish(ctx, "ws:"+program, data)
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
