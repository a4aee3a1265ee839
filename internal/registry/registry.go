// Package registry implements the Metadata Store / Cross-Reference
// Registry: the per-program inventory of generated artifacts, their
// extracted data, and the directed lineage graph between them.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/alpinesboltltd/boltz-ai/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var sanitizeRe = regexp.MustCompile(`[^a-z0-9]+`)

// Registry persists documents and lineage edges. Writes are serialized by
// a single process-wide mutex; reads take no lock.
type Registry struct {
	db *gorm.DB

	seqMu sync.Mutex
	seq   map[string]int // program -> next sequence number, for doc_id tie-break

	writeMu sync.Mutex // serializes writes across all programs; see NewRegistry doc
}

// NewRegistry wraps db. Writes are serialized process-wide with a single
// mutex rather than one per program: the core's write volume (artifact
// generation, not request-path hot loops) does not justify the bookkeeping
// of a per-program lock table, and a single mutex cannot deadlock.
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db, seq: make(map[string]int)}
}

// nextDocID returns a monotonically ordered id: doc_type, sanitized
// program, unix-nano timestamp, and a per-program sequence counter —
// the documented tie-break for two saves landing in the same nanosecond.
func (r *Registry) nextDocID(docType, program string) string {
	r.seqMu.Lock()
	r.seq[program]++
	n := r.seq[program]
	r.seqMu.Unlock()

	sanitizedProgram := sanitizeRe.ReplaceAllString(strings.ToLower(program), "-")
	sanitizedProgram = strings.Trim(sanitizedProgram, "-")
	return fmt.Sprintf("%s-%s-%d-%d", docType, sanitizedProgram, time.Now().UnixNano(), n)
}

// SaveDocument appends a new artifact version and returns its doc_id.
// References is keyed by ref_type -> doc_id and is stored verbatim on the
// document as well as materialized into lineage edges.
func (r *Registry) SaveDocument(ctx context.Context, docType, program, content string, extractedData map[string]interface{}, references map[string]string, createdBy string) (string, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	var version int
	if err := r.db.WithContext(ctx).Model(&entity.Document{}).
		Where("program = ? AND doc_type = ?", program, docType).
		Select("COALESCE(MAX(version), 0)").Scan(&version).Error; err != nil {
		return "", fmt.Errorf("registry: failed to read prior version: %w", err)
	}

	extractedJSON, err := json.Marshal(extractedData)
	if err != nil {
		return "", fmt.Errorf("registry: failed to marshal extracted_data: %w", err)
	}
	referencesJSON, err := json.Marshal(references)
	if err != nil {
		return "", fmt.Errorf("registry: failed to marshal references: %w", err)
	}

	doc := entity.Document{
		ID:            r.nextDocID(docType, program),
		Program:       program,
		DocType:       docType,
		Content:       content,
		ExtractedData: extractedJSON,
		References:    referencesJSON,
		Version:       version + 1,
		CreatedBy:     createdBy,
	}

	if err := r.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return "", fmt.Errorf("registry: failed to save document: %w", err)
	}

	for refType, toID := range references {
		if err := r.addReferenceLocked(ctx, program, doc.ID, refType, toID, 1.0, nil, createdBy); err != nil {
			return doc.ID, err
		}
	}

	return doc.ID, nil
}

// FindLatestDocument returns the most recently created document of docType
// within program, or nil if none exists.
func (r *Registry) FindLatestDocument(ctx context.Context, docType, program string) (*entity.Document, error) {
	var doc entity.Document
	err := r.db.WithContext(ctx).
		Where("program = ? AND doc_type = ?", program, docType).
		Order("created_at DESC").
		First(&doc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: failed to find latest document: %w", err)
	}
	return &doc, nil
}

// ListForProgram returns every document recorded for program, insertion order.
func (r *Registry) ListForProgram(ctx context.Context, program string) ([]entity.Document, error) {
	var docs []entity.Document
	if err := r.db.WithContext(ctx).Where("program = ?", program).Order("created_at ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("registry: failed to list documents: %w", err)
	}
	return docs, nil
}

// AddReference creates a directed lineage edge. Cycles are forbidden
// within a program's reference graph; an attempt that would create one
// fails with ErrCycleDetected.
func (r *Registry) AddReference(ctx context.Context, program, fromID, relation, toID string, confidence float64, createdBy string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.addReferenceLocked(ctx, program, fromID, relation, toID, confidence, nil, createdBy)
}

// AddContextReference records a CONTEXT edge from a generated document to
// a retrieval source, carrying the chunk ids that contributed to it.
// toID is the source identifier (not another document's id), so it never
// participates in the cycle check as a real ancestor.
func (r *Registry) AddContextReference(ctx context.Context, program, fromID, toID string, averageScore float64, chunkIDs []string, createdBy string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	encoded, err := json.Marshal(chunkIDs)
	if err != nil {
		return fmt.Errorf("registry: failed to marshal chunk ids: %w", err)
	}
	return r.addReferenceLocked(ctx, program, fromID, "CONTEXT", toID, averageScore, encoded, createdBy)
}

func (r *Registry) addReferenceLocked(ctx context.Context, program, fromID, relation, toID string, confidence float64, chunkIDs []byte, createdBy string) error {
	wouldCycle, err := r.hasPath(ctx, program, toID, fromID)
	if err != nil {
		return err
	}
	if wouldCycle {
		return ErrCycleDetected
	}

	edge := entity.LineageEdge{
		ID:         uuid.NewString(),
		Program:    program,
		FromDocID:  fromID,
		ToDocID:    toID,
		Relation:   relation,
		Confidence: confidence,
		ChunkIDs:   chunkIDs,
		CreatedBy:  createdBy,
	}
	if err := r.db.WithContext(ctx).Create(&edge).Error; err != nil {
		return fmt.Errorf("registry: failed to create lineage edge: %w", err)
	}
	return nil
}

// hasPath reports whether a directed path from -> to already exists in
// program's lineage graph, via depth-first search over persisted edges.
func (r *Registry) hasPath(ctx context.Context, program, from, to string) (bool, error) {
	if from == to {
		return true, nil
	}

	var edges []entity.LineageEdge
	if err := r.db.WithContext(ctx).Where("program = ?", program).Find(&edges).Error; err != nil {
		return false, fmt.Errorf("registry: failed to load lineage edges: %w", err)
	}

	adjacency := make(map[string][]string, len(edges))
	for _, e := range edges {
		adjacency[e.FromDocID] = append(adjacency[e.FromDocID], e.ToDocID)
	}

	visited := make(map[string]bool)
	var visit func(node string) bool
	visit = func(node string) bool {
		if node == to {
			return true
		}
		if visited[node] {
			return false
		}
		visited[node] = true
		for _, next := range adjacency[node] {
			if visit(next) {
				return true
			}
		}
		return false
	}

	return visit(from), nil
}

// ListLineage returns every lineage edge recorded for program.
func (r *Registry) ListLineage(ctx context.Context, program string) ([]entity.LineageEdge, error) {
	var edges []entity.LineageEdge
	if err := r.db.WithContext(ctx).Where("program = ?", program).Order("created_at ASC").Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("registry: failed to list lineage edges: %w", err)
	}
	return edges, nil
}
