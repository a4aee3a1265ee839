package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/alpinesboltltd/boltz-ai/internal/entity"
	appErrors "github.com/alpinesboltltd/boltz-ai/internal/errors"
)

// MemoryVectorStore is the default VectorStore backend: an in-memory
// exact-cosine index, mutex-guarded the way AgentCache guards its map,
// with optional atomic persistence to a JSON snapshot file so a process
// restart does not lose ingested knowledge.
type MemoryVectorStore struct {
	mutex    sync.RWMutex
	chunks   map[string][]entity.Chunk // program -> chunks, insertion order preserved
	dim      map[string]int            // program -> embedding dimension of its first inserted chunk
	snapshot string
}

// NewMemoryVectorStore creates an empty store. If snapshotPath is
// non-empty, Load is attempted once at startup and Save is invoked after
// every mutation.
func NewMemoryVectorStore(snapshotPath string) *MemoryVectorStore {
	s := &MemoryVectorStore{
		chunks:   make(map[string][]entity.Chunk),
		dim:      make(map[string]int),
		snapshot: snapshotPath,
	}
	if snapshotPath != "" {
		if err := s.Load(); err != nil && !os.IsNotExist(err) {
			fmt.Printf("memory vector store: failed to load snapshot %s: %v\n", snapshotPath, err)
		}
	}
	return s
}

func (s *MemoryVectorStore) Insert(ctx context.Context, chunk entity.Chunk) error {
	if chunk.ChunkID == "" {
		return fmt.Errorf("memory vector store: chunk_id is required")
	}
	s.mutex.Lock()
	if want, ok := s.dim[chunk.Program]; ok && len(chunk.Embedding) != want {
		s.mutex.Unlock()
		return appErrors.NewDimensionMismatchError(
			fmt.Sprintf("memory vector store: chunk %s has embedding dimension %d, program %s expects %d",
				chunk.ChunkID, len(chunk.Embedding), chunk.Program, want))
	}
	if _, ok := s.dim[chunk.Program]; !ok {
		s.dim[chunk.Program] = len(chunk.Embedding)
	}
	replaced := false
	existing := s.chunks[chunk.Program]
	for i, c := range existing {
		if c.ChunkID == chunk.ChunkID {
			existing[i] = chunk
			replaced = true
			break
		}
	}
	if !replaced {
		s.chunks[chunk.Program] = append(existing, chunk)
	}
	s.mutex.Unlock()

	return s.persist()
}

func (s *MemoryVectorStore) Search(ctx context.Context, program string, embedding []float32, topK int, threshold float32, filter map[string]string) ([]ScoredChunk, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	candidates := s.chunks[program]
	scored := make([]ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		if !matchesFilter(c.Metadata, filter) {
			continue
		}
		score := cosineSimilarity(embedding, c.Embedding)
		if score >= threshold {
			scored = append(scored, ScoredChunk{Chunk: c, Score: score})
		}
	}

	// stable sort: descending score, insertion order breaks ties because
	// candidates is already in insertion order and sort.SliceStable
	// preserves the relative order of equal elements.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func (s *MemoryVectorStore) DeleteBySource(ctx context.Context, program, source string) error {
	s.mutex.Lock()
	existing := s.chunks[program]
	kept := existing[:0:0]
	for _, c := range existing {
		if c.Source != source {
			kept = append(kept, c)
		}
	}
	s.chunks[program] = kept
	if len(kept) == 0 {
		delete(s.dim, program)
	}
	s.mutex.Unlock()

	return s.persist()
}

func matchesFilter(metadata map[string]string, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// persist writes the snapshot atomically (write to a temp file in the
// same directory, then rename) so a crash mid-write never corrupts the
// existing snapshot.
func (s *MemoryVectorStore) persist() error {
	if s.snapshot == "" {
		return nil
	}
	s.mutex.RLock()
	data, err := json.Marshal(s.chunks)
	s.mutex.RUnlock()
	if err != nil {
		return fmt.Errorf("memory vector store: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.snapshot)
	tmp, err := os.CreateTemp(dir, ".vectorstore-*.tmp")
	if err != nil {
		return fmt.Errorf("memory vector store: create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("memory vector store: write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("memory vector store: close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.snapshot); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("memory vector store: rename temp snapshot: %w", err)
	}
	return nil
}

// Load replaces the in-memory index with the contents of the snapshot file.
func (s *MemoryVectorStore) Load() error {
	data, err := os.ReadFile(s.snapshot)
	if err != nil {
		return err
	}
	var chunks map[string][]entity.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return fmt.Errorf("memory vector store: unmarshal snapshot: %w", err)
	}
	dim := make(map[string]int, len(chunks))
	for program, cs := range chunks {
		if len(cs) > 0 {
			dim[program] = len(cs[0].Embedding)
		}
	}
	s.mutex.Lock()
	s.chunks = chunks
	s.dim = dim
	s.mutex.Unlock()
	return nil
}
