package rag

import (
	"context"

	"github.com/alpinesboltltd/boltz-ai/internal/entity"
)

// VectorStore is the program-scoped replacement for the agent-scoped
// VectorDB: every generation task retrieves and stores knowledge chunks
// through this interface regardless of which backend is configured.
type VectorStore interface {
	// Insert upserts a chunk with its embedding already populated.
	Insert(ctx context.Context, chunk entity.Chunk) error
	// Search returns the topK chunks for program closest to embedding,
	// restricted to those scoring at or above threshold, optionally
	// narrowed by an exact-match metadata filter (AND semantics).
	Search(ctx context.Context, program string, embedding []float32, topK int, threshold float32, filter map[string]string) ([]ScoredChunk, error)
	// DeleteBySource removes every chunk ingested from source within program.
	DeleteBySource(ctx context.Context, program, source string) error
}

// ScoredChunk pairs a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk entity.Chunk
	Score float32
}

// Embedder converts text into a fixed-dimension embedding space shared by
// storage and query. Implementations must be safe for concurrent use.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
