package rag

import (
	"context"
	"testing"

	"github.com/alpinesboltltd/boltz-ai/internal/entity"
	appErrors "github.com/alpinesboltltd/boltz-ai/internal/errors"
)

func TestMemoryVectorStoreInsertAndSearch(t *testing.T) {
	store := NewMemoryVectorStore("")
	ctx := context.Background()

	chunks := []entity.Chunk{
		{ChunkID: "c1", Program: "p1", Source: "doc-a", Content: "alpha", Embedding: []float32{1, 0, 0}},
		{ChunkID: "c2", Program: "p1", Source: "doc-a", Content: "beta", Embedding: []float32{0, 1, 0}},
		{ChunkID: "c3", Program: "p2", Source: "doc-b", Content: "gamma", Embedding: []float32{1, 0, 0}},
	}
	for _, c := range chunks {
		if err := store.Insert(ctx, c); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	results, err := store.Search(ctx, "p1", []float32{1, 0, 0}, 5, 0.0, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results scoped to p1, got %d", len(results))
	}
	if results[0].Chunk.ChunkID != "c1" {
		t.Fatalf("expected c1 to rank first by cosine similarity, got %s", results[0].Chunk.ChunkID)
	}
	if results[0].Score < results[1].Score {
		t.Fatalf("expected descending score order")
	}
}

func TestMemoryVectorStoreThreshold(t *testing.T) {
	store := NewMemoryVectorStore("")
	ctx := context.Background()

	store.Insert(ctx, entity.Chunk{ChunkID: "c1", Program: "p1", Embedding: []float32{1, 0}})
	store.Insert(ctx, entity.Chunk{ChunkID: "c2", Program: "p1", Embedding: []float32{0, 1}})

	results, err := store.Search(ctx, "p1", []float32{1, 0}, 5, 0.99, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ChunkID != "c1" {
		t.Fatalf("expected only the orthogonal-excluded c1, got %+v", results)
	}
}

func TestMemoryVectorStoreMetadataFilter(t *testing.T) {
	store := NewMemoryVectorStore("")
	ctx := context.Background()

	store.Insert(ctx, entity.Chunk{ChunkID: "c1", Program: "p1", Embedding: []float32{1, 0}, Metadata: map[string]string{"section": "pricing"}})
	store.Insert(ctx, entity.Chunk{ChunkID: "c2", Program: "p1", Embedding: []float32{1, 0}, Metadata: map[string]string{"section": "scope"}})

	results, err := store.Search(ctx, "p1", []float32{1, 0}, 5, 0.0, map[string]string{"section": "pricing"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ChunkID != "c1" {
		t.Fatalf("expected filter to restrict to c1, got %+v", results)
	}
}

func TestMemoryVectorStoreDeleteBySource(t *testing.T) {
	store := NewMemoryVectorStore("")
	ctx := context.Background()

	store.Insert(ctx, entity.Chunk{ChunkID: "c1", Program: "p1", Source: "doc-a", Embedding: []float32{1}})
	store.Insert(ctx, entity.Chunk{ChunkID: "c2", Program: "p1", Source: "doc-b", Embedding: []float32{1}})

	if err := store.DeleteBySource(ctx, "p1", "doc-a"); err != nil {
		t.Fatalf("DeleteBySource failed: %v", err)
	}

	results, _ := store.Search(ctx, "p1", []float32{1}, 5, -1, nil)
	if len(results) != 1 || results[0].Chunk.ChunkID != "c2" {
		t.Fatalf("expected only c2 to survive deletion, got %+v", results)
	}
}

func TestMemoryVectorStoreRejectsDimensionMismatch(t *testing.T) {
	store := NewMemoryVectorStore("")
	ctx := context.Background()

	if err := store.Insert(ctx, entity.Chunk{ChunkID: "c1", Program: "p1", Embedding: []float32{1, 0, 0}}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := store.Insert(ctx, entity.Chunk{ChunkID: "c2", Program: "p1", Embedding: []float32{1, 0}})
	if err == nil {
		t.Fatalf("expected dimension mismatch error, got nil")
	}
	appErr, ok := err.(*appErrors.AppError)
	if !ok {
		t.Fatalf("expected *errors.AppError, got %T", err)
	}
	if appErr.Type != appErrors.DimensionMismatch {
		t.Fatalf("expected DimensionMismatch error type, got %s", appErr.Type)
	}

	results, searchErr := store.Search(ctx, "p1", []float32{1, 0, 0}, 5, 0.0, nil)
	if searchErr != nil {
		t.Fatalf("Search failed: %v", searchErr)
	}
	if len(results) != 1 {
		t.Fatalf("expected rejected chunk not inserted, got %d results", len(results))
	}

	// A different program is free to use its own embedding dimension.
	if err := store.Insert(ctx, entity.Chunk{ChunkID: "c3", Program: "p2", Embedding: []float32{1, 0}}); err != nil {
		t.Fatalf("insert into unrelated program failed: %v", err)
	}
}

func TestMemoryVectorStorePersistence(t *testing.T) {
	dir := t.TempDir()
	snapshotPath := dir + "/snapshot.json"

	store := NewMemoryVectorStore(snapshotPath)
	ctx := context.Background()
	store.Insert(ctx, entity.Chunk{ChunkID: "c1", Program: "p1", Content: "alpha", Embedding: []float32{1, 0}})

	reloaded := NewMemoryVectorStore(snapshotPath)
	results, err := reloaded.Search(ctx, "p1", []float32{1, 0}, 5, -1, nil)
	if err != nil {
		t.Fatalf("Search after reload failed: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.Content != "alpha" {
		t.Fatalf("expected snapshot to survive reload, got %+v", results)
	}
}
