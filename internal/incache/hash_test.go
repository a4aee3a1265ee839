package incache

import (
	"context"
	"testing"

	"github.com/alpinesboltltd/boltz-ai/internal/cache"
	"github.com/alpinesboltltd/boltz-ai/internal/entity"
)

func TestComputeHashDeterministic(t *testing.T) {
	in1 := Inputs{
		Program: "p1",
		DocType: "market_research",
		Assumptions: []entity.Assumption{
			{Key: "ceiling", Value: "500000"},
			{Key: "pop", Value: "12 months"},
		},
	}
	in2 := Inputs{
		Program: "p1",
		DocType: "market_research",
		Assumptions: []entity.Assumption{
			{Key: "pop", Value: "12 months"},
			{Key: "ceiling", Value: "500000"},
		},
	}

	h1, err := ComputeHash(in1)
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}
	h2, err := ComputeHash(in2)
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected identical hash regardless of assumption order, got %s vs %s", h1, h2)
	}
}

func TestComputeHashChangesWithContent(t *testing.T) {
	base := Inputs{Program: "p1", DocType: "igce"}
	changed := Inputs{Program: "p1", DocType: "igce", Assumptions: []entity.Assumption{{Key: "ceiling", Value: "1"}}}

	h1, _ := ComputeHash(base)
	h2, _ := ComputeHash(changed)
	if h1 == h2 {
		t.Fatalf("expected hash to change when assumptions differ")
	}
}

func TestComputeHashChangesWithPhase(t *testing.T) {
	base := Inputs{Program: "p1", DocType: "igce", Phase: "pre_solicitation"}
	changed := Inputs{Program: "p1", DocType: "igce", Phase: "solicitation"}

	h1, _ := ComputeHash(base)
	h2, _ := ComputeHash(changed)
	if h1 == h2 {
		t.Fatalf("expected hash to change when phase differs, so a re-run after a phase transition never hits a stale cache entry")
	}
}

func TestComputeHashChangesWithAdditionalContext(t *testing.T) {
	base := Inputs{Program: "p1", DocType: "igce", AdditionalContext: "initial scope"}
	changed := Inputs{Program: "p1", DocType: "igce", AdditionalContext: "revised scope"}

	h1, _ := ComputeHash(base)
	h2, _ := ComputeHash(changed)
	if h1 == h2 {
		t.Fatalf("expected hash to change when additional_context differs")
	}
}

func TestCacheCheckStoreRoundTrip(t *testing.T) {
	layer := cache.NewMemoryLayer()
	c := New(layer)
	ctx := context.Background()

	inputs := Inputs{Program: "p1", DocType: "pws"}

	if _, _, ok := c.Check(ctx, inputs); ok {
		t.Fatalf("expected miss before Store")
	}

	err := c.Store(ctx, inputs, Result{DocumentID: "doc-1", Content: "generated content"})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	result, hash, ok := c.Check(ctx, inputs)
	if !ok {
		t.Fatalf("expected hit after Store")
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if result.DocumentID != "doc-1" || result.Content != "generated content" {
		t.Fatalf("unexpected cached result: %+v", result)
	}
}

func TestCacheInvalidate(t *testing.T) {
	layer := cache.NewMemoryLayer()
	c := New(layer)
	ctx := context.Background()
	inputs := Inputs{Program: "p1", DocType: "solicitation"}

	c.Store(ctx, inputs, Result{DocumentID: "doc-1", Content: "x"})
	if err := c.Invalidate(ctx, inputs); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	if _, _, ok := c.Check(ctx, inputs); ok {
		t.Fatalf("expected miss after Invalidate")
	}
}

func TestContentHashStable(t *testing.T) {
	if ContentHash("same") != ContentHash("same") {
		t.Fatalf("expected stable content hash for identical input")
	}
	if ContentHash("a") == ContentHash("b") {
		t.Fatalf("expected different content to hash differently")
	}
}
