package rag

import (
	"context"
	"hash/fnv"
	"math"
)

// FakeEmbedder produces small deterministic embeddings from the input
// text's bytes so package tests can exercise retrieval ranking without a
// live Cohere call. It is exported (not _test.go) so internal/agent tests
// can use it as well as this package's own.
type FakeEmbedder struct {
	Dims int
}

func NewFakeEmbedder() *FakeEmbedder {
	return &FakeEmbedder{Dims: 8}
}

func (f *FakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.embed(t)
	}
	return out, nil
}

func (f *FakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.embed(text), nil
}

func (f *FakeEmbedder) embed(text string) []float32 {
	dims := f.Dims
	if dims <= 0 {
		dims = 8
	}
	vec := make([]float32, dims)
	h := fnv.New32a()
	for i := 0; i < dims; i++ {
		h.Write([]byte{byte(i)})
		h.Write([]byte(text))
		sum := h.Sum32()
		vec[i] = float32(math.Sin(float64(sum)))
	}
	return vec
}
