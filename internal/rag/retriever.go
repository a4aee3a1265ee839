package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/alpinesboltltd/boltz-ai/internal/cache"
)

// Retriever answers semantic-search queries against a program's knowledge
// base, checking the cache layer before the vector store and writing
// results back on a miss. It is the program-scoped counterpart to
// RAGRetrieverUseCase.
type Retriever struct {
	store    VectorStore
	embedder Embedder
	cache    cache.Layer
}

func NewRetriever(store VectorStore, embedder Embedder, cacheLayer cache.Layer) *Retriever {
	return &Retriever{store: store, embedder: embedder, cache: cacheLayer}
}

// RetrievalOptions controls a single retrieval call.
type RetrievalOptions struct {
	TopK      int
	Threshold float32
	Filter    map[string]string
}

func defaultOptions(opts RetrievalOptions) RetrievalOptions {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.7
	}
	return opts
}

// Retrieve returns the topK scored chunks for query within program.
func (r *Retriever) Retrieve(ctx context.Context, program, query string, opts RetrievalOptions) ([]ScoredChunk, error) {
	opts = defaultOptions(opts)

	cacheKey := retrievalCacheKey(program, query, opts)
	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, cache.NamespaceRAGSearch, cacheKey); ok {
			var chunks []ScoredChunk
			if err := json.Unmarshal(cached, &chunks); err == nil {
				return chunks, nil
			}
		}
	}

	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retriever: failed to embed query: %w", err)
	}

	chunks, err := r.store.Search(ctx, program, embedding, opts.TopK, opts.Threshold, opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("retriever: search failed: %w", err)
	}

	if r.cache != nil {
		if data, err := json.Marshal(chunks); err == nil {
			r.cache.Set(ctx, cache.NamespaceRAGSearch, cacheKey, data)
		}
	}

	return chunks, nil
}

// RetrieveWithContext runs Retrieve and joins the resulting chunks into a
// single context string bounded by maxChars, truncating the lowest-ranked
// chunks first.
func (r *Retriever) RetrieveWithContext(ctx context.Context, program, query string, opts RetrievalOptions, maxChars int) (string, []ScoredChunk, error) {
	chunks, err := r.Retrieve(ctx, program, query, opts)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	for _, c := range chunks {
		if maxChars > 0 && sb.Len()+len(c.Chunk.Content) > maxChars {
			break
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(c.Chunk.Content)
	}

	return sb.String(), chunks, nil
}

// RetrieveForSection narrows retrieval to chunks tagged with the given
// section metadata key, used by agents that need evidence scoped to a
// specific part of the document they are generating (e.g. "pricing",
// "scope_of_work").
func (r *Retriever) RetrieveForSection(ctx context.Context, program, query, section string, opts RetrievalOptions) ([]ScoredChunk, error) {
	if opts.Filter == nil {
		opts.Filter = map[string]string{}
	}
	opts.Filter["section"] = section
	return r.Retrieve(ctx, program, query, opts)
}

func retrievalCacheKey(program, query string, opts RetrievalOptions) string {
	h := sha256.New()
	h.Write([]byte(program))
	h.Write([]byte{0})
	h.Write([]byte(query))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%d:%f", opts.TopK, opts.Threshold)
	keys := make([]string, 0, len(opts.Filter))
	for k := range opts.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, ":%s=%s", k, opts.Filter[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
