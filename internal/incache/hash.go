// Package incache implements the incremental-generation cache: a
// memoized-by-input-hash layer in front of document generation so that
// re-running a task with unchanged inputs returns the prior result instead
// of paying for another LLM call.
package incache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/alpinesboltltd/boltz-ai/internal/cache"
	"github.com/alpinesboltltd/boltz-ai/internal/entity"
)

// HashVersion is bumped whenever the hashing contract itself changes
// (a new field is folded in, a normalization rule changes), which
// invalidates every previously cached result without touching Redis
// directly.
const HashVersion = "v1.0"

// Inputs is everything that can change a generation task's output. Two
// calls with structurally equal Inputs must hash identically regardless
// of map key order or struct field order.
type Inputs struct {
	Program           string              `json:"program"`
	DocType           string              `json:"doc_type"`
	Phase             string              `json:"phase"`
	Assumptions       []entity.Assumption `json:"assumptions"`
	AdditionalContext string              `json:"additional_context,omitempty"`
	AgentConfig       map[string]string   `json:"agent_config,omitempty"`
	Dependencies      map[string]string   `json:"dependencies,omitempty"` // doc_type -> content hash of that dependency's current result
}

// ComputeHash returns the canonical content hash of inputs, tagged with
// HashVersion so a hashing-contract change busts every prior entry.
func ComputeHash(inputs Inputs) (string, error) {
	canonical, err := canonicalize(inputs)
	if err != nil {
		return "", fmt.Errorf("incache: canonicalize inputs: %w", err)
	}
	sum := sha256.Sum256([]byte(HashVersion + ":" + canonical))
	return hex.EncodeToString(sum[:]), nil
}

// canonicalize normalizes assumptions by key and re-marshals through a
// sorted-key map so structurally equal inputs always serialize identically.
func canonicalize(inputs Inputs) (string, error) {
	assumptions := make(map[string]string, len(inputs.Assumptions))
	for _, a := range inputs.Assumptions {
		assumptions[a.Key] = a.Value
	}

	normalized := map[string]interface{}{
		"program":            inputs.Program,
		"doc_type":           inputs.DocType,
		"phase":              inputs.Phase,
		"assumptions":        sortedMap(assumptions),
		"additional_context": inputs.AdditionalContext,
		"agent_config":       sortedMap(inputs.AgentConfig),
		"dependencies":       sortedMap(inputs.Dependencies),
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// sortedMap returns the map's entries as an ordered slice of pairs so
// json.Marshal output is deterministic regardless of Go's randomized map
// iteration order.
func sortedMap(m map[string]string) []kv {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]kv, len(keys))
	for i, k := range keys {
		out[i] = kv{Key: k, Value: m[k]}
	}
	return out
}

type kv struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ContentHash hashes a result's content alone, used to build a
// dependency's entry in a downstream task's Inputs.Dependencies.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Cache checks and stores generation results keyed by input hash.
type Cache struct {
	layer cache.Layer
}

func New(layer cache.Layer) *Cache {
	return &Cache{layer: layer}
}

// Result is what gets memoized: the generated content plus the doc ID it
// was persisted under, so a cache hit can resolve straight to an existing
// entity.Document without regenerating anything.
type Result struct {
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
}

// Check returns the cached result for inputs, or ok=false on a miss
// (including when the cache layer itself is unavailable).
func (c *Cache) Check(ctx context.Context, inputs Inputs) (Result, string, bool) {
	hash, err := ComputeHash(inputs)
	if err != nil {
		return Result{}, "", false
	}
	if c.layer == nil {
		return Result{}, hash, false
	}

	raw, ok := c.layer.Get(ctx, cache.NamespaceGenerationRes, hash)
	if !ok {
		return Result{}, hash, false
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, hash, false
	}
	return result, hash, true
}

// Store memoizes result under the hash of inputs.
func (c *Cache) Store(ctx context.Context, inputs Inputs, result Result) error {
	hash, err := ComputeHash(inputs)
	if err != nil {
		return err
	}
	if c.layer == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("incache: marshal result: %w", err)
	}
	return c.layer.Set(ctx, cache.NamespaceGenerationRes, hash, data)
}

// Invalidate drops the cached result for inputs, used when an upstream
// dependency's approved content changes and downstream tasks must
// regenerate even though their own declared inputs look unchanged.
func (c *Cache) Invalidate(ctx context.Context, inputs Inputs) error {
	if c.layer == nil {
		return nil
	}
	hash, err := ComputeHash(inputs)
	if err != nil {
		return err
	}
	return c.layer.Delete(ctx, cache.NamespaceGenerationRes, hash)
}
