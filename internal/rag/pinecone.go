package rag

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alpinesboltltd/boltz-ai/internal/entity"
	"github.com/pinecone-io/go-pinecone/v4/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeStore implements VectorStore using Pinecone's official Go SDK v4,
// scoped by program instead of agent ID.
type PineconeStore struct {
	client *pinecone.Client
	index  *pinecone.IndexConnection
}

// NewPineconeStore creates a new Pinecone-backed vector store.
func NewPineconeStore(apiKey, indexName string) (*PineconeStore, error) {
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	index, err := client.Index(pinecone.NewIndexConnParams{Host: indexName})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to index: %w", err)
	}

	return &PineconeStore{client: client, index: index}, nil
}

func (p *PineconeStore) Insert(ctx context.Context, chunk entity.Chunk) error {
	metadataJSON, _ := json.Marshal(chunk.Metadata)

	metadata, err := structpb.NewStruct(map[string]interface{}{
		"program": chunk.Program,
		"source":  chunk.Source,
		"content": chunk.Content,
		"meta":    string(metadataJSON),
	})
	if err != nil {
		return fmt.Errorf("failed to create metadata: %w", err)
	}

	embedding := chunk.Embedding
	vector := &pinecone.Vector{
		Id:       chunk.ChunkID,
		Values:   &embedding,
		Metadata: metadata,
	}

	_, err = p.index.UpsertVectors(ctx, []*pinecone.Vector{vector})
	return err
}

func (p *PineconeStore) Search(ctx context.Context, program string, embedding []float32, topK int, threshold float32, filter map[string]string) ([]ScoredChunk, error) {
	filterFields := map[string]interface{}{"program": program}
	for k, v := range filter {
		filterFields["meta_"+k] = v
	}
	pineconeFilter, err := structpb.NewStruct(filterFields)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter: %w", err)
	}

	resp, err := p.index.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          embedding,
		TopK:            uint32(topK),
		IncludeMetadata: true,
		MetadataFilter:  pineconeFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query Pinecone: %w", err)
	}

	var results []ScoredChunk
	for _, match := range resp.Matches {
		if match.Score < threshold {
			continue
		}
		var meta map[string]string
		if metaStr := match.Vector.Metadata.Fields["meta"].GetStringValue(); metaStr != "" {
			json.Unmarshal([]byte(metaStr), &meta)
		}
		results = append(results, ScoredChunk{
			Chunk: entity.Chunk{
				ChunkID:  match.Vector.Id,
				Program:  match.Vector.Metadata.Fields["program"].GetStringValue(),
				Source:   match.Vector.Metadata.Fields["source"].GetStringValue(),
				Content:  match.Vector.Metadata.Fields["content"].GetStringValue(),
				Metadata: meta,
			},
			Score: match.Score,
		})
	}

	return results, nil
}

func (p *PineconeStore) DeleteBySource(ctx context.Context, program, source string) error {
	filter, err := structpb.NewStruct(map[string]interface{}{
		"program": program,
		"source":  source,
	})
	if err != nil {
		return fmt.Errorf("failed to create filter: %w", err)
	}
	return p.index.DeleteVectorsByFilter(ctx, filter)
}
