package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alpinesboltltd/boltz-ai/internal/entity"
	"gorm.io/gorm"
)

func formatVector(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}
	var sb strings.Builder
	sb.WriteString("[")
	for i, v := range embedding {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf("%f", v))
	}
	sb.WriteString("]")
	return sb.String()
}

// PgVectorStore implements VectorStore against a Postgres table with the
// pgvector extension, scoped by program.
type PgVectorStore struct {
	db *gorm.DB
}

func NewPgVectorStore(db *gorm.DB) *PgVectorStore {
	return &PgVectorStore{db: db}
}

type knowledgeChunkRow struct {
	ChunkID   string `gorm:"column:chunk_id;primaryKey"`
	Program   string `gorm:"column:program"`
	Source    string `gorm:"column:source"`
	Content   string `gorm:"column:content"`
	Metadata  string `gorm:"column:metadata"`
	Embedding string `gorm:"column:embedding"`
}

func (knowledgeChunkRow) TableName() string { return "knowledge_chunks" }

func (p *PgVectorStore) Insert(ctx context.Context, chunk entity.Chunk) error {
	metaJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	row := knowledgeChunkRow{
		ChunkID:  chunk.ChunkID,
		Program:  chunk.Program,
		Source:   chunk.Source,
		Content:  chunk.Content,
		Metadata: string(metaJSON),
	}

	return p.db.WithContext(ctx).Exec(
		`INSERT INTO knowledge_chunks (chunk_id, program, source, content, metadata, embedding)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (chunk_id) DO UPDATE SET
		   content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`,
		row.ChunkID, row.Program, row.Source, row.Content, row.Metadata, formatVector(chunk.Embedding),
	).Error
}

func (p *PgVectorStore) Search(ctx context.Context, program string, embedding []float32, topK int, threshold float32, filter map[string]string) ([]ScoredChunk, error) {
	vec := formatVector(embedding)

	query := `
		SELECT chunk_id, program, source, content, metadata, 1 - (embedding <=> ?) as score
		FROM knowledge_chunks
		WHERE program = ? AND 1 - (embedding <=> ?) >= ?
		ORDER BY embedding <=> ?
	`

	rows, err := p.db.WithContext(ctx).Raw(query, vec, program, vec, threshold, vec).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		var chunkID, rowProgram, source, content, metaJSON string
		var score float32
		if err := rows.Scan(&chunkID, &rowProgram, &source, &content, &metaJSON, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var meta map[string]string
		json.Unmarshal([]byte(metaJSON), &meta)
		if !matchesFilter(meta, filter) {
			continue
		}
		results = append(results, ScoredChunk{
			Chunk: entity.Chunk{
				ChunkID:  chunkID,
				Program:  rowProgram,
				Source:   source,
				Content:  content,
				Metadata: meta,
			},
			Score: score,
		})
		if topK > 0 && len(results) >= topK {
			break
		}
	}

	return results, nil
}

func (p *PgVectorStore) DeleteBySource(ctx context.Context, program, source string) error {
	return p.db.WithContext(ctx).
		Where("program = ? AND source = ?", program, source).
		Delete(&knowledgeChunkRow{}).Error
}
