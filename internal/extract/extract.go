// Package extract implements the hybrid extraction engine: a staged
// pipeline that turns retrieval hits and raw text into typed fields for an
// artifact type. Stage 1 adopts pre-structured JSON verbatim, stage 2 runs
// fixed regex patterns, stage 3 asks an LLM for JSON and falls back to
// stage 2 on any parse failure.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// FieldType is the normalization/comparison family a field belongs to.
type FieldType string

const (
	FieldTypeText         FieldType = "text"
	FieldTypeCurrency     FieldType = "currency"
	FieldTypeDuration     FieldType = "duration"
	FieldTypeDate         FieldType = "date"
	FieldTypePercentage   FieldType = "percentage"
	FieldTypeIdentifier   FieldType = "identifier"
	FieldTypeOrganization FieldType = "organization"
	FieldTypeNumber       FieldType = "number"
)

// FieldDefinition declares one scalar field an artifact type cares about,
// as data rather than code so patterns can be updated without a rebuild.
type FieldDefinition struct {
	Name               string
	Type               FieldType
	ExtractionPatterns []*regexp.Regexp
	Tolerance          float64
	Required           bool
}

// RetrievalHit is the minimal shape the extractor needs from a retrieval
// result: content plus whatever metadata the Vector Store attached.
type RetrievalHit struct {
	Content  string
	Metadata map[string]string
}

// Record is the extractor's output: typed scalar fields plus list fields,
// always carrying a metadata object with at least the stage-2 counts.
type Record struct {
	Fields   map[string]string   `json:"fields"`
	Lists    map[string][]string `json:"lists"`
	Metadata map[string]int      `json:"metadata"`
	Stage    int                 `json:"stage"` // highest stage that contributed
}

func newRecord() Record {
	return Record{
		Fields:   map[string]string{},
		Lists:    map[string][]string{},
		Metadata: map[string]int{},
	}
}

// LLMJSONFunc is the capability stage 3 calls: given a prompt, return raw
// model text expected to contain a JSON object. Kept as a function type so
// tests can inject a fake without depending on internal/agent.
type LLMJSONFunc func(ctx context.Context, prompt string) (string, error)

// Extractor runs the three-stage pipeline for a fixed set of field
// definitions, shared across every invocation for a given artifact type.
type Extractor struct {
	fields        []FieldDefinition
	llmJSON       LLMJSONFunc
	minTextForLLM int
}

// NewExtractor builds an extractor over fields. llmJSON may be nil, in
// which case stage 3 is always skipped and stage 2's record is returned.
func NewExtractor(fields []FieldDefinition, llmJSON LLMJSONFunc) *Extractor {
	return &Extractor{fields: fields, llmJSON: llmJSON, minTextForLLM: 200}
}

// Extract runs pre-structured -> regex -> LLM-JSON over hits, merging
// compatible results from each stage that ran.
func (e *Extractor) Extract(ctx context.Context, hits []RetrievalHit, schemaPrompt string) Record {
	record := newRecord()

	// Stage 1: pre-structured fast path.
	if structured, ok := e.stage1PreStructured(hits); ok {
		mergeInto(&record, structured)
		record.Stage = 1
	}

	// Stage 2: quick regex. Cannot fail; always runs over the joined text.
	joined := joinHits(hits)
	stage2 := e.stage2Regex(joined)
	mergeInto(&record, stage2)
	if record.Stage < 2 {
		record.Stage = 2
	}

	// Stage 3: LLM-JSON, only with enough raw text and a configured capability.
	if e.llmJSON != nil && len(joined) >= e.minTextForLLM {
		if stage3, ok := e.stage3LLMJSON(ctx, joined, schemaPrompt); ok {
			mergeInto(&record, stage3)
			record.Stage = 3
		}
	}

	return record
}

// stage1PreStructured looks for a hit whose metadata marks it as already
// structured JSON (format=json or type=structured_*) and parses it.
func (e *Extractor) stage1PreStructured(hits []RetrievalHit) (Record, bool) {
	for _, hit := range hits {
		format := hit.Metadata["format"]
		typ := hit.Metadata["type"]
		if format != "json" && !strings.HasPrefix(typ, "structured_") {
			continue
		}
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(hit.Content), &raw); err != nil {
			continue
		}
		return fromRawMap(raw), true
	}
	return Record{}, false
}

func fromRawMap(raw map[string]interface{}) Record {
	record := newRecord()
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			record.Fields[k] = val
		case []interface{}:
			var list []string
			for _, item := range val {
				list = append(list, fmt.Sprintf("%v", item))
			}
			record.Lists[k] = list
		default:
			record.Fields[k] = fmt.Sprintf("%v", val)
		}
	}
	return record
}

// stage2Regex runs every field's extraction patterns against text and
// populates scalar fields from the first matching pattern per field.
func (e *Extractor) stage2Regex(text string) Record {
	record := newRecord()
	matchCount := 0
	for _, field := range e.fields {
		for _, pattern := range field.ExtractionPatterns {
			match := pattern.FindStringSubmatch(text)
			if match == nil {
				continue
			}
			value := match[0]
			if len(match) > 1 && match[1] != "" {
				value = match[1]
			}
			record.Fields[field.Name] = value
			matchCount++
			break
		}
	}
	record.Metadata["stage2_matches"] = matchCount
	return record
}

// stage3LLMJSON prompts the model and parses the first balanced {...} in
// its response; any failure (call error, empty response, parse failure)
// is treated as a stage-3 miss, never an error the caller must handle.
func (e *Extractor) stage3LLMJSON(ctx context.Context, text, schemaPrompt string) (Record, bool) {
	prompt := fmt.Sprintf("%s\n\nText:\n%s", schemaPrompt, text)
	response, err := e.llmJSON(ctx, prompt)
	if err != nil || strings.TrimSpace(response) == "" {
		return Record{}, false
	}

	jsonBlob, ok := firstBalancedObject(response)
	if !ok {
		return Record{}, false
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(jsonBlob), &raw); err != nil {
		return Record{}, false
	}

	return fromRawMap(raw), true
}

// firstBalancedObject scans s for the first top-level {...} block, tracking
// brace depth so nested objects inside the JSON do not terminate the scan
// early, and ignoring braces that appear inside string literals.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func joinHits(hits []RetrievalHit) string {
	var sb strings.Builder
	for _, h := range hits {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(h.Content)
	}
	return sb.String()
}

// mergeInto folds src's fields/lists into dst without overwriting values
// dst already holds, so an earlier stage's confident value is never
// clobbered by a later stage.
func mergeInto(dst *Record, src Record) {
	for k, v := range src.Fields {
		if _, exists := dst.Fields[k]; !exists {
			dst.Fields[k] = v
		}
	}
	for k, v := range src.Lists {
		if _, exists := dst.Lists[k]; !exists {
			dst.Lists[k] = v
		}
	}
	for k, v := range src.Metadata {
		dst.Metadata[k] = v
	}
}
