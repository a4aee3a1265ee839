package extract

import (
	"context"
	"regexp"
	"testing"
)

func currencyField() FieldDefinition {
	return FieldDefinition{
		Name:               "total_cost",
		Type:               FieldTypeCurrency,
		ExtractionPatterns: []*regexp.Regexp{regexp.MustCompile(`(?i)total cost[:\s]+(\$[\d,.]+\s*(?:million|m)?)`)},
		Tolerance:          0.05,
		Required:           true,
	}
}

func TestStage1PreStructuredWins(t *testing.T) {
	e := NewExtractor([]FieldDefinition{currencyField()}, nil)

	hits := []RetrievalHit{
		{Content: `{"total_cost": "$10"}`, Metadata: map[string]string{"format": "json"}},
		{Content: "Total cost: $45 million", Metadata: map[string]string{}},
	}

	record := e.Extract(context.Background(), hits, "")
	if record.Fields["total_cost"] != "$10" {
		t.Fatalf("expected stage 1 value to win, got %q", record.Fields["total_cost"])
	}
	if record.Stage < 1 {
		t.Fatalf("expected stage marker >= 1, got %d", record.Stage)
	}
}

func TestStage2RegexFillsGaps(t *testing.T) {
	e := NewExtractor([]FieldDefinition{currencyField()}, nil)

	hits := []RetrievalHit{{Content: "The Total cost: $45 million for this effort."}}
	record := e.Extract(context.Background(), hits, "")

	if record.Fields["total_cost"] != "$45 million" {
		t.Fatalf("expected stage 2 regex match, got %q", record.Fields["total_cost"])
	}
	if record.Metadata["stage2_matches"] != 1 {
		t.Fatalf("expected stage2_matches=1, got %d", record.Metadata["stage2_matches"])
	}
}

func TestStage3FallsBackOnParseFailure(t *testing.T) {
	fakeLLM := func(ctx context.Context, prompt string) (string, error) {
		return "not valid json at all", nil
	}
	e := NewExtractor([]FieldDefinition{currencyField()}, fakeLLM)
	e.minTextForLLM = 1

	hits := []RetrievalHit{{Content: "Total cost: $45 million and quite a bit more filler text here to pass the threshold."}}
	record := e.Extract(context.Background(), hits, "extract total_cost")

	if record.Fields["total_cost"] != "$45 million" {
		t.Fatalf("expected stage 2 result preserved on stage 3 failure, got %q", record.Fields["total_cost"])
	}
	if record.Stage != 2 {
		t.Fatalf("expected stage marker to stay at 2 on stage 3 failure, got %d", record.Stage)
	}
}

func TestStage3MergesWithoutOverwritingStage2(t *testing.T) {
	fakeLLM := func(ctx context.Context, prompt string) (string, error) {
		return `here is the result: {"total_cost": "$99", "deliverables": ["a", "b"]}`, nil
	}
	e := NewExtractor([]FieldDefinition{currencyField()}, fakeLLM)
	e.minTextForLLM = 1

	hits := []RetrievalHit{{Content: "Total cost: $45 million, long enough text to clear the threshold easily."}}
	record := e.Extract(context.Background(), hits, "extract total_cost")

	if record.Fields["total_cost"] != "$45 million" {
		t.Fatalf("expected stage 2 value preserved, got %q", record.Fields["total_cost"])
	}
	if len(record.Lists["deliverables"]) != 2 {
		t.Fatalf("expected stage 3 to contribute new list field, got %+v", record.Lists)
	}
	if record.Stage != 3 {
		t.Fatalf("expected stage marker 3, got %d", record.Stage)
	}
}

func TestFirstBalancedObjectIgnoresBracesInStrings(t *testing.T) {
	input := `prefix {"note": "contains a } brace", "value": 1} suffix`
	blob, ok := firstBalancedObject(input)
	if !ok {
		t.Fatalf("expected to find a balanced object")
	}
	if blob != `{"note": "contains a } brace", "value": 1}` {
		t.Fatalf("unexpected blob: %s", blob)
	}
}

func TestExtractorNeverOmitsMetadata(t *testing.T) {
	e := NewExtractor(nil, nil)
	record := e.Extract(context.Background(), nil, "")
	if record.Metadata == nil {
		t.Fatalf("expected metadata map to be present even with no fields")
	}
	if record.Lists == nil {
		t.Fatalf("expected lists map to be present even when empty")
	}
}
