package validate

import (
	"regexp"
	"testing"

	"github.com/alpinesboltltd/boltz-ai/internal/extract"
)

func totalCostField() Field {
	return Field{
		Name:               "total_cost",
		Type:               extract.FieldTypeCurrency,
		ExtractionPatterns: []*regexp.Regexp{regexp.MustCompile(`(?i)total cost[:\s]+(\$[\d,.]+\s*(?:million|m)?)`)},
		Tolerance:          0.05,
	}
}

func TestCompareCurrencyPass(t *testing.T) {
	v := NewValidator([]Field{totalCostField()})
	report := v.Compare("Total cost: $45 million for this contract.", "Total cost: $45.5M as estimated separately.")

	if len(report.Fields) != 1 {
		t.Fatalf("expected 1 field result, got %d", len(report.Fields))
	}
	if report.Fields[0].Status != StatusPass {
		t.Fatalf("expected PASS within tolerance, got %s (similarity=%v)", report.Fields[0].Status, report.Fields[0].Similarity)
	}
}

func TestCompareCurrencyFail(t *testing.T) {
	v := NewValidator([]Field{totalCostField()})
	report := v.Compare("Total cost: $45 million", "Total cost: $90 million")

	if report.Fields[0].Status != StatusFail {
		t.Fatalf("expected FAIL for large drift, got %s", report.Fields[0].Status)
	}
}

func TestCompareNotFound(t *testing.T) {
	v := NewValidator([]Field{totalCostField()})
	report := v.Compare("No numbers here.", "Total cost: $10 million")

	if report.Fields[0].Status != StatusNotFound {
		t.Fatalf("expected NOT_FOUND when one side lacks the field, got %s", report.Fields[0].Status)
	}
}

func TestCompareDuration(t *testing.T) {
	field := Field{
		Name:               "period_of_performance",
		Type:               extract.FieldTypeDuration,
		ExtractionPatterns: []*regexp.Regexp{regexp.MustCompile(`(?i)(\d+\s*(?:year|month)s?)`)},
		Tolerance:          0,
	}
	v := NewValidator([]Field{field})
	report := v.Compare("Period: 1 year of performance.", "Period: 12 months total.")

	if report.Fields[0].Status != StatusPass {
		t.Fatalf("expected 1 year to equal 12 months, got %s", report.Fields[0].Status)
	}
}

func TestCompareText(t *testing.T) {
	field := Field{
		Name:               "agency",
		Type:               extract.FieldTypeText,
		ExtractionPatterns: []*regexp.Regexp{regexp.MustCompile(`(?i)agency:\s*([A-Za-z ]+)`)},
		Tolerance:          0.8,
	}
	v := NewValidator([]Field{field})
	report := v.Compare("Agency: Department of Example", "Agency: Department of Example Affairs")

	if report.Fields[0].Method != "levenshtein_similarity" {
		t.Fatalf("expected levenshtein method, got %s", report.Fields[0].Method)
	}
}

func TestGradeFromRatio(t *testing.T) {
	cases := map[float64]string{1.0: "A", 0.8: "B", 0.6: "C", 0.1: "D"}
	for ratio, want := range cases {
		got := gradeFromRatio(ratio)
		if got != want {
			t.Fatalf("gradeFromRatio(%v) = %s, want %s", ratio, got, want)
		}
	}
}

func TestLevenshteinSimilarityIdentical(t *testing.T) {
	if sim := levenshteinSimilarity("same", "same"); sim != 1 {
		t.Fatalf("expected similarity 1 for identical strings, got %v", sim)
	}
}

func TestLevenshteinSimilarityEmpty(t *testing.T) {
	if sim := levenshteinSimilarity("", ""); sim != 1 {
		t.Fatalf("expected similarity 1 for two empty strings, got %v", sim)
	}
}
