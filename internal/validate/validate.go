// Package validate implements the consistency validator: it compares
// scalar fields across two generated artifacts for a program and reports
// drift. It is an observer of the Metadata Store — it never rejects
// writes, only reports.
package validate

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/alpinesboltltd/boltz-ai/internal/extract"
)

// Status is the per-field comparison outcome.
type Status string

const (
	StatusPass     Status = "PASS"
	StatusFail     Status = "FAIL"
	StatusNotFound Status = "NOT_FOUND"
)

// Field declares one comparable fact, reusing the extractor's field model
// so the same pattern tables drive both extraction and validation.
type Field struct {
	Name               string
	Type               extract.FieldType
	ExtractionPatterns []*regexp.Regexp
	Tolerance          float64
	Required           bool
}

// Evidence is where a field's value was found in a document, used to
// surface "line N of document X" style reporting.
type Evidence struct {
	Document string
	Line     int
	Context  string
}

// FieldResult is the outcome of comparing one field across two documents.
type FieldResult struct {
	Field      string
	Status     Status
	Similarity float64
	Method     string
	EvidenceA  *Evidence
	EvidenceB  *Evidence
}

// Report aggregates per-field results with a pass-ratio grade.
type Report struct {
	Fields []FieldResult
	Grade  string
}

// Validator compares two documents' text against a fixed field list.
type Validator struct {
	fields []Field
}

func NewValidator(fields []Field) *Validator {
	return &Validator{fields: fields}
}

// Compare extracts each field from both documents and reports drift.
func (v *Validator) Compare(docA, docB string) Report {
	report := Report{}
	passes := 0

	for _, field := range v.fields {
		valA, evA := extractField(field, docA, "A")
		valB, evB := extractField(field, docB, "B")

		result := FieldResult{Field: field.Name, EvidenceA: evA, EvidenceB: evB}

		if evA == nil || evB == nil {
			result.Status = StatusNotFound
			report.Fields = append(report.Fields, result)
			continue
		}

		status, similarity, method := compareByType(field, valA, valB)
		result.Status = status
		result.Similarity = similarity
		result.Method = method
		if status == StatusPass {
			passes++
		}
		report.Fields = append(report.Fields, result)
	}

	if len(v.fields) == 0 {
		report.Grade = "N/A"
	} else {
		ratio := float64(passes) / float64(len(v.fields))
		report.Grade = gradeFromRatio(ratio)
	}

	return report
}

func extractField(field Field, text, label string) (string, *Evidence) {
	for _, pattern := range field.ExtractionPatterns {
		loc := pattern.FindStringSubmatchIndex(text)
		if loc == nil {
			continue
		}
		match := pattern.FindStringSubmatch(text)
		value := match[0]
		if len(match) > 1 && match[1] != "" {
			value = match[1]
		}
		line := strings.Count(text[:loc[0]], "\n") + 1
		start := loc[0] - 40
		if start < 0 {
			start = 0
		}
		end := loc[1] + 40
		if end > len(text) {
			end = len(text)
		}
		return value, &Evidence{Document: label, Line: line, Context: text[start:end]}
	}
	return "", nil
}

func compareByType(field Field, a, b string) (Status, float64, string) {
	switch field.Type {
	case extract.FieldTypeText, extract.FieldTypeIdentifier, extract.FieldTypeOrganization:
		na, nb := extract.NormalizeText(a), extract.NormalizeText(b)
		sim := levenshteinSimilarity(na, nb)
		if sim >= field.Tolerance {
			return StatusPass, sim, "levenshtein_similarity"
		}
		return StatusFail, sim, "levenshtein_similarity"

	case extract.FieldTypeCurrency, extract.FieldTypeNumber, extract.FieldTypePercentage:
		var va, vb float64
		var err error
		if field.Type == extract.FieldTypeCurrency {
			va, err = extract.NormalizeCurrency(a)
			if err == nil {
				vb, err = extract.NormalizeCurrency(b)
			}
		} else {
			va, err = strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(a), "%"), 64)
			if err == nil {
				vb, err = strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(b), "%"), 64)
			}
		}
		if err != nil {
			return StatusFail, 0, "percent_difference"
		}
		diff := percentDifference(va, vb)
		sim := 1 - diff
		if diff <= field.Tolerance {
			return StatusPass, sim, "percent_difference"
		}
		return StatusFail, sim, "percent_difference"

	case extract.FieldTypeDuration:
		ma, errA := extract.NormalizeDuration(a)
		mb, errB := extract.NormalizeDuration(b)
		if errA != nil || errB != nil {
			return StatusFail, 0, "duration_months"
		}
		if ma == mb {
			return StatusPass, 1, "duration_months"
		}
		return StatusFail, 0, "duration_months"

	case extract.FieldTypeDate:
		da, errA := extract.NormalizeDate(a)
		db, errB := extract.NormalizeDate(b)
		if errA != nil || errB != nil {
			return StatusFail, 0, "date_window"
		}
		diff := da.Sub(db)
		if diff < 0 {
			diff = -diff
		}
		if diff.Hours() <= 7*24 {
			return StatusPass, 1, "date_window"
		}
		return StatusFail, 0, "date_window"
	}

	return StatusFail, 0, "unknown_field_type"
}

func percentDifference(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 0
	}
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return 0
	}
	return math.Abs(a-b) / denom
}

func gradeFromRatio(ratio float64) string {
	switch {
	case ratio >= 0.9:
		return "A"
	case ratio >= 0.75:
		return "B"
	case ratio >= 0.5:
		return "C"
	default:
		return "D"
	}
}

// levenshteinSimilarity returns 1 - (edit distance / max length), so
// identical strings score 1 and completely dissimilar strings score 0.
func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshteinDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

func levenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(curr[j-1]+1, minInt(prev[j]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[lb]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
