package validate

import (
	"regexp"

	"github.com/alpinesboltltd/boltz-ai/internal/extract"
)

// Checks declares, per generated doc_type, which of its own dependency
// doc_types the Consistency Validator should compare it against once both
// are persisted. This is the coordinator's wiring of spec S2's
// cross-document check: an IGCE's total_cost is expected to roughly agree
// with the acquisition plan's, a solicitation's period of performance with
// the PWS's.
var Checks = map[string][]string{
	"igce":         {"acquisition_plan"},
	"solicitation": {"pws"},
}

// DefaultFields is the field table shared by every Checks comparison.
// Fields absent from a given document pair report NOT_FOUND rather than
// failing the comparison outright.
func DefaultFields() []Field {
	return []Field{
		{
			Name:               "total_cost",
			Type:               extract.FieldTypeCurrency,
			Tolerance:          0.1,
			ExtractionPatterns: []*regexp.Regexp{regexp.MustCompile(`(?i)total cost[:\s]+(\$[\d,.]+\s*(?:million|m|thousand|k|billion|b)?)`)},
		},
		{
			Name:               "period_of_performance",
			Type:               extract.FieldTypeDuration,
			ExtractionPatterns: []*regexp.Regexp{regexp.MustCompile(`(?i)period of performance[:\s]+(\d+(?:\.\d+)?\s*(?:year|yr|month|mo)s?)`)},
		},
		{
			Name:               "contracting_office",
			Type:               extract.FieldTypeOrganization,
			Tolerance:          0.8,
			ExtractionPatterns: []*regexp.Regexp{regexp.MustCompile(`(?i)contracting office[:\s]+([^\n]+)`)},
		},
	}
}
