package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	currencySuffixRe = regexp.MustCompile(`(?i)^\$?\s*([\d,]+(?:\.\d+)?)\s*(million|mil|m|thousand|k|billion|bn|b)?\b`)
	durationRe       = regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*(year|yr|month|mo|week|wk|day)s?\b`)
	markdownEmphasis = regexp.MustCompile(`[*_` + "`" + `]+`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
	trailingPunctRe  = regexp.MustCompile(`[.,;:!?]+$`)
)

// NormalizeCurrency parses forms like "$45M", "45 million", "1,200,000"
// into a dollar amount. Unrecognized input returns an error rather than a
// fabricated zero.
func NormalizeCurrency(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	match := currencySuffixRe.FindStringSubmatch(s)
	if match == nil {
		return 0, fmt.Errorf("normalize currency: no numeric amount in %q", raw)
	}

	numStr := strings.ReplaceAll(match[1], ",", "")
	value, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("normalize currency: %w", err)
	}

	switch strings.ToLower(match[2]) {
	case "million", "mil", "m":
		value *= 1_000_000
	case "thousand", "k":
		value *= 1_000
	case "billion", "bn", "b":
		value *= 1_000_000_000
	}

	return value, nil
}

// NormalizeDuration parses forms like "3 years", "18 months", "2 weeks"
// into a whole number of months, rounding fractional months up so a
// duration never normalizes to zero when the source text named a quantity.
func NormalizeDuration(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	match := durationRe.FindStringSubmatch(s)
	if match == nil {
		return 0, fmt.Errorf("normalize duration: no duration in %q", raw)
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, fmt.Errorf("normalize duration: %w", err)
	}

	var months float64
	switch strings.ToLower(match[2]) {
	case "year", "yr":
		months = value * 12
	case "month", "mo":
		months = value
	case "week", "wk":
		months = value / 4.345
	case "day":
		months = value / 30.44
	}

	rounded := int(months)
	if months-float64(rounded) > 1e-9 {
		rounded++
	}
	return rounded, nil
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2006/01/02",
}

// NormalizeDate parses a date string against a fixed set of accepted
// formats and returns the calendar date at midnight UTC.
func NormalizeDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("normalize date: unrecognized format %q", raw)
}

// NormalizeText strips markdown emphasis markers, collapses whitespace,
// lowercases, and trims trailing punctuation.
func NormalizeText(raw string) string {
	s := markdownEmphasis.ReplaceAllString(raw, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = trailingPunctRe.ReplaceAllString(s, "")
	return s
}
