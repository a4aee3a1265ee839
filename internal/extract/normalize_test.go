package extract

import "testing"

func TestNormalizeCurrency(t *testing.T) {
	cases := map[string]float64{
		"$45M":           45_000_000,
		"45 million":     45_000_000,
		"$1,200,000":     1_200_000,
		"500k":           500_000,
		"$2.5 billion":   2_500_000_000,
	}
	for input, want := range cases {
		got, err := NormalizeCurrency(input)
		if err != nil {
			t.Fatalf("NormalizeCurrency(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("NormalizeCurrency(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNormalizeCurrencyInvalid(t *testing.T) {
	if _, err := NormalizeCurrency("not a number"); err == nil {
		t.Fatalf("expected error for non-numeric input")
	}
}

func TestNormalizeDuration(t *testing.T) {
	cases := map[string]int{
		"3 years":   36,
		"18 months": 18,
		"1 year":    12,
	}
	for input, want := range cases {
		got, err := NormalizeDuration(input)
		if err != nil {
			t.Fatalf("NormalizeDuration(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("NormalizeDuration(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := []string{"2026-03-05", "03/05/2026", "March 5, 2026"}
	for _, input := range cases {
		if _, err := NormalizeDate(input); err != nil {
			t.Fatalf("NormalizeDate(%q) returned error: %v", input, err)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	input := "**Bold** text with _emphasis_ and trailing punctuation!!!"
	want := "bold text with emphasis and trailing punctuation"
	got := NormalizeText(input)
	if got != want {
		t.Fatalf("NormalizeText(%q) = %q, want %q", input, got, want)
	}
}

func TestNormalizeTextIdempotent(t *testing.T) {
	input := "Some **Mixed** Case Text."
	once := NormalizeText(input)
	twice := NormalizeText(once)
	if once != twice {
		t.Fatalf("expected NormalizeText to be idempotent: %q vs %q", once, twice)
	}
}
