package agent

import (
	"regexp"
	"strings"
)

var (
	emptyListItemRe  = regexp.MustCompile(`^[ \t]*[-*+][ \t]*$`)
	codeFenceRe      = regexp.MustCompile("^```[a-zA-Z]*[ \t]*$")
	multiBlankLineRe = regexp.MustCompile(`\n{3,}`)
)

// CleanMarkdown is a deterministic, pure post-processing pass over an
// agent's raw completion: it never calls the model, never depends on
// anything but its input, and always produces the same output for the
// same input. It drops empty list markers the model sometimes emits
// ("- " with nothing after it) and every line that is only a code fence
// (``` with an optional language tag), wherever it appears; trims
// trailing spaces and tabs from each remaining line; collapses runs of
// blank lines down to one; and trims the result, ending it with a single
// newline.
func CleanMarkdown(raw string) string {
	lines := strings.Split(raw, "\n")

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if emptyListItemRe.MatchString(line) || codeFenceRe.MatchString(line) {
			continue
		}
		kept = append(kept, strings.TrimRight(line, " \t"))
	}

	s := strings.Join(kept, "\n")
	s = multiBlankLineRe.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s) + "\n"
}
