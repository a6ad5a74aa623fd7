package ocr

import "regexp"

var (
	spaceRun   = regexp.MustCompile(`[\t\v\f\r \p{Zs}]{2,}`)
	newlineRun = regexp.MustCompile(`\n{2,}`)
)

// Normalize collapses runs of horizontal whitespace (including Unicode space
// separators such as NBSP) to a single space and runs of newlines to a single
// newline. The two classes are disjoint, so the result does not depend on the
// order the rules run in and Normalize is idempotent.
func Normalize(raw string) string {
	text := spaceRun.ReplaceAllString(raw, " ")
	return newlineRun.ReplaceAllString(text, "\n")
}
