// Package textnorm cleans model output for Arabic script: Unicode
// compatibility folding (NFKC) turns presentation-form code points back into
// standard letters, then redundant whitespace is collapsed.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	spaceRuns   = regexp.MustCompile(` {2,}`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// Normalize prepares a complete answer: NFKC, runs of spaces collapsed to one,
// at most one blank line in a row, surrounding whitespace trimmed.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFKC.String(s)
	s = spaceRuns.ReplaceAllString(s, " ")
	s = newlineRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Fragment prepares one streamed fragment. It is not trimmed, so spacing
// between consecutive fragments survives.
func Fragment(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFKC.String(s)
	return spaceRuns.ReplaceAllString(s, " ")
}
