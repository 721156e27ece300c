package app

import (
	"regexp"
	"strings"
)

// Catalog questions carry noisy plain-text formatting (long separator rules,
// stacked blank lines, mixed bullet styles). These transforms are cosmetic
// only; grading compares solutions, never question text.
var (
	horizontalRuleRE = regexp.MustCompile(`[-_=─━═]{20,}`)
	trailingSpaceRE  = regexp.MustCompile(`(?m)[ \t]+$`)
	blankRunRE       = regexp.MustCompile(`\n{3,}`)
	bulletRE         = regexp.MustCompile(`(?m)^([ \t]*)(?:[•◦▪]|[-*])[ \t]+`)
	numberedItemRE   = regexp.MustCompile(`(?m)^([ \t]*)(\d+)\.[ \t]+`)
)

func sanitizeQuestion(text string) string {
	text = horizontalRuleRE.ReplaceAllString(text, "_____")
	text = trailingSpaceRE.ReplaceAllString(text, "")
	text = blankRunRE.ReplaceAllString(text, "\n\n")
	text = bulletRE.ReplaceAllString(text, "$1• ")
	text = numberedItemRE.ReplaceAllString(text, "$1$2. ")
	return strings.TrimSpace(text)
}
