// Package normalize canonicalizes label text.
//
// Every stage that compares labels (catalog construction, alias indexing,
// exact, alias, fuzzy and vector matching) goes through [Normalize], so a
// label typed as "School Uniform", "school  uniform" or "ｓｃｈｏｏｌ　ｕｎｉｆｏｒｍ"
// lands on the same key "school_uniform".
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Separator joins the whitespace-separated words of a normalized label.
const Separator = "_"

// Normalize returns the canonical form of text.
//
// The text is NFKC-folded and lowercased (twice, so compatibility characters
// that decompose into capitals settle), then every run of Unicode whitespace
// becomes a single [Separator]. Leading and trailing whitespace is dropped.
// Hyphens and existing underscores are kept as-is.
//
// Normalize is total and idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	s := fold(fold(text))
	return strings.Join(strings.Fields(s), Separator)
}

func fold(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// Tokens splits a normalized label into its words. Empty words produced by
// doubled separators are dropped.
func Tokens(normalized string) []string {
	parts := strings.Split(normalized, Separator)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Display renders a normalized label as words separated by spaces, the
// surface form embedding models are trained on.
func Display(normalized string) string {
	return strings.ReplaceAll(normalized, Separator, " ")
}
