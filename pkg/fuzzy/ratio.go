package fuzzy

import (
	"math/bits"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"

	"github.com/haivivi/tagmatch/pkg/normalize"
)

// Ratio returns the Indel similarity of a and b on a 0–100 scale:
// 200·LCS(a,b) / (len(a)+len(b)), lengths in runes. Two empty strings score 100.
func Ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la+lb == 0 {
		return 100
	}
	return ratio(edlib.LCS(a, b), la, lb)
}

func ratio(lcs, la, lb int) float64 {
	return 200 * float64(lcs) / float64(la+lb)
}

// TokenSortRatio normalizes both strings, sorts their tokens and returns the
// [Ratio] of the results. Word order does not affect the score.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(normalize.Normalize(a)), sortTokens(normalize.Normalize(b)))
}

// sortTokens reorders the tokens of a normalized string alphabetically.
func sortTokens(s string) string {
	toks := normalize.Tokens(s)
	if len(toks) < 2 {
		return strings.Join(toks, normalize.Separator)
	}
	sort.Strings(toks)
	return strings.Join(toks, normalize.Separator)
}

// runeBit maps a rune onto one of 64 signature bits. ASCII letters, digits
// and the separator get their own bit; everything else shares the rest.
func runeBit(r rune) uint {
	switch {
	case r >= 'a' && r <= 'z':
		return uint(r - 'a')
	case r >= '0' && r <= '9':
		return 26 + uint(r-'0')
	case r == '_':
		return 36
	default:
		return 37 + uint(r)%27
	}
}

func signature(s string) uint64 {
	var sig uint64
	for _, r := range s {
		sig |= 1 << runeBit(r)
	}
	return sig
}

// lcsUpperBound bounds LCS(query, key) from the two signatures. A query rune
// whose bit is absent from the key cannot be part of a common subsequence;
// each key bit absent from the query stands for at least one such key rune.
func lcsUpperBound(qbits []uint, qsig uint64, la int, ksig uint64, lb int) int {
	missQ := 0
	for _, b := range qbits {
		if ksig&(1<<b) == 0 {
			missQ++
		}
	}
	missK := bits.OnesCount64(ksig &^ qsig)
	return min(la-missQ, lb-missK)
}
