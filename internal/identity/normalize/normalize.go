// Package normalize implements the name-normalization and similarity rules
// the identity resolver's exact and fuzzy passes both depend on.
package normalize

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/gosimple/unidecode"
	"github.com/revspine/reconciler/internal/config"
)

var whitespaceRe = regexp.MustCompile(`\s+`)
var nonAlnumRe = regexp.MustCompile(`[^a-z0-9 ]`)

// Name lower-cases, strips diacritics, collapses whitespace, drops a
// trailing corporate suffix from the configured closed set, then strips
// remaining non-alphanumeric characters. Used as the join key for the
// exact pass and as the tokenization input for the fuzzy pass.
func Name(raw string, cfg config.EngineConfig) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = unidecode.Unidecode(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	tokens := strings.Split(s, " ")
	if len(tokens) > 1 {
		last := strings.TrimRight(tokens[len(tokens)-1], ".")
		if cfg.IsCorporateSuffix(last) || cfg.IsCorporateSuffix(tokens[len(tokens)-1]) {
			tokens = tokens[:len(tokens)-1]
		}
	}
	s = strings.Join(tokens, " ")
	s = nonAlnumRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Tokens splits a normalized name on whitespace, dropping empties.
func Tokens(normalized string) []string {
	fields := strings.Fields(normalized)
	return fields
}

// TokenSetSimilarity scores two normalized names in [0,1]: for multi-token
// names it's 2*|A∩B| / (|A|+|B|) over the whitespace-tokenized forms; for
// single-token pairs on either side it falls back to normalized
// edit-distance similarity.
func TokenSetSimilarity(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)

	if len(tokensA) <= 1 || len(tokensB) <= 1 {
		return editDistanceSimilarity(a, b)
	}

	setA := make(map[string]struct{}, len(tokensA))
	for _, t := range tokensA {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tokensB))
	for _, t := range tokensB {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}

	denom := len(tokensA) + len(tokensB)
	if denom == 0 {
		return 0
	}
	return 2 * float64(intersection) / float64(denom)
}

// editDistanceSimilarity is 1 - levenshtein(a,b)/max(len(a),len(b)).
func editDistanceSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}
