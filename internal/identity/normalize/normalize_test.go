package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/revspine/reconciler/internal/config"
)

func TestName_StripsCorporateSuffixAndPunctuation(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	assert.Equal(t, "acme", Name("Acme, Inc.", cfg))
	assert.Equal(t, "acme", Name("ACME INC", cfg))
	assert.Equal(t, "northwind traders", Name("Northwind Traders LLC", cfg))
}

func TestName_CollapsesWhitespaceAndDiacritics(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	assert.Equal(t, "cafe del mundo", Name("  Café   del   Mundo  ", cfg))
}

func TestName_LeavesNonSuffixSingleTokenAlone(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	assert.Equal(t, "zephyr", Name("Zephyr", cfg))
}

func TestName_StripsPtySuffix(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	assert.Equal(t, "acme", Name("Acme Pty", cfg))
	assert.Equal(t, Name("Acme", cfg), Name("Acme Pty", cfg))
}

func TestTokens_SplitsOnWhitespaceDroppingEmpties(t *testing.T) {
	assert.Equal(t, []string{"acme", "corp"}, Tokens("acme  corp"))
	assert.Empty(t, Tokens(""))
}

func TestTokenSetSimilarity_IdenticalMultiTokenNamesScoreOne(t *testing.T) {
	assert.Equal(t, float64(1), TokenSetSimilarity("acme corp holdings", "acme corp holdings"))
}

func TestTokenSetSimilarity_PartialTokenOverlap(t *testing.T) {
	got := TokenSetSimilarity("acme corp holdings", "acme corp ventures")
	assert.InDelta(t, 2*2.0/6.0, got, 0.0001)
}

func TestTokenSetSimilarity_DisjointMultiTokenNamesScoreZero(t *testing.T) {
	assert.Equal(t, float64(0), TokenSetSimilarity("acme corp", "totally different"))
}

func TestTokenSetSimilarity_SingleTokenFallsBackToEditDistance(t *testing.T) {
	got := TokenSetSimilarity("acme", "acme")
	assert.Equal(t, float64(1), got)

	got2 := TokenSetSimilarity("acme", "acm")
	assert.True(t, got2 > 0 && got2 < 1)
}

func TestTokenSetSimilarity_BothEmptyScoresOne(t *testing.T) {
	assert.Equal(t, float64(1), TokenSetSimilarity("", ""))
}
