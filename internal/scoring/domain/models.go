// Package domain holds the portfolio scoring output: coverage metrics,
// the four-component weighted structural integrity score, revenue at
// risk, and the quick-findings panel.
package domain

import (
	reconciliationdomain "github.com/revspine/reconciler/internal/reconciliation/domain"
	"github.com/shopspring/decimal"
)

// Coverage reports portfolio-wide matched/total ratios.
type Coverage struct {
	SubscriptionPct float64 `json:"subscription_pct"`
	ARRPct          float64 `json:"arr_pct"`
}

// Components holds the four weighted score inputs, each a percentage.
type Components struct {
	EntityMatchRate     float64 `json:"entity_match_rate"`
	BillingCoverage     float64 `json:"billing_coverage"`
	VarianceCleanliness float64 `json:"variance_cleanliness"`
	LineageCompleteness float64 `json:"lineage_completeness"`
}

// RiskBucket totals revenue at risk for one non-clean status kind.
type RiskBucket struct {
	Status       reconciliationdomain.VarianceStatus `json:"status"`
	TotalAtRisk  decimal.Decimal                     `json:"total_at_risk"`
	AccountCount int                                  `json:"account_count"`
}

// QuickFinding is one entry in the top-N findings panel.
type QuickFinding struct {
	RsxID         string                               `json:"rsx_id"`
	TotalVariance decimal.Decimal                      `json:"total_variance"`
	Status        reconciliationdomain.VarianceStatus `json:"status"`
}

// Result is the complete scoring output for one session.
type Result struct {
	Coverage       Coverage       `json:"coverage"`
	Components     Components     `json:"components"`
	CompositeScore float64        `json:"composite_score"`
	Band           string         `json:"band"`
	Interpretation string         `json:"interpretation"`
	RevenueAtRisk  []RiskBucket   `json:"revenue_at_risk"`
	QuickFindings  []QuickFinding `json:"quick_findings"`
}

// bandInterpretation is the fixed dictionary the spec calls for: band ->
// human-readable interpretation text.
var bandInterpretation = map[string]string{
	"green":  "Revenue reconciliation is clean; minor or no action needed.",
	"amber":  "Some billing drift exists; review flagged accounts this cycle.",
	"orange": "Material reconciliation gaps; prioritize root-cause review.",
	"red":    "Significant structural integrity issues; immediate investigation required.",
}

// Interpretation returns the fixed-dictionary text for a band label.
func Interpretation(band string) string {
	if text, ok := bandInterpretation[band]; ok {
		return text
	}
	return "No interpretation available for this band."
}
