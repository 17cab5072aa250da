package service

import (
	"context"
	"math"
	"sort"

	reconciliationdomain "github.com/revspine/reconciler/internal/reconciliation/domain"
	"github.com/revspine/reconciler/internal/scoring/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service implements domain.Service: coverage metrics, the four-component
// weighted score, revenue-at-risk totals, and the quick-findings panel.
type Service struct {
	log *zap.Logger
}

func NewService(log *zap.Logger) domain.Service {
	return &Service{log: log.Named("scoring.service")}
}

func (s *Service) Compute(ctx context.Context, input domain.Input) (domain.Result, error) {
	_ = ctx

	totalExpected := decimal.Zero
	matchedExpected := decimal.Zero
	totalSegments := len(input.Segments)
	for _, seg := range input.Segments {
		totalExpected = totalExpected.Add(seg.ExpectedAmount)
		if !input.UnknownRsxIDs[seg.RsxID] {
			matchedExpected = matchedExpected.Add(seg.ExpectedAmount)
		}
	}

	coverage := domain.Coverage{
		SubscriptionPct: ratio(input.MatchedSubscriptions, input.TotalSubscriptions),
		ARRPct:          decimalRatio(matchedExpected, totalExpected),
	}

	entityMatchRate := ratio(input.MatchedLinks, input.TotalAccounts)

	matchedSegmentIDs := make(map[string]bool, totalSegments)
	for _, seg := range input.Segments {
		if !input.UnknownRsxIDs[seg.RsxID] {
			matchedSegmentIDs[seg.SegmentID] = true
		}
	}
	invoicedOnMatched := decimal.Zero
	lineageSegmentIDs := make(map[string]bool)
	for _, a := range input.Allocations {
		if a.RecordKind != reconciliationdomain.RecordInvoice {
			continue
		}
		if matchedSegmentIDs[a.SegmentID] {
			invoicedOnMatched = invoicedOnMatched.Add(a.AllocatedAmount)
		}
		if a.Method == reconciliationdomain.MethodExact || a.Method == reconciliationdomain.MethodProportional {
			lineageSegmentIDs[a.SegmentID] = true
		}
	}
	billingCoverage := decimalRatio(invoicedOnMatched, totalExpected)
	if billingCoverage > 100 {
		billingCoverage = 100
	}
	if billingCoverage < 0 {
		billingCoverage = 0
	}

	cleanCount := 0
	for _, v := range input.Variances {
		if v.Status == reconciliationdomain.StatusClean {
			cleanCount++
		}
	}
	varianceCleanliness := ratio(cleanCount, len(input.Variances))
	lineageCompleteness := ratio(len(lineageSegmentIDs), totalSegments)

	components := domain.Components{
		EntityMatchRate:     entityMatchRate,
		BillingCoverage:     billingCoverage,
		VarianceCleanliness: varianceCleanliness,
		LineageCompleteness: lineageCompleteness,
	}

	weights := input.Engine.ScoreWeights
	composite := weights.IdentityResolution*entityMatchRate +
		weights.RevenueMatch*billingCoverage +
		weights.TimingAlignment*varianceCleanliness +
		weights.DataCompleteness*lineageCompleteness
	composite = math.Round(composite)

	band := input.Engine.Band(composite)

	accountVariances := reconciliationdomain.AggregateAccounts(input.Variances)
	risk := revenueAtRisk(accountVariances)

	topN := input.TopN
	if topN <= 0 {
		topN = 5
	}
	findings := quickFindings(accountVariances, topN)

	s.log.Debug("scoring computed",
		zap.Float64("composite_score", composite),
		zap.String("band", band),
	)

	return domain.Result{
		Coverage:       coverage,
		Components:     components,
		CompositeScore: composite,
		Band:           band,
		Interpretation: domain.Interpretation(band),
		RevenueAtRisk:  risk,
		QuickFindings:  findings,
	}, nil
}

func ratio(matched, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total) * 100
}

func decimalRatio(numerator, denominator decimal.Decimal) float64 {
	if denominator.IsZero() {
		return 0
	}
	f, _ := numerator.Div(denominator).Mul(decimal.NewFromInt(100)).Float64()
	return f
}

func revenueAtRisk(accounts []reconciliationdomain.AccountVariance) []domain.RiskBucket {
	byStatus := make(map[reconciliationdomain.VarianceStatus]*domain.RiskBucket)
	var order []reconciliationdomain.VarianceStatus
	for _, a := range accounts {
		if a.PrimaryVarianceType == reconciliationdomain.StatusClean {
			continue
		}
		bucket, ok := byStatus[a.PrimaryVarianceType]
		if !ok {
			bucket = &domain.RiskBucket{Status: a.PrimaryVarianceType}
			byStatus[a.PrimaryVarianceType] = bucket
			order = append(order, a.PrimaryVarianceType)
		}
		abs := a.TotalVariance
		if abs.IsNegative() {
			abs = abs.Neg()
		}
		bucket.TotalAtRisk = bucket.TotalAtRisk.Add(abs)
		bucket.AccountCount++
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]domain.RiskBucket, 0, len(order))
	for _, status := range order {
		out = append(out, *byStatus[status])
	}
	return out
}

func quickFindings(accounts []reconciliationdomain.AccountVariance, topN int) []domain.QuickFinding {
	var flagged []reconciliationdomain.AccountVariance
	for _, a := range accounts {
		if a.PrimaryVarianceType != reconciliationdomain.StatusClean {
			flagged = append(flagged, a)
		}
	}
	sort.Slice(flagged, func(i, j int) bool {
		return absDecimal(flagged[i].TotalVariance).GreaterThan(absDecimal(flagged[j].TotalVariance))
	})
	if len(flagged) > topN {
		flagged = flagged[:topN]
	}
	out := make([]domain.QuickFinding, 0, len(flagged))
	for _, a := range flagged {
		out = append(out, domain.QuickFinding{
			RsxID:         a.RsxID,
			TotalVariance: a.TotalVariance,
			Status:        a.PrimaryVarianceType,
		})
	}
	return out
}

func absDecimal(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return d.Neg()
	}
	return d
}
