package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/revspine/reconciler/internal/config"
	lifecycledomain "github.com/revspine/reconciler/internal/lifecycle/domain"
	reconciliationdomain "github.com/revspine/reconciler/internal/reconciliation/domain"
	"github.com/revspine/reconciler/internal/scoring/domain"
)

func TestCompute_AllCleanYieldsGreenBand(t *testing.T) {
	svc := NewService(zap.NewNop())

	input := domain.Input{
		TotalAccounts:        2,
		MatchedLinks:         2,
		TotalSubscriptions:   2,
		MatchedSubscriptions: 2,
		Segments: []lifecycledomain.Segment{
			{SegmentID: "seg1", RsxID: "rsx_a1", ExpectedAmount: decimal.NewFromInt(1000)},
			{SegmentID: "seg2", RsxID: "rsx_a2", ExpectedAmount: decimal.NewFromInt(1000)},
		},
		Variances: []reconciliationdomain.SegmentVariance{
			{SegmentID: "seg1", RsxID: "rsx_a1", Status: reconciliationdomain.StatusClean},
			{SegmentID: "seg2", RsxID: "rsx_a2", Status: reconciliationdomain.StatusClean},
		},
		Allocations: []reconciliationdomain.Allocation{
			{RecordKind: reconciliationdomain.RecordInvoice, SegmentID: "seg1", AllocatedAmount: decimal.NewFromInt(1000), Method: reconciliationdomain.MethodExact},
			{RecordKind: reconciliationdomain.RecordInvoice, SegmentID: "seg2", AllocatedAmount: decimal.NewFromInt(1000), Method: reconciliationdomain.MethodExact},
		},
		UnknownRsxIDs: map[string]bool{},
		Engine:        config.DefaultEngineConfig(),
		TopN:          5,
	}

	result, err := svc.Compute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, float64(100), result.Components.EntityMatchRate)
	assert.Equal(t, float64(100), result.Components.BillingCoverage)
	assert.Equal(t, float64(100), result.Components.VarianceCleanliness)
	assert.Equal(t, float64(100), result.CompositeScore)
	assert.Equal(t, "green", result.Band)
	assert.Empty(t, result.RevenueAtRisk)
	assert.Empty(t, result.QuickFindings)
}

func TestCompute_UnmatchedAccountsDegradeScore(t *testing.T) {
	svc := NewService(zap.NewNop())

	input := domain.Input{
		TotalAccounts:        2,
		MatchedLinks:         1,
		TotalSubscriptions:   2,
		MatchedSubscriptions: 1,
		Segments: []lifecycledomain.Segment{
			{SegmentID: "seg1", RsxID: "rsx_a1", ExpectedAmount: decimal.NewFromInt(1000)},
			{SegmentID: "seg2", RsxID: "rsx_unknown", ExpectedAmount: decimal.NewFromInt(1000)},
		},
		Variances: []reconciliationdomain.SegmentVariance{
			{SegmentID: "seg1", RsxID: "rsx_a1", Status: reconciliationdomain.StatusClean},
			{SegmentID: "seg2", RsxID: "rsx_unknown", Status: reconciliationdomain.StatusUnknown},
		},
		UnknownRsxIDs: map[string]bool{"rsx_unknown": true},
		Engine:        config.DefaultEngineConfig(),
		TopN:          5,
	}

	result, err := svc.Compute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, float64(50), result.Components.EntityMatchRate)
	assert.Less(t, result.CompositeScore, float64(100))
}

func TestCompute_RevenueAtRiskBucketsByStatus(t *testing.T) {
	svc := NewService(zap.NewNop())

	input := domain.Input{
		TotalAccounts:        2,
		MatchedLinks:         2,
		TotalSubscriptions:   2,
		MatchedSubscriptions: 2,
		Segments: []lifecycledomain.Segment{
			{SegmentID: "seg1", RsxID: "rsx_a1", ExpectedAmount: decimal.NewFromInt(1000)},
			{SegmentID: "seg2", RsxID: "rsx_a2", ExpectedAmount: decimal.NewFromInt(500)},
		},
		Variances: []reconciliationdomain.SegmentVariance{
			{SegmentID: "seg1", RsxID: "rsx_a1", Variance: decimal.NewFromInt(-200), Status: reconciliationdomain.StatusUnderBilled},
			{SegmentID: "seg2", RsxID: "rsx_a2", Variance: decimal.NewFromInt(50), Status: reconciliationdomain.StatusOverBilled},
		},
		UnknownRsxIDs: map[string]bool{},
		Engine:        config.DefaultEngineConfig(),
		TopN:          5,
	}

	result, err := svc.Compute(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, result.RevenueAtRisk, 2)
	totalRisk := decimal.Zero
	for _, bucket := range result.RevenueAtRisk {
		totalRisk = totalRisk.Add(bucket.TotalAtRisk)
		assert.Equal(t, 1, bucket.AccountCount)
	}
	assert.True(t, decimal.NewFromInt(250).Equal(totalRisk))

	require.Len(t, result.QuickFindings, 2)
	assert.Equal(t, "rsx_a1", result.QuickFindings[0].RsxID, "largest absolute variance ranks first")
}

func TestCompute_QuickFindingsRespectsTopN(t *testing.T) {
	svc := NewService(zap.NewNop())

	variances := make([]reconciliationdomain.SegmentVariance, 0, 3)
	segments := make([]lifecycledomain.Segment, 0, 3)
	amounts := []int64{-10, -50, -30}
	for i, amt := range amounts {
		rsxID := "rsx_" + string(rune('a'+i))
		segID := "seg" + string(rune('1'+i))
		segments = append(segments, lifecycledomain.Segment{SegmentID: segID, RsxID: rsxID, ExpectedAmount: decimal.NewFromInt(100)})
		variances = append(variances, reconciliationdomain.SegmentVariance{
			SegmentID: segID, RsxID: rsxID, Variance: decimal.NewFromInt(amt), Status: reconciliationdomain.StatusUnderBilled,
		})
	}

	input := domain.Input{
		TotalAccounts:        3,
		MatchedLinks:         3,
		TotalSubscriptions:   3,
		MatchedSubscriptions: 3,
		Segments:             segments,
		Variances:            variances,
		UnknownRsxIDs:        map[string]bool{},
		Engine:               config.DefaultEngineConfig(),
		TopN:                 2,
	}

	result, err := svc.Compute(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, result.QuickFindings, 2)
	assert.True(t, decimal.NewFromInt(-50).Equal(result.QuickFindings[0].TotalVariance))
	assert.True(t, decimal.NewFromInt(-30).Equal(result.QuickFindings[1].TotalVariance))
}

func TestCompute_ZeroTotalsAvoidDivideByZero(t *testing.T) {
	svc := NewService(zap.NewNop())

	input := domain.Input{
		Engine: config.DefaultEngineConfig(),
		TopN:   5,
	}

	result, err := svc.Compute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, float64(0), result.Components.EntityMatchRate)
	assert.Equal(t, float64(0), result.Components.BillingCoverage)
	assert.Equal(t, float64(0), result.Components.VarianceCleanliness)
	assert.Equal(t, float64(0), result.Components.LineageCompleteness)
	assert.Equal(t, "red", result.Band)
}
