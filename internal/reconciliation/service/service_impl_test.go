package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	ingestiondomain "github.com/revspine/reconciler/internal/ingestion/domain"
	lifecycledomain "github.com/revspine/reconciler/internal/lifecycle/domain"
	"github.com/revspine/reconciler/internal/reconciliation/domain"
)

func mustDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func segment(id, rsxID, period, start, end string, expected decimal.Decimal) lifecycledomain.Segment {
	return lifecycledomain.Segment{
		SegmentID:      id,
		RsxID:          rsxID,
		SubscriptionID: "sub_" + rsxID,
		Period:         period,
		SegmentStart:   mustDate(start),
		SegmentEnd:     mustDate(end),
		ExpectedAmount: expected,
	}
}

func baseInput() domain.Input {
	return domain.Input{
		UnknownRsxIDs: map[string]bool{},
		ToleranceUSD:  decimal.NewFromFloat(1.00),
	}
}

func TestReconcile_ExactSingleSegmentAllocation(t *testing.T) {
	svc := NewService(zap.NewNop())

	input := baseInput()
	input.Segments = []lifecycledomain.Segment{
		segment("seg1", "rsx_a1", "2026-01", "2026-01-01", "2026-01-31", decimal.NewFromInt(1000)),
	}
	input.InvoicesByRsxID = map[string][]ingestiondomain.Invoice{
		"rsx_a1": {{
			InvoiceID:   "inv1",
			PeriodStart: "2026-01-01",
			PeriodEnd:   "2026-01-31",
			Amount:      decimal.NewFromInt(1000),
			Status:      ingestiondomain.InvoiceStatusPaid,
		}},
	}
	input.PaymentsByInvoiceID = map[string][]ingestiondomain.Payment{
		"inv1": {{PaymentID: "p1", InvoiceID: "inv1", Amount: decimal.NewFromInt(1000)}},
	}

	result, err := svc.Reconcile(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, result.Allocations, 1)
	assert.Equal(t, domain.MethodExact, result.Allocations[0].Method)
	assert.True(t, decimal.NewFromInt(1000).Equal(result.Allocations[0].AllocatedAmount))

	require.Len(t, result.Variances, 1)
	assert.Equal(t, domain.StatusClean, result.Variances[0].Status)
	assert.True(t, decimal.Zero.Equal(result.Variances[0].Variance))
}

func TestReconcile_ProportionalAllocationAcrossSegments(t *testing.T) {
	svc := NewService(zap.NewNop())

	input := baseInput()
	input.Segments = []lifecycledomain.Segment{
		segment("seg1", "rsx_a1", "2026-01", "2026-01-01", "2026-01-31", decimal.NewFromInt(500)),
		segment("seg2", "rsx_a1", "2026-02", "2026-02-01", "2026-02-28", decimal.NewFromInt(500)),
	}
	// invoice spans both segments' calendar periods
	input.InvoicesByRsxID = map[string][]ingestiondomain.Invoice{
		"rsx_a1": {{
			InvoiceID:   "inv1",
			PeriodStart: "2026-01-01",
			PeriodEnd:   "2026-02-28",
			Amount:      decimal.NewFromInt(1000),
			Status:      ingestiondomain.InvoiceStatusPaid,
		}},
	}

	result, err := svc.Reconcile(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, result.Allocations, 2)
	for _, a := range result.Allocations {
		assert.Equal(t, domain.MethodProportional, a.Method)
	}
	total := decimal.Zero
	for _, a := range result.Allocations {
		total = total.Add(a.AllocatedAmount)
	}
	assert.True(t, decimal.NewFromInt(1000).Equal(total), "allocations must sum to invoice amount exactly, got %s", total)
}

func TestReconcile_CreditNoteLinkedToInvoiceNets(t *testing.T) {
	svc := NewService(zap.NewNop())

	input := baseInput()
	input.Segments = []lifecycledomain.Segment{
		segment("seg1", "rsx_a1", "2026-01", "2026-01-01", "2026-01-31", decimal.NewFromInt(800)),
	}
	input.InvoicesByRsxID = map[string][]ingestiondomain.Invoice{
		"rsx_a1": {{
			InvoiceID:   "inv1",
			PeriodStart: "2026-01-01",
			PeriodEnd:   "2026-01-31",
			Amount:      decimal.NewFromInt(1000),
			Status:      ingestiondomain.InvoiceStatusPaid,
		}},
	}
	input.CreditNotesByRsxID = map[string][]ingestiondomain.CreditNote{
		"rsx_a1": {{
			CreditNoteID: "cn1",
			InvoiceID:    "inv1",
			CreditDate:   "2026-01-15",
			Amount:       decimal.NewFromInt(200),
		}},
	}
	input.PaymentsByInvoiceID = map[string][]ingestiondomain.Payment{
		"inv1": {{PaymentID: "p1", InvoiceID: "inv1", Amount: decimal.NewFromInt(1000)}},
	}

	result, err := svc.Reconcile(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, result.Variances, 1)
	v := result.Variances[0]
	assert.True(t, decimal.NewFromInt(1000).Equal(v.Invoiced))
	assert.True(t, decimal.NewFromInt(200).Equal(v.CreditNotes))
	assert.True(t, decimal.NewFromInt(800).Equal(v.EffectiveInvoiced))
	assert.Equal(t, domain.StatusClean, v.Status)
}

func TestReconcile_StandaloneCreditNoteMatchesByMonth(t *testing.T) {
	svc := NewService(zap.NewNop())

	input := baseInput()
	input.Segments = []lifecycledomain.Segment{
		segment("seg1", "rsx_a1", "2026-01", "2026-01-01", "2026-01-31", decimal.NewFromInt(800)),
	}
	input.CreditNotesByRsxID = map[string][]ingestiondomain.CreditNote{
		"rsx_a1": {{
			CreditNoteID: "cn1",
			CreditDate:   "2026-01-20",
			Amount:       decimal.NewFromInt(100),
		}},
	}

	result, err := svc.Reconcile(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, result.Allocations, 1)
	assert.Equal(t, domain.MethodStandalone, result.Allocations[0].Method)
	assert.Equal(t, "seg1", result.Allocations[0].SegmentID)

	require.Len(t, result.Variances, 1)
	assert.True(t, decimal.NewFromInt(100).Equal(result.Variances[0].CreditNotes))
}

func TestReconcile_VoidInvoiceExcluded(t *testing.T) {
	svc := NewService(zap.NewNop())

	input := baseInput()
	input.Segments = []lifecycledomain.Segment{
		segment("seg1", "rsx_a1", "2026-01", "2026-01-01", "2026-01-31", decimal.NewFromInt(1000)),
	}
	input.InvoicesByRsxID = map[string][]ingestiondomain.Invoice{
		"rsx_a1": {{
			InvoiceID:   "inv1",
			PeriodStart: "2026-01-01",
			PeriodEnd:   "2026-01-31",
			Amount:      decimal.NewFromInt(1000),
			Status:      ingestiondomain.InvoiceStatusVoid,
		}},
	}

	result, err := svc.Reconcile(context.Background(), input)
	require.NoError(t, err)

	assert.Empty(t, result.Allocations)
	require.Len(t, result.Exclusions.Entries(), 1)
	assert.Equal(t, "inv1", result.Exclusions.Entries()[0].RecordID)

	require.Len(t, result.Variances, 1)
	assert.Equal(t, domain.StatusMissingInvoice, result.Variances[0].Status)
}

func TestReconcile_UnderBilledBeyondTolerance(t *testing.T) {
	svc := NewService(zap.NewNop())

	input := baseInput()
	input.Segments = []lifecycledomain.Segment{
		segment("seg1", "rsx_a1", "2026-01", "2026-01-01", "2026-01-31", decimal.NewFromInt(1000)),
	}
	input.InvoicesByRsxID = map[string][]ingestiondomain.Invoice{
		"rsx_a1": {{
			InvoiceID:   "inv1",
			PeriodStart: "2026-01-01",
			PeriodEnd:   "2026-01-31",
			Amount:      decimal.NewFromInt(900),
			Status:      ingestiondomain.InvoiceStatusPaid,
		}},
	}
	input.PaymentsByInvoiceID = map[string][]ingestiondomain.Payment{
		"inv1": {{PaymentID: "p1", InvoiceID: "inv1", Amount: decimal.NewFromInt(900)}},
	}

	result, err := svc.Reconcile(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, result.Variances, 1)
	assert.Equal(t, domain.StatusUnderBilled, result.Variances[0].Status)
	assert.True(t, decimal.NewFromInt(-100).Equal(result.Variances[0].Variance))
}

func TestReconcile_OverBilledBeyondTolerance(t *testing.T) {
	svc := NewService(zap.NewNop())

	input := baseInput()
	input.Segments = []lifecycledomain.Segment{
		segment("seg1", "rsx_a1", "2026-01", "2026-01-01", "2026-01-31", decimal.NewFromInt(1000)),
	}
	input.InvoicesByRsxID = map[string][]ingestiondomain.Invoice{
		"rsx_a1": {{
			InvoiceID:   "inv1",
			PeriodStart: "2026-01-01",
			PeriodEnd:   "2026-01-31",
			Amount:      decimal.NewFromInt(1100),
			Status:      ingestiondomain.InvoiceStatusPaid,
		}},
	}
	input.PaymentsByInvoiceID = map[string][]ingestiondomain.Payment{
		"inv1": {{PaymentID: "p1", InvoiceID: "inv1", Amount: decimal.NewFromInt(1100)}},
	}

	result, err := svc.Reconcile(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, result.Variances, 1)
	assert.Equal(t, domain.StatusOverBilled, result.Variances[0].Status)
	assert.True(t, decimal.NewFromInt(100).Equal(result.Variances[0].Variance))
}

func TestReconcile_UnpaidARWithinToleranceButCashShort(t *testing.T) {
	svc := NewService(zap.NewNop())

	input := baseInput()
	input.Segments = []lifecycledomain.Segment{
		segment("seg1", "rsx_a1", "2026-01", "2026-01-01", "2026-01-31", decimal.NewFromInt(1000)),
	}
	input.InvoicesByRsxID = map[string][]ingestiondomain.Invoice{
		"rsx_a1": {{
			InvoiceID:   "inv1",
			PeriodStart: "2026-01-01",
			PeriodEnd:   "2026-01-31",
			Amount:      decimal.NewFromInt(1000),
			Status:      ingestiondomain.InvoiceStatusUnpaid,
		}},
	}
	// no payment recorded: invoiced matches expected but nothing collected

	result, err := svc.Reconcile(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, result.Variances, 1)
	assert.Equal(t, domain.StatusUnpaidAR, result.Variances[0].Status)
}

func TestReconcile_UnknownRsxIDClassifiedRegardlessOfAmounts(t *testing.T) {
	svc := NewService(zap.NewNop())

	input := baseInput()
	input.UnknownRsxIDs["rsx_unknown"] = true
	input.Segments = []lifecycledomain.Segment{
		segment("seg1", "rsx_unknown", "2026-01", "2026-01-01", "2026-01-31", decimal.NewFromInt(1000)),
	}
	input.InvoicesByRsxID = map[string][]ingestiondomain.Invoice{
		"rsx_unknown": {{
			InvoiceID:   "inv1",
			PeriodStart: "2026-01-01",
			PeriodEnd:   "2026-01-31",
			Amount:      decimal.NewFromInt(1000),
			Status:      ingestiondomain.InvoiceStatusPaid,
		}},
	}
	input.PaymentsByInvoiceID = map[string][]ingestiondomain.Payment{
		"inv1": {{PaymentID: "p1", InvoiceID: "inv1", Amount: decimal.NewFromInt(1000)}},
	}

	result, err := svc.Reconcile(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, result.Variances, 1)
	assert.Equal(t, domain.StatusUnknown, result.Variances[0].Status)
}

func TestReconcile_InvoiceWithNoOverlappingSegmentExcluded(t *testing.T) {
	svc := NewService(zap.NewNop())

	input := baseInput()
	input.Segments = []lifecycledomain.Segment{
		segment("seg1", "rsx_a1", "2026-01", "2026-01-01", "2026-01-31", decimal.NewFromInt(1000)),
	}
	input.InvoicesByRsxID = map[string][]ingestiondomain.Invoice{
		"rsx_a1": {{
			InvoiceID:   "inv1",
			PeriodStart: "2026-03-01",
			PeriodEnd:   "2026-03-31",
			Amount:      decimal.NewFromInt(1000),
			Status:      ingestiondomain.InvoiceStatusPaid,
		}},
	}

	result, err := svc.Reconcile(context.Background(), input)
	require.NoError(t, err)

	assert.Empty(t, result.Allocations)
	require.Len(t, result.Exclusions.Entries(), 1)
	assert.Equal(t, "inv1", result.Exclusions.Entries()[0].RecordID)
}

func TestAggregateAccounts_PicksLargestAbsoluteVarianceAsPrimary(t *testing.T) {
	variances := []domain.SegmentVariance{
		{SegmentID: "seg1", RsxID: "rsx_a1", Variance: decimal.NewFromInt(-50), Status: domain.StatusUnderBilled},
		{SegmentID: "seg2", RsxID: "rsx_a1", Variance: decimal.NewFromInt(10), Status: domain.StatusOverBilled},
		{SegmentID: "seg3", RsxID: "rsx_a1", Variance: decimal.Zero, Status: domain.StatusClean},
	}

	accounts := domain.AggregateAccounts(variances)

	require.Len(t, accounts, 1)
	a := accounts[0]
	assert.Equal(t, "rsx_a1", a.RsxID)
	assert.Equal(t, domain.StatusUnderBilled, a.PrimaryVarianceType)
	assert.Equal(t, 3, a.SegmentCount)
	assert.Equal(t, 1, a.CleanSegmentCount)
	assert.True(t, decimal.NewFromInt(-40).Equal(a.TotalVariance))
}
