// Package domain holds the per-segment allocation and variance output of
// the reconciliation stage: invoice/credit-note allocation onto revenue
// segments, the resulting per-segment variance, and the root-cause
// classification of every non-clean segment.
package domain

import "github.com/shopspring/decimal"

// AllocationMethod records how an invoice or credit note's amount was
// assigned to a segment.
type AllocationMethod string

const (
	MethodExact        AllocationMethod = "exact"
	MethodProportional AllocationMethod = "proportional"
	MethodStandalone   AllocationMethod = "standalone"
)

// RecordKind distinguishes the two document types reconciliation allocates.
type RecordKind string

const (
	RecordInvoice    RecordKind = "invoice"
	RecordCreditNote RecordKind = "credit_note"
)

// Allocation is one assignment of an invoice or credit-note amount onto a
// segment.
type Allocation struct {
	RecordKind      RecordKind       `json:"record_kind"`
	RecordID        string           `json:"record_id"`
	SegmentID       string           `json:"segment_id"`
	AllocatedAmount decimal.Decimal  `json:"allocated_amount"`
	Method          AllocationMethod `json:"method"`
}

// VarianceStatus is the root-cause classification of a segment's variance.
type VarianceStatus string

const (
	StatusClean          VarianceStatus = "CLEAN"
	StatusMissingInvoice VarianceStatus = "MISSING_INVOICE"
	StatusUnderBilled    VarianceStatus = "UNDER_BILLED"
	StatusOverBilled     VarianceStatus = "OVER_BILLED"
	StatusUnpaidAR       VarianceStatus = "UNPAID_AR"
	StatusUnknown        VarianceStatus = "UNKNOWN"
)

// statusPriority orders non-clean statuses for account-level tie-breaking:
// MISSING_INVOICE > UNPAID_AR > UNDER_BILLED > OVER_BILLED > UNKNOWN > CLEAN.
var statusPriority = map[VarianceStatus]int{
	StatusMissingInvoice: 5,
	StatusUnpaidAR:       4,
	StatusUnderBilled:    3,
	StatusOverBilled:     2,
	StatusUnknown:        1,
	StatusClean:          0,
}

// SegmentVariance is the per-segment reconciliation output.
type SegmentVariance struct {
	SegmentID         string          `json:"segment_id"`
	RsxID             string          `json:"rsx_id"`
	SubscriptionID    string          `json:"subscription_id"`
	Expected          decimal.Decimal `json:"expected"`
	Invoiced          decimal.Decimal `json:"invoiced"`
	CreditNotes       decimal.Decimal `json:"credit_notes"`
	EffectiveInvoiced decimal.Decimal `json:"effective_invoiced"`
	Collected         decimal.Decimal `json:"collected"`
	Variance          decimal.Decimal `json:"variance"`
	Status            VarianceStatus  `json:"status"`
}

// AccountVariance aggregates segment variances up to the rsx_id level.
type AccountVariance struct {
	RsxID               string          `json:"rsx_id"`
	TotalVariance       decimal.Decimal `json:"total_variance"`
	PrimaryVarianceType VarianceStatus  `json:"primary_variance_type"`
	SegmentCount        int             `json:"segment_count"`
	CleanSegmentCount   int             `json:"clean_segment_count"`
}

// AggregateAccounts rolls segment-level variances up to one AccountVariance
// per rsx_id, choosing the non-clean status with the largest absolute
// aggregate |variance| as primary_variance_type (ties broken by
// statusPriority).
func AggregateAccounts(variances []SegmentVariance) []AccountVariance {
	type acc struct {
		total        decimal.Decimal
		byStatus     map[VarianceStatus]decimal.Decimal
		segmentCount int
		cleanCount   int
	}
	byRsx := make(map[string]*acc)
	var order []string

	for _, v := range variances {
		a, ok := byRsx[v.RsxID]
		if !ok {
			a = &acc{byStatus: make(map[VarianceStatus]decimal.Decimal)}
			byRsx[v.RsxID] = a
			order = append(order, v.RsxID)
		}
		a.total = a.total.Add(v.Variance)
		a.segmentCount++
		if v.Status == StatusClean {
			a.cleanCount++
		}
		absVariance := v.Variance
		if absVariance.IsNegative() {
			absVariance = absVariance.Neg()
		}
		a.byStatus[v.Status] = a.byStatus[v.Status].Add(absVariance)
	}

	out := make([]AccountVariance, 0, len(order))
	for _, rsxID := range order {
		a := byRsx[rsxID]
		primary := StatusClean
		bestAbs := decimal.Zero
		for status, absSum := range a.byStatus {
			if status == StatusClean {
				continue
			}
			if absSum.GreaterThan(bestAbs) ||
				(absSum.Equal(bestAbs) && statusPriority[status] > statusPriority[primary]) {
				bestAbs = absSum
				primary = status
			}
		}
		out = append(out, AccountVariance{
			RsxID:               rsxID,
			TotalVariance:       a.total,
			PrimaryVarianceType: primary,
			SegmentCount:        a.segmentCount,
			CleanSegmentCount:   a.cleanCount,
		})
	}
	return out
}
