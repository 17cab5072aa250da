package service

import (
	"context"
	"sort"
	"time"

	exclusiondomain "github.com/revspine/reconciler/internal/exclusion/domain"
	ingestiondomain "github.com/revspine/reconciler/internal/ingestion/domain"
	lifecycledomain "github.com/revspine/reconciler/internal/lifecycle/domain"
	"github.com/revspine/reconciler/internal/money"
	"github.com/revspine/reconciler/internal/reconciliation/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Service implements domain.Service: the three-phase allocator and
// classifier — invoice allocation, credit-note netting, variance
// classification.
type Service struct {
	log *zap.Logger
}

func NewService(log *zap.Logger) domain.Service {
	return &Service{log: log.Named("reconciliation.service")}
}

type overlapSegment struct {
	segment     lifecycledomain.Segment
	overlapDays int
}

func (s *Service) Reconcile(ctx context.Context, input domain.Input) (domain.Result, error) {
	_ = ctx
	now := time.Now().UTC()

	segmentsByRsx := make(map[string][]lifecycledomain.Segment)
	for _, seg := range input.Segments {
		segmentsByRsx[seg.RsxID] = append(segmentsByRsx[seg.RsxID], seg)
	}

	invoiceByID := make(map[string]ingestiondomain.Invoice)
	for _, invoices := range input.InvoicesByRsxID {
		for _, inv := range invoices {
			invoiceByID[inv.InvoiceID] = inv
		}
	}

	var result domain.Result
	invoicedBySegment := make(map[string]decimal.Decimal)
	creditBySegment := make(map[string]decimal.Decimal)
	collectedBySegment := make(map[string]decimal.Decimal)

	// Phase A: invoice allocation.
	invoiceAllocations := make(map[string][]domain.Allocation)
	for rsxID, invoices := range input.InvoicesByRsxID {
		segs := segmentsByRsx[rsxID]
		for _, inv := range invoices {
			if inv.Status == ingestiondomain.InvoiceStatusVoid {
				result.Exclusions.Add(exclusiondomain.RecordInvoice, inv.InvoiceID, exclusiondomain.ReasonUnsupportedStructure,
					"void invoice excluded from allocation", now)
				continue
			}

			periodStart, err1 := time.Parse(dateLayout, inv.PeriodStart)
			periodEnd, err2 := time.Parse(dateLayout, inv.PeriodEnd)
			if err1 != nil || err2 != nil {
				result.Exclusions.Add(exclusiondomain.RecordInvoice, inv.InvoiceID, exclusiondomain.ReasonUnsupportedStructure,
					"unparseable invoice period", now)
				continue
			}

			overlaps := overlappingSegments(segs, periodStart, periodEnd)
			if len(overlaps) == 0 {
				result.Exclusions.Add(exclusiondomain.RecordInvoice, inv.InvoiceID, exclusiondomain.ReasonAllocationAmbiguous,
					"no matching segment", now)
				continue
			}

			var allocs []domain.Allocation
			if len(overlaps) == 1 {
				allocs = []domain.Allocation{{
					RecordKind:      domain.RecordInvoice,
					RecordID:        inv.InvoiceID,
					SegmentID:       overlaps[0].segment.SegmentID,
					AllocatedAmount: inv.Amount,
					Method:          domain.MethodExact,
				}}
			} else {
				amounts := allocateProportional(inv.Amount, overlaps)
				for _, seg := range overlaps {
					allocs = append(allocs, domain.Allocation{
						RecordKind:      domain.RecordInvoice,
						RecordID:        inv.InvoiceID,
						SegmentID:       seg.segment.SegmentID,
						AllocatedAmount: amounts[seg.segment.SegmentID],
						Method:          domain.MethodProportional,
					})
				}
			}

			for _, a := range allocs {
				invoicedBySegment[a.SegmentID] = invoicedBySegment[a.SegmentID].Add(a.AllocatedAmount)
			}
			invoiceAllocations[inv.InvoiceID] = allocs
			result.Allocations = append(result.Allocations, allocs...)
		}
	}

	// Phase B: credit-note allocation.
	for rsxID, notes := range input.CreditNotesByRsxID {
		segs := segmentsByRsx[rsxID]
		for _, cn := range notes {
			linkedAllocs, linked := invoiceAllocations[cn.InvoiceID]
			if cn.InvoiceID != "" && linked {
				invoice := invoiceByID[cn.InvoiceID]
				var allocs []domain.Allocation
				method := domain.MethodExact
				if len(linkedAllocs) > 1 {
					method = domain.MethodProportional
				}
				if len(linkedAllocs) == 1 {
					allocs = []domain.Allocation{{
						RecordKind:      domain.RecordCreditNote,
						RecordID:        cn.CreditNoteID,
						SegmentID:       linkedAllocs[0].SegmentID,
						AllocatedAmount: cn.Amount,
						Method:          method,
					}}
				} else {
					weights := make(map[string]decimal.Decimal, len(linkedAllocs))
					ids := make([]string, 0, len(linkedAllocs))
					for _, a := range linkedAllocs {
						weights[a.SegmentID] = a.AllocatedAmount
						ids = append(ids, a.SegmentID)
					}
					sort.Strings(ids)
					amounts := allocateProportionalByWeight(cn.Amount, invoice.Amount, ids, weights)
					for _, id := range ids {
						allocs = append(allocs, domain.Allocation{
							RecordKind:      domain.RecordCreditNote,
							RecordID:        cn.CreditNoteID,
							SegmentID:       id,
							AllocatedAmount: amounts[id],
							Method:          method,
						})
					}
				}
				for _, a := range allocs {
					creditBySegment[a.SegmentID] = creditBySegment[a.SegmentID].Add(a.AllocatedAmount)
				}
				result.Allocations = append(result.Allocations, allocs...)
				continue
			}

			// Standalone: match by the calendar month containing credit_date.
			creditDate, err := time.Parse(dateLayout, cn.CreditDate)
			if err != nil {
				result.Exclusions.Add(exclusiondomain.RecordCreditNote, cn.CreditNoteID, exclusiondomain.ReasonCreditNoteUnallocated,
					"unparseable credit_date", now)
				continue
			}
			periodLabel := creditDate.Format("2006-01")
			var candidates []lifecycledomain.Segment
			for _, seg := range segs {
				if seg.Period == periodLabel {
					candidates = append(candidates, seg)
				}
			}
			if len(candidates) != 1 {
				result.Exclusions.Add(exclusiondomain.RecordCreditNote, cn.CreditNoteID, exclusiondomain.ReasonCreditNoteUnallocated,
					"zero or multiple segments overlap credit month", now)
				continue
			}
			alloc := domain.Allocation{
				RecordKind:      domain.RecordCreditNote,
				RecordID:        cn.CreditNoteID,
				SegmentID:       candidates[0].SegmentID,
				AllocatedAmount: cn.Amount,
				Method:          domain.MethodStandalone,
			}
			creditBySegment[alloc.SegmentID] = creditBySegment[alloc.SegmentID].Add(alloc.AllocatedAmount)
			result.Allocations = append(result.Allocations, alloc)
		}
	}

	// Collected cash: walk invoice allocations again now that every
	// invoice's final allocated fraction is known.
	for invoiceID, allocs := range invoiceAllocations {
		invoice := invoiceByID[invoiceID]
		if invoice.Amount.IsZero() {
			continue
		}
		paid := money.Sum(paymentAmounts(input.PaymentsByInvoiceID[invoiceID])...)
		for _, a := range allocs {
			fraction := a.AllocatedAmount.Div(invoice.Amount)
			collectedBySegment[a.SegmentID] = collectedBySegment[a.SegmentID].Add(money.RoundHalfEven(paid.Mul(fraction)))
		}
	}

	// Phase C: variance and classification.
	for _, seg := range input.Segments {
		invoiced := invoicedBySegment[seg.SegmentID]
		credits := creditBySegment[seg.SegmentID]
		effective := invoiced.Sub(credits)
		collected := collectedBySegment[seg.SegmentID]
		variance := effective.Sub(seg.ExpectedAmount)

		status := classify(seg.RsxID, input.UnknownRsxIDs, effective, seg.ExpectedAmount, collected, variance, input.ToleranceUSD)

		result.Variances = append(result.Variances, domain.SegmentVariance{
			SegmentID:         seg.SegmentID,
			RsxID:             seg.RsxID,
			SubscriptionID:    seg.SubscriptionID,
			Expected:          seg.ExpectedAmount,
			Invoiced:          invoiced,
			CreditNotes:       credits,
			EffectiveInvoiced: effective,
			Collected:         collected,
			Variance:          variance,
			Status:            status,
		})
	}

	sort.Slice(result.Variances, func(i, j int) bool { return result.Variances[i].SegmentID < result.Variances[j].SegmentID })

	s.log.Debug("reconciliation complete",
		zap.Int("allocations", len(result.Allocations)),
		zap.Int("variances", len(result.Variances)),
		zap.Int("exclusions", len(result.Exclusions.Entries())),
	)

	return result, nil
}

func classify(rsxID string, unknown map[string]bool, effective, expected, collected, variance, tolerance decimal.Decimal) domain.VarianceStatus {
	if unknown[rsxID] {
		return domain.StatusUnknown
	}
	if effective.IsZero() && expected.GreaterThan(tolerance) {
		return domain.StatusMissingInvoice
	}
	if money.WithinTolerance(variance, tolerance) {
		if collected.GreaterThanOrEqual(effective.Sub(tolerance)) {
			return domain.StatusClean
		}
		return domain.StatusUnpaidAR
	}
	if variance.LessThan(tolerance.Neg()) {
		return domain.StatusUnderBilled
	}
	return domain.StatusOverBilled
}

func overlappingSegments(segs []lifecycledomain.Segment, periodStart, periodEnd time.Time) []overlapSegment {
	var out []overlapSegment
	for _, seg := range segs {
		start := maxTime(seg.SegmentStart, periodStart)
		end := minTime(seg.SegmentEnd, periodEnd)
		if end.Before(start) {
			continue
		}
		days := int(end.Sub(start).Hours()/24) + 1
		out = append(out, overlapSegment{segment: seg, overlapDays: days})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].segment.SegmentID < out[j].segment.SegmentID })
	return out
}

// allocateProportional splits amount across overlaps by overlap-day count,
// the final segment (by sorted segment id) absorbing the rounding residue.
func allocateProportional(amount decimal.Decimal, overlaps []overlapSegment) map[string]decimal.Decimal {
	totalDays := 0
	for _, o := range overlaps {
		totalDays += o.overlapDays
	}
	out := make(map[string]decimal.Decimal, len(overlaps))
	if totalDays == 0 {
		return out
	}
	running := decimal.Zero
	for i, o := range overlaps {
		if i == len(overlaps)-1 {
			out[o.segment.SegmentID] = amount.Sub(running)
			continue
		}
		share := money.RoundHalfEven(amount.Mul(decimal.NewFromInt(int64(o.overlapDays))).Div(decimal.NewFromInt(int64(totalDays))))
		out[o.segment.SegmentID] = share
		running = running.Add(share)
	}
	return out
}

// allocateProportionalByWeight mirrors an invoice's allocation split onto a
// credit note of a different (smaller) total amount, using each segment's
// share of the invoice amount as its weight. The last id (by sorted
// order) absorbs the rounding residue.
func allocateProportionalByWeight(creditAmount, invoiceAmount decimal.Decimal, ids []string, weights map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(ids))
	if invoiceAmount.IsZero() {
		return out
	}
	running := decimal.Zero
	for i, id := range ids {
		if i == len(ids)-1 {
			out[id] = creditAmount.Sub(running)
			continue
		}
		fraction := weights[id].Div(invoiceAmount)
		share := money.RoundHalfEven(creditAmount.Mul(fraction))
		out[id] = share
		running = running.Add(share)
	}
	return out
}

func paymentAmounts(payments []ingestiondomain.Payment) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(payments))
	for _, p := range payments {
		out = append(out, p.Amount)
	}
	return out
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
