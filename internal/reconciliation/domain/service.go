package domain

import (
	"context"

	exclusiondomain "github.com/revspine/reconciler/internal/exclusion/domain"
	ingestiondomain "github.com/revspine/reconciler/internal/ingestion/domain"
	lifecycledomain "github.com/revspine/reconciler/internal/lifecycle/domain"
	"github.com/shopspring/decimal"
)

// Input is everything one reconciliation run needs, already grouped by
// rsx_id by the session orchestrator (which owns the identity spine).
type Input struct {
	Segments            []lifecycledomain.Segment
	InvoicesByRsxID      map[string][]ingestiondomain.Invoice
	CreditNotesByRsxID   map[string][]ingestiondomain.CreditNote
	PaymentsByInvoiceID  map[string][]ingestiondomain.Payment
	UnknownRsxIDs        map[string]bool // rsx ids whose account has no customer linkage
	ToleranceUSD         decimal.Decimal
}

// Result is the output of one reconciliation run.
type Result struct {
	Allocations []Allocation
	Variances   []SegmentVariance
	Exclusions  exclusiondomain.Log
}

// Service allocates invoices and credit notes onto segments by period
// overlap and classifies the resulting per-segment variance.
type Service interface {
	Reconcile(ctx context.Context, input Input) (Result, error)
}
