// Package domain holds the six validated input rowsets the reconciliation
// pipeline starts from, and the typed in-memory indexes built over them.
// Header/enum normalization from raw CSV happens upstream of this
// package; everything here already has canonical column names and types.
package domain

import "github.com/shopspring/decimal"

// Account is the CRM-side entity.
type Account struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	EmailDomain string `json:"email_domain,omitempty"`
	Source      string `json:"source"`
}

// Customer is the billing-side entity.
type Customer struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	EmailDomain  string `json:"email_domain,omitempty"`
	Source       string `json:"source"`
}

// RampStep is one override point in a subscription's ramp schedule.
type RampStep struct {
	EffectiveDate string          `json:"effective_date"` // YYYY-MM-DD
	MRR           decimal.Decimal `json:"mrr"`
}

// Subscription is a CRM-side booking.
type Subscription struct {
	SubscriptionID string          `json:"subscription_id"`
	AccountID      string          `json:"account_id"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	MRR            decimal.Decimal `json:"mrr"`
	RampSchedule   []RampStep      `json:"ramp_schedule,omitempty"`
}

// InvoiceStatus enumerates the canonical invoice states.
type InvoiceStatus string

const (
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusUnpaid  InvoiceStatus = "unpaid"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusVoid    InvoiceStatus = "void"
)

// Invoice is a billing-side document.
type Invoice struct {
	InvoiceID      string          `json:"invoice_id"`
	CustomerID     string          `json:"customer_id"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	InvoiceDate    string          `json:"invoice_date"`
	PeriodStart    string          `json:"period_start"`
	PeriodEnd      string          `json:"period_end"`
	Amount         decimal.Decimal `json:"amount"`
	Status         InvoiceStatus   `json:"status"`
}

// Payment records cash applied to an invoice.
type Payment struct {
	PaymentID   string          `json:"payment_id"`
	InvoiceID   string          `json:"invoice_id"`
	PaymentDate string          `json:"payment_date"`
	Amount      decimal.Decimal `json:"amount"`
}

// CreditNote records a billing-side credit, optionally linked to an invoice.
type CreditNote struct {
	CreditNoteID string          `json:"credit_note_id"`
	CustomerID   string          `json:"customer_id"`
	InvoiceID    string          `json:"invoice_id,omitempty"`
	CreditDate   string          `json:"credit_date"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason,omitempty"`
}

// RawTables is the complete set of six input rowsets for one session.
type RawTables struct {
	Accounts      []Account
	Customers     []Customer
	Subscriptions []Subscription
	Invoices      []Invoice
	Payments      []Payment
	CreditNotes   []CreditNote
}

// Indexed holds RawTables plus primary-key lookup maps, built once at
// ingestion time and consumed read-only by every downstream stage.
type Indexed struct {
	Tables RawTables

	AccountByID      map[string]Account
	CustomerByID     map[string]Customer
	SubscriptionByID map[string]Subscription
	InvoiceByID      map[string]Invoice
	PaymentByID      map[string]Payment
	CreditNoteByID   map[string]CreditNote

	// PaymentsByInvoiceID groups payments by their invoice for O(1) lookup
	// during reconciliation's collected-cash computation.
	PaymentsByInvoiceID map[string][]Payment
}
