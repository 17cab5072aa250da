package service

import (
	"context"
	"fmt"
	"time"

	"github.com/revspine/reconciler/internal/ingestion/domain"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Service implements domain.Service: it loads the six validated tables into
// typed in-memory rowsets and indexes them by primary key, the first stage
// of the reconciliation pipeline.
type Service struct {
	log *zap.Logger
}

func NewService(log *zap.Logger) domain.Service {
	return &Service{log: log.Named("ingestion.service")}
}

func (s *Service) Validate(ctx context.Context, tables domain.RawTables) (domain.ValidationResult, error) {
	_ = ctx
	result := domain.ValidationResult{Valid: true}

	accountByID := make(map[string]domain.Account, len(tables.Accounts))
	for i, a := range tables.Accounts {
		if a.AccountID == "" {
			result.AddError("accounts", i, "account_id", "required")
			continue
		}
		if _, dup := accountByID[a.AccountID]; dup {
			result.AddError("accounts", i, "account_id", "duplicate primary key")
			continue
		}
		if a.AccountName == "" {
			result.AddError("accounts", i, "account_name", "required")
		}
		accountByID[a.AccountID] = a
	}

	customerByID := make(map[string]domain.Customer, len(tables.Customers))
	for i, c := range tables.Customers {
		if c.CustomerID == "" {
			result.AddError("customers", i, "customer_id", "required")
			continue
		}
		if _, dup := customerByID[c.CustomerID]; dup {
			result.AddError("customers", i, "customer_id", "duplicate primary key")
			continue
		}
		if c.CustomerName == "" {
			result.AddError("customers", i, "customer_name", "required")
		}
		customerByID[c.CustomerID] = c
	}

	subscriptionByID := make(map[string]domain.Subscription, len(tables.Subscriptions))
	for i, sub := range tables.Subscriptions {
		if sub.SubscriptionID == "" {
			result.AddError("subscriptions", i, "subscription_id", "required")
			continue
		}
		if _, dup := subscriptionByID[sub.SubscriptionID]; dup {
			result.AddError("subscriptions", i, "subscription_id", "duplicate primary key")
			continue
		}
		if sub.AccountID == "" {
			result.AddError("subscriptions", i, "account_id", "required")
		} else if _, ok := accountByID[sub.AccountID]; !ok {
			result.AddError("subscriptions", i, "account_id", "references unknown account")
		}
		if _, err := time.Parse(dateLayout, sub.StartDate); err != nil {
			result.AddError("subscriptions", i, "start_date", "unparseable date")
		}
		if _, err := time.Parse(dateLayout, sub.EndDate); err != nil {
			result.AddError("subscriptions", i, "end_date", "unparseable date")
		}
		for j, step := range sub.RampSchedule {
			if _, err := time.Parse(dateLayout, step.EffectiveDate); err != nil {
				result.AddError("subscriptions", i, fmt.Sprintf("ramp_schedule[%d].effective_date", j), "unparseable date")
			}
		}
		subscriptionByID[sub.SubscriptionID] = sub
	}

	invoiceByID := make(map[string]domain.Invoice, len(tables.Invoices))
	for i, inv := range tables.Invoices {
		if inv.InvoiceID == "" {
			result.AddError("invoices", i, "invoice_id", "required")
			continue
		}
		if _, dup := invoiceByID[inv.InvoiceID]; dup {
			result.AddError("invoices", i, "invoice_id", "duplicate primary key")
			continue
		}
		if inv.CustomerID == "" {
			result.AddError("invoices", i, "customer_id", "required")
		} else if _, ok := customerByID[inv.CustomerID]; !ok {
			result.AddError("invoices", i, "customer_id", "references unknown customer")
		}
		periodStart, startErr := time.Parse(dateLayout, inv.PeriodStart)
		if startErr != nil {
			result.AddError("invoices", i, "period_start", "unparseable date")
		}
		periodEnd, endErr := time.Parse(dateLayout, inv.PeriodEnd)
		if endErr != nil {
			result.AddError("invoices", i, "period_end", "unparseable date")
		}
		if startErr == nil && endErr == nil && periodEnd.Before(periodStart) {
			result.AddError("invoices", i, "period_end", "period_end before period_start")
		}
		if _, err := time.Parse(dateLayout, inv.InvoiceDate); err != nil {
			result.AddError("invoices", i, "invoice_date", "unparseable date")
		}
		switch inv.Status {
		case domain.InvoiceStatusPaid, domain.InvoiceStatusUnpaid, domain.InvoiceStatusPartial, domain.InvoiceStatusVoid:
		default:
			result.AddError("invoices", i, "status", "unrecognized status")
		}
		invoiceByID[inv.InvoiceID] = inv
	}

	paymentByID := make(map[string]domain.Payment, len(tables.Payments))
	paymentsByInvoiceID := make(map[string][]domain.Payment)
	for i, p := range tables.Payments {
		if p.PaymentID == "" {
			result.AddError("payments", i, "payment_id", "required")
			continue
		}
		if _, dup := paymentByID[p.PaymentID]; dup {
			result.AddError("payments", i, "payment_id", "duplicate primary key")
			continue
		}
		if p.InvoiceID == "" {
			result.AddError("payments", i, "invoice_id", "required")
		} else if _, ok := invoiceByID[p.InvoiceID]; !ok {
			result.AddWarning("payments", i, "invoice_id", "references unknown invoice")
		}
		if _, err := time.Parse(dateLayout, p.PaymentDate); err != nil {
			result.AddError("payments", i, "payment_date", "unparseable date")
		}
		paymentByID[p.PaymentID] = p
		paymentsByInvoiceID[p.InvoiceID] = append(paymentsByInvoiceID[p.InvoiceID], p)
	}

	creditNoteByID := make(map[string]domain.CreditNote, len(tables.CreditNotes))
	for i, cn := range tables.CreditNotes {
		if cn.CreditNoteID == "" {
			result.AddError("credit_notes", i, "credit_note_id", "required")
			continue
		}
		if _, dup := creditNoteByID[cn.CreditNoteID]; dup {
			result.AddError("credit_notes", i, "credit_note_id", "duplicate primary key")
			continue
		}
		if cn.CustomerID == "" {
			result.AddError("credit_notes", i, "customer_id", "required")
		} else if _, ok := customerByID[cn.CustomerID]; !ok {
			result.AddError("credit_notes", i, "customer_id", "references unknown customer")
		}
		if _, err := time.Parse(dateLayout, cn.CreditDate); err != nil {
			result.AddError("credit_notes", i, "credit_date", "unparseable date")
		}
		creditNoteByID[cn.CreditNoteID] = cn
	}

	result.Indexed = domain.Indexed{
		Tables:              tables,
		AccountByID:         accountByID,
		CustomerByID:        customerByID,
		SubscriptionByID:    subscriptionByID,
		InvoiceByID:         invoiceByID,
		PaymentByID:         paymentByID,
		CreditNoteByID:      creditNoteByID,
		PaymentsByInvoiceID: paymentsByInvoiceID,
	}

	s.log.Debug("validated input tables",
		zap.Int("accounts", len(accountByID)),
		zap.Int("customers", len(customerByID)),
		zap.Int("subscriptions", len(subscriptionByID)),
		zap.Int("invoices", len(invoiceByID)),
		zap.Int("errors", len(result.Errors)),
	)

	return result, nil
}
