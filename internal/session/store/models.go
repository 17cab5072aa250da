// Package store is the GORM-backed persistence layer for sessions and
// session_data, matching the conceptual layout in spec §6: one row per
// session plus a (session_id, kind) keyed blob table for every derived
// artifact a stage produces.
package store

import "time"

// SessionRow is the sessions table.
type SessionRow struct {
	ID        string `gorm:"primaryKey"`
	Status    string `gorm:"type:text;not null;index"`
	Settings  []byte `gorm:"type:blob"` // JSON, uncompressed (small)
	Processing []byte `gorm:"type:blob"` // JSON, uncompressed (small, bounded log)
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SessionRow) TableName() string { return "sessions" }

// SessionDataRow is the session_data table: one row per (session_id,
// kind), holding a snappy-compressed JSON payload.
type SessionDataRow struct {
	SessionID string `gorm:"primaryKey;index:idx_session_data,priority:1"`
	Kind      string `gorm:"primaryKey;index:idx_session_data,priority:2"`
	Payload   []byte `gorm:"type:blob"`
	UpdatedAt time.Time
}

func (SessionDataRow) TableName() string { return "session_data" }

// Kind enumerates the recognized session_data keys from spec §6.
const (
	KindAccountsRaw      = "accounts_raw"
	KindCustomersRaw     = "customers_raw"
	KindSubscriptionsRaw = "subscriptions_raw"
	KindInvoicesRaw      = "invoices_raw"
	KindPaymentsRaw      = "payments_raw"
	KindCreditNotesRaw   = "credit_notes_raw"
	KindIdentity         = "identity"
	KindSegments         = "segments"
	KindReconciliation   = "reconciliation"
	KindScore            = "score"
	KindExclusions       = "exclusions"
)
