package domain

import (
	"context"
	"errors"

	identitydomain "github.com/revspine/reconciler/internal/identity/domain"
	ingestiondomain "github.com/revspine/reconciler/internal/ingestion/domain"
	lifecycledomain "github.com/revspine/reconciler/internal/lifecycle/domain"
	reconciliationdomain "github.com/revspine/reconciler/internal/reconciliation/domain"
	scoringdomain "github.com/revspine/reconciler/internal/scoring/domain"
)

var (
	ErrSessionNotFound  = errors.New("session_not_found")
	ErrUnknownSetting   = errors.New("unknown_setting")
	ErrInvalidPeriod    = errors.New("invalid_period")
	ErrAnalysisRunning  = errors.New("analysis_in_progress")
)

// IdentitySummary is the coarse counts validate() reports alongside field
// errors, so the caller knows whether operator arbitration is needed
// before analyze() can proceed.
type IdentitySummary struct {
	AutoMatched int `json:"auto_matched"`
	NeedsReview int `json:"needs_review"`
	Unmatched   int `json:"unmatched"`
}

// ValidateResult is the response to the validate() operation.
type ValidateResult struct {
	Valid            bool                          `json:"valid"`
	Errors           []ingestiondomain.FieldError  `json:"errors"`
	Warnings         []ingestiondomain.FieldError  `json:"warnings"`
	IdentitySummary  IdentitySummary               `json:"identity_summary"`
}

// DashboardResult is the response to the dashboard() operation.
type DashboardResult struct {
	Status  Status               `json:"status"`
	Scoring scoringdomain.Result `json:"scoring"`
}

// AccountFilter narrows accounts() results.
type AccountFilter struct {
	Status reconciliationdomain.VarianceStatus
}

// AccountRow is one row of the accounts() listing.
type AccountRow struct {
	RsxID               string                               `json:"rsx_id"`
	AccountID           string                               `json:"account_id"`
	CustomerID          string                               `json:"customer_id,omitempty"`
	PrimaryVarianceType reconciliationdomain.VarianceStatus `json:"primary_variance_type"`
	TotalVariance       string                               `json:"total_variance"`
}

// LineageResult is the per-account audit trail lineage() returns.
type LineageResult struct {
	RsxID       string                                `json:"rsx_id"`
	Segments    []lifecycledomain.Segment              `json:"segments"`
	Allocations []reconciliationdomain.Allocation      `json:"allocations"`
	Variances   []reconciliationdomain.SegmentVariance `json:"variances"`
}

// Manager is the session-layer façade every operation in spec §6 maps
// onto. One Manager instance is process-wide; it dispatches to
// per-session state internally.
type Manager interface {
	Create(ctx context.Context, settings Settings) (Session, error)
	Validate(ctx context.Context, sessionID string, tables ingestiondomain.RawTables) (ValidateResult, error)

	IdentityGet(ctx context.Context, sessionID string) (identitydomain.Spine, error)
	IdentityDecide(ctx context.Context, sessionID, matchID string, decision identitydomain.Decision) (identitydomain.Spine, error)
	IdentityUndo(ctx context.Context, sessionID string) (identitydomain.Spine, error)
	IdentityReset(ctx context.Context, sessionID string) (identitydomain.Spine, error)

	Analyze(ctx context.Context, sessionID string, bypassReview bool) error
	Status(ctx context.Context, sessionID string) (ProcessingStatus, Status, error)
	Cancel(ctx context.Context, sessionID string) error

	Dashboard(ctx context.Context, sessionID string) (DashboardResult, error)
	Accounts(ctx context.Context, sessionID string, filter AccountFilter) ([]AccountRow, error)
	Lineage(ctx context.Context, sessionID, rsxID string) (LineageResult, error)
	Exclusions(ctx context.Context, sessionID string, reasonCode string) ([]ExclusionRow, error)
}

// ExclusionRow is one entry in the exclusions() listing response.
type ExclusionRow struct {
	RecordType  string `json:"record_type"`
	RecordID    string `json:"record_id"`
	ReasonCode  string `json:"reason_code"`
	Description string `json:"description"`
}
