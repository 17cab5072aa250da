package domain

import (
	"context"
	"errors"

	ingestiondomain "github.com/revspine/reconciler/internal/ingestion/domain"
)

// Service resolves the identity spine and arbitrates the needs_review
// queue. Resolve is a pure function of (accounts, customers, decision
// log); Decide/Undo/Reset only mutate the log, never the spine directly —
// the spine is always recomputed by replaying Resolve.
type Service interface {
	Resolve(ctx context.Context, accounts []ingestiondomain.Account, customers []ingestiondomain.Customer) (Spine, error)
	Decide(ctx context.Context, matchID string, decision Decision) (Spine, error)
	Undo(ctx context.Context) (Spine, error)
	Reset(ctx context.Context) (Spine, error)
	Get(ctx context.Context) (Spine, error)
}

var (
	// ErrNoDecisions is returned by Undo when the decision log is empty.
	ErrNoDecisions = errors.New("no_decisions")
	// ErrUnknownMatch is returned by Decide when match_id isn't in the
	// current needs_review queue.
	ErrUnknownMatch = errors.New("unknown_match_id")
	// ErrReviewPending is returned by analyze() when the needs_review
	// queue is non-empty and the caller did not bypass review.
	ErrReviewPending = errors.New("identity_review_required")
)
