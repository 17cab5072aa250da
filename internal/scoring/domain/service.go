package domain

import (
	"context"

	"github.com/revspine/reconciler/internal/config"
	lifecycledomain "github.com/revspine/reconciler/internal/lifecycle/domain"
	reconciliationdomain "github.com/revspine/reconciler/internal/reconciliation/domain"
)

// Input is everything scoring needs, already produced by the earlier
// stages.
type Input struct {
	TotalAccounts        int
	MatchedLinks         int
	TotalSubscriptions   int
	MatchedSubscriptions int

	Segments    []lifecycledomain.Segment
	Variances   []reconciliationdomain.SegmentVariance
	Allocations []reconciliationdomain.Allocation

	UnknownRsxIDs map[string]bool

	Engine config.EngineConfig
	TopN   int
}

// Service computes the structural integrity score and coverage panel.
type Service interface {
	Compute(ctx context.Context, input Input) (Result, error)
}
