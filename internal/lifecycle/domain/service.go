package domain

import (
	"context"

	exclusiondomain "github.com/revspine/reconciler/internal/exclusion/domain"
	ingestiondomain "github.com/revspine/reconciler/internal/ingestion/domain"
)

// SubscriptionContext pairs a subscription with the rsx_id its account
// resolved to (or "" when the account is unmatched — segments still get
// built so unknown exposure can be counted, per seed scenario S6).
type SubscriptionContext struct {
	Subscription ingestiondomain.Subscription
	RsxID        string
}

// Result is the output of BuildSegments: the tiled segment set plus any
// subscriptions the builder refused to expand.
type Result struct {
	Segments   []Segment
	Exclusions exclusiondomain.Log
}

// Service expands subscriptions into calendar-aligned revenue segments.
type Service interface {
	BuildSegments(ctx context.Context, subscriptions []SubscriptionContext, period Period) (Result, error)
}
