// Package domain holds the revenue segment: the unit of expected revenue
// the lifecycle builder slices every subscription into.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Segment is one calendar-month-aligned (or ramp-split sub-month) slice of
// a subscription's expected revenue within the reporting period.
type Segment struct {
	SegmentID      string          `json:"segment_id"`
	RsxID          string          `json:"rsx_id"`
	SubscriptionID string          `json:"subscription_id"`
	Period         string          `json:"period"` // YYYY-MM
	SegmentStart   time.Time       `json:"segment_start"`
	SegmentEnd     time.Time       `json:"segment_end"`
	DaysActive     int             `json:"days_active"`
	TotalDays      int             `json:"total_days"`
	MRREffective   decimal.Decimal `json:"mrr_effective"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	IsProrated     bool            `json:"is_prorated"`
}

// Period is the reporting window the builder clamps every subscription to.
type Period struct {
	Start time.Time
	End   time.Time
}
