package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	exclusiondomain "github.com/revspine/reconciler/internal/exclusion/domain"
	ingestiondomain "github.com/revspine/reconciler/internal/ingestion/domain"
	"github.com/revspine/reconciler/internal/lifecycle/domain"
	"github.com/revspine/reconciler/internal/money"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Service implements domain.Service: the lifecycle builder that expands
// every subscription into calendar-month-tiled revenue segments, applying
// day-count proration and ramp-schedule splitting.
type Service struct {
	log *zap.Logger
}

func NewService(log *zap.Logger) domain.Service {
	return &Service{log: log.Named("lifecycle.service")}
}

func (s *Service) BuildSegments(ctx context.Context, subs []domain.SubscriptionContext, period domain.Period) (domain.Result, error) {
	_ = ctx
	var result domain.Result

	for _, sc := range subs {
		sub := sc.Subscription

		start, err := time.Parse(dateLayout, sub.StartDate)
		if err != nil {
			result.Exclusions.Add(exclusiondomain.RecordSubscription, sub.SubscriptionID, exclusiondomain.ReasonUnsupportedStructure,
				"unparseable start_date", time.Now().UTC())
			continue
		}
		end, err := time.Parse(dateLayout, sub.EndDate)
		if err != nil {
			result.Exclusions.Add(exclusiondomain.RecordSubscription, sub.SubscriptionID, exclusiondomain.ReasonUnsupportedStructure,
				"unparseable end_date", time.Now().UTC())
			continue
		}
		if end.Before(start) {
			result.Exclusions.Add(exclusiondomain.RecordSubscription, sub.SubscriptionID, exclusiondomain.ReasonUnsupportedStructure,
				"end_date before start_date", time.Now().UTC())
			continue
		}
		if sub.MRR.IsNegative() {
			result.Exclusions.Add(exclusiondomain.RecordSubscription, sub.SubscriptionID, exclusiondomain.ReasonUnsupportedStructure,
				"negative mrr", time.Now().UTC())
			continue
		}

		clampStart := maxTime(start, period.Start)
		clampEnd := minTime(end, period.End)
		if clampEnd.Before(clampStart) {
			// Zero-day intersection: silently skipped, not an error.
			continue
		}

		ramp, err := normalizeRamp(sub)
		if err != nil {
			result.Exclusions.Add(exclusiondomain.RecordSubscription, sub.SubscriptionID, exclusiondomain.ReasonUnsupportedStructure,
				err.Error(), time.Now().UTC())
			continue
		}

		segments := buildSubscriptionSegments(sc, clampStart, clampEnd, ramp)
		result.Segments = append(result.Segments, segments...)
	}

	sort.Slice(result.Segments, func(i, j int) bool {
		if result.Segments[i].SubscriptionID != result.Segments[j].SubscriptionID {
			return result.Segments[i].SubscriptionID < result.Segments[j].SubscriptionID
		}
		return result.Segments[i].SegmentStart.Before(result.Segments[j].SegmentStart)
	})

	s.log.Debug("lifecycle segments built",
		zap.Int("segments", len(result.Segments)),
		zap.Int("excluded_subscriptions", len(result.Exclusions.Entries())),
	)

	return result, nil
}

// rampStep is a parsed, time-sortable ramp schedule override.
type rampStep struct {
	effectiveDate time.Time
	mrr           decimal.Decimal
}

func normalizeRamp(sub ingestiondomain.Subscription) ([]rampStep, error) {
	steps := make([]rampStep, 0, len(sub.RampSchedule))
	for _, raw := range sub.RampSchedule {
		d, err := time.Parse(dateLayout, raw.EffectiveDate)
		if err != nil {
			return nil, fmt.Errorf("unparseable ramp_schedule effective_date")
		}
		steps = append(steps, rampStep{effectiveDate: d, mrr: raw.MRR})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].effectiveDate.Before(steps[j].effectiveDate) })
	return steps, nil
}

// mrrEffectiveAt returns the latest ramp step whose effective_date <= at,
// falling back to the subscription base mrr.
func mrrEffectiveAt(base decimal.Decimal, ramp []rampStep, at time.Time) decimal.Decimal {
	effective := base
	for _, step := range ramp {
		if !step.effectiveDate.After(at) {
			effective = step.mrr
		} else {
			break
		}
	}
	return effective
}

func buildSubscriptionSegments(sc domain.SubscriptionContext, clampStart, clampEnd time.Time, ramp []rampStep) []domain.Segment {
	sub := sc.Subscription
	var segments []domain.Segment

	cursor := clampStart
	for !cursor.After(clampEnd) {
		monthFirst := time.Date(cursor.Year(), cursor.Month(), 1, 0, 0, 0, 0, time.UTC)
		monthLast := monthFirst.AddDate(0, 1, -1)
		totalDays := monthLast.Day()

		segStart := maxTime(monthFirst, clampStart)
		segEnd := minTime(monthLast, clampEnd)
		periodLabel := fmt.Sprintf("%04d-%02d", cursor.Year(), int(cursor.Month()))

		boundaries := []time.Time{segStart}
		for _, step := range ramp {
			if step.effectiveDate.After(segStart) && !step.effectiveDate.After(segEnd) {
				boundaries = append(boundaries, step.effectiveDate)
			}
		}
		sort.Slice(boundaries, func(i, j int) bool { return boundaries[i].Before(boundaries[j]) })

		for i, subStart := range boundaries {
			var subEnd time.Time
			if i+1 < len(boundaries) {
				subEnd = boundaries[i+1].AddDate(0, 0, -1)
			} else {
				subEnd = segEnd
			}

			daysActive := int(subEnd.Sub(subStart).Hours()/24) + 1
			mrrEffective := mrrEffectiveAt(sub.MRR, ramp, subStart)
			expected := money.Prorate(mrrEffective, daysActive, totalDays)

			segments = append(segments, domain.Segment{
				SegmentID:      fmt.Sprintf("%s:%s:%d", sub.SubscriptionID, periodLabel, i),
				RsxID:          sc.RsxID,
				SubscriptionID: sub.SubscriptionID,
				Period:         periodLabel,
				SegmentStart:   subStart,
				SegmentEnd:     subEnd,
				DaysActive:     daysActive,
				TotalDays:      totalDays,
				MRREffective:   mrrEffective,
				ExpectedAmount: expected,
				IsProrated:     daysActive < totalDays,
			})
		}

		cursor = monthFirst.AddDate(0, 1, 0)
	}

	return segments
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
