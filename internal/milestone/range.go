package milestone

import (
	"github.com/sitetrack/schedule-engine/internal/caldate"
	serrors "github.com/sitetrack/schedule-engine/internal/errors"
)

// RangePadDays is the slack added past the extreme milestone due dates when
// a range is inferred or auto-widened.
const RangePadDays = 7

// DateRange is the project's declared start/end calendar window. A project
// that has not had its timeline configured has no range at all; callers pass
// nil and the derivations fall back to InferRange.
type DateRange struct {
	StartDate caldate.Date `json:"start_date"`
	EndDate   caldate.Date `json:"end_date"`
}

// NewRange validates and builds a range. The end must not precede the start;
// this is the only place the ordering is enforced.
func NewRange(start, end caldate.Date) (DateRange, error) {
	if start.IsZero() || end.IsZero() {
		return DateRange{}, serrors.NewValidationError("date_range", "start and end dates are required")
	}
	if end.Before(start) {
		return DateRange{}, serrors.NewValidationError("end_date", "must not precede start date")
	}
	return DateRange{StartDate: start, EndDate: end}, nil
}

// DurationDays returns the span of the range in days.
func (r DateRange) DurationDays() int {
	return caldate.DaysBetween(r.StartDate, r.EndDate)
}

// Contains reports whether d falls inside the range, bounds included.
func (r DateRange) Contains(d caldate.Date) bool {
	return !d.Before(r.StartDate) && !d.After(r.EndDate)
}

// dueBounds returns the earliest and latest due dates in ms.
func dueBounds(ms []Milestone) (min, max caldate.Date, ok bool) {
	for i := range ms {
		d := ms[i].DueDate
		if d.IsZero() {
			continue
		}
		if !ok {
			min, max, ok = d, d, true
			continue
		}
		min = caldate.Min(min, d)
		max = caldate.Max(max, d)
	}
	return min, max, ok
}

// InferRange derives a fallback range from the milestone due dates, padded
// RangePadDays on each side. ok is false when no milestone carries a date.
func InferRange(ms []Milestone) (DateRange, bool) {
	min, max, ok := dueBounds(ms)
	if !ok {
		return DateRange{}, false
	}
	return DateRange{
		StartDate: min.AddDays(-RangePadDays),
		EndDate:   max.AddDays(RangePadDays),
	}, true
}

// EffectiveRange resolves the range used by time-based derivations: the
// configured range when present, otherwise the inferred fallback.
func EffectiveRange(ms []Milestone, configured *DateRange) (DateRange, bool) {
	if configured != nil {
		return *configured, true
	}
	return InferRange(ms)
}

// SyncRange computes the auto-widen result after a create or reschedule.
// The range only ever grows, and only on the side that no longer covers the
// milestone extremes; a range that already contains every due date is
// returned unchanged with changed=false.
func SyncRange(ms []Milestone, current *DateRange) (DateRange, bool) {
	min, max, ok := dueBounds(ms)
	if !ok {
		if current == nil {
			return DateRange{}, false
		}
		return *current, false
	}
	if current == nil {
		return DateRange{
			StartDate: min.AddDays(-RangePadDays),
			EndDate:   max.AddDays(RangePadDays),
		}, true
	}
	if current.Contains(min) && current.Contains(max) {
		return *current, false
	}
	out := *current
	if min.Before(out.StartDate) {
		out.StartDate = min.AddDays(-RangePadDays)
	}
	if max.After(out.EndDate) {
		out.EndDate = max.AddDays(RangePadDays)
	}
	return out, true
}
