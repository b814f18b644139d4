// Package schedule derives project health from a milestone snapshot: the
// ahead/behind/on-track classification, the two progress percentages, and
// normalized timeline positions.
//
// Every function here is pure and total. "Today" is always an explicit
// parameter; nothing in this package reads the wall clock, so the same
// inputs produce the same outputs on every render.
package schedule

import (
	"math"

	"github.com/sitetrack/schedule-engine/internal/caldate"
	"github.com/sitetrack/schedule-engine/internal/milestone"
)

// Status classifies project health relative to milestone due dates.
type Status string

const (
	StatusOnTrack   Status = "on_track"
	StatusAhead     Status = "ahead"
	StatusBehind    Status = "behind"
	StatusCompleted Status = "completed"
)

// Result pairs the classification with a day-offset magnitude. Days is
// always reported as an absolute value; Status carries the direction.
type Result struct {
	Status Status `json:"status"`
	Days   int    `json:"days"`
}

// Calculate derives the schedule status for a milestone snapshot.
//
// The day magnitude is a count-weighted heuristic: the share of milestones
// that are late (or finished early) scaled by the project duration.
// Milestones are assumed equally weighted; this is a deliberate proxy for
// schedule adherence, not an earned-value calculation.
func Calculate(ms []milestone.Milestone, rng *milestone.DateRange, today caldate.Date) Result {
	if len(ms) > 0 && allCompleted(ms) {
		return Result{Status: StatusCompleted, Days: 0}
	}
	if rng == nil || len(ms) == 0 {
		// Not an error: a project without a configured timeline or without
		// milestones has nothing to be behind on.
		return Result{Status: StatusOnTrack, Days: 0}
	}

	duration := rng.DurationDays()

	var latePending, futureCompleted int
	for i := range ms {
		m := &ms[i]
		if m.DueDate.Before(today) {
			if !m.Completed() {
				latePending++
			}
		} else if m.Completed() {
			futureCompleted++
		}
	}

	if latePending > 0 {
		return Result{
			Status: StatusBehind,
			Days:   proportionDays(latePending, len(ms), duration),
		}
	}
	if futureCompleted > 0 {
		return Result{
			Status: StatusAhead,
			Days:   proportionDays(futureCompleted, len(ms), duration),
		}
	}
	return Result{Status: StatusOnTrack, Days: 0}
}

// CompletionPercent returns the completed-milestone share, rounded to a
// whole percent. Zero for an empty list.
func CompletionPercent(ms []milestone.Milestone) int {
	if len(ms) == 0 {
		return 0
	}
	completed := 0
	for i := range ms {
		if ms[i].Completed() {
			completed++
		}
	}
	return roundPct(float64(completed) / float64(len(ms)) * 100)
}

// TimeElapsedPercent returns how far through its calendar window the project
// is, independent of milestone completion. Falls back to the inferred range
// when none is configured; zero when no range can be resolved at all.
func TimeElapsedPercent(ms []milestone.Milestone, rng *milestone.DateRange, today caldate.Date) int {
	effective, ok := milestone.EffectiveRange(ms, rng)
	if !ok {
		return 0
	}
	daysTotal := effective.DurationDays()
	if daysTotal < 1 {
		daysTotal = 1 // single-day project, avoid dividing by zero
	}
	elapsed := caldate.DaysBetween(effective.StartDate, today)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > daysTotal {
		elapsed = daysTotal
	}
	return roundPct(float64(elapsed) / float64(daysTotal) * 100)
}

// TimelinePosition projects a date onto a 0-100 position within the range.
// The single implementation used for milestone markers and the today marker;
// returns 0 for a degenerate range.
func TimelinePosition(d, rangeStart, rangeEnd caldate.Date) float64 {
	span := caldate.DaysBetween(rangeStart, rangeEnd)
	if span <= 0 {
		return 0
	}
	pos := float64(caldate.DaysBetween(rangeStart, d)) / float64(span) * 100
	if pos < 0 {
		return 0
	}
	if pos > 100 {
		return 100
	}
	return pos
}

func allCompleted(ms []milestone.Milestone) bool {
	for i := range ms {
		if !ms[i].Completed() {
			return false
		}
	}
	return true
}

func proportionDays(count, total, durationDays int) int {
	days := int(math.Round(float64(count) / float64(total) * float64(durationDays)))
	if days < 0 {
		days = -days
	}
	return days
}

func roundPct(v float64) int {
	return int(math.Round(v))
}
