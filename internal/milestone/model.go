// Package milestone defines the milestone entity, its due-date audit trail,
// and the project date range the timeline derivations run against.
package milestone

import (
	"fmt"
	"time"

	"github.com/sitetrack/schedule-engine/internal/caldate"
)

// Status tracks a milestone's lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Next returns the status the UI cycle advances to. The mapping is explicit;
// any status may still be written directly, transitions are not enforced.
func (s Status) Next() Status {
	switch s {
	case StatusPending:
		return StatusInProgress
	case StatusInProgress:
		return StatusCompleted
	case StatusCompleted:
		return StatusPending
	default:
		return StatusPending
	}
}

// DateHistoryEntry records one due-date change. The trail is append-only.
type DateHistoryEntry struct {
	PreviousDate caldate.Date `json:"previous_date"`
	ChangedAt    time.Time    `json:"changed_at"`
	ChangedBy    string       `json:"changed_by"`
}

// Milestone is a dated checkpoint within a project.
//
// OriginalDueDate is set the first time the due date changes and never
// overwritten after that; it stays zero for a milestone that has never been
// rescheduled. CompletionDate is only stamped by the dedicated complete
// operation, not by plain status writes.
type Milestone struct {
	ID              string             `json:"id"`
	ProjectID       string             `json:"project_id"`
	Title           string             `json:"title"`
	Status          Status             `json:"status"`
	DueDate         caldate.Date       `json:"due_date"`
	OriginalDueDate caldate.Date       `json:"original_due_date"`
	CompletionDate  caldate.Date       `json:"completion_date"`
	DateHistory     []DateHistoryEntry `json:"date_history,omitempty"`
}

// Completed reports whether the milestone is in the completed status.
func (m *Milestone) Completed() bool {
	return m.Status == StatusCompleted
}

// Rescheduled reports whether the due date has ever changed.
func (m *Milestone) Rescheduled() bool {
	return len(m.DateHistory) > 0
}

// Clone returns a deep copy. History slices are never shared between the
// local snapshot and values handed to callers or the backend.
func (m *Milestone) Clone() Milestone {
	out := *m
	if m.DateHistory != nil {
		out.DateHistory = make([]DateHistoryEntry, len(m.DateHistory))
		copy(out.DateHistory, m.DateHistory)
	}
	return out
}

// AppendHistory returns a new history slice with e appended. The input slice
// is left untouched so older snapshots keep their view of the trail.
func AppendHistory(history []DateHistoryEntry, e DateHistoryEntry) []DateHistoryEntry {
	out := make([]DateHistoryEntry, len(history), len(history)+1)
	copy(out, history)
	return append(out, e)
}

// CheckHistory verifies the audit-trail invariant: a non-empty history
// implies OriginalDueDate is set and matches the first entry's PreviousDate.
func (m *Milestone) CheckHistory() error {
	if len(m.DateHistory) == 0 {
		return nil
	}
	if m.OriginalDueDate.IsZero() {
		return fmt.Errorf("milestone %s: date history present but original due date unset", m.ID)
	}
	if first := m.DateHistory[0].PreviousDate; first != m.OriginalDueDate {
		return fmt.Errorf("milestone %s: original due date %s does not match first history entry %s",
			m.ID, m.OriginalDueDate, first)
	}
	return nil
}
