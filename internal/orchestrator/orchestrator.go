// Package orchestrator owns the canonical milestone list for a project.
//
// It is the only component that mutates the list or talks to the persistence
// backend; everything downstream (schedule status, progress, timeline
// positions) is a pure function over the snapshot it hands out. Remote
// writes land first: local state changes only after the backend accepted the
// write, so a failed call leaves the snapshot exactly as it was.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sitetrack/schedule-engine/internal/backend"
	"github.com/sitetrack/schedule-engine/internal/caldate"
	serrors "github.com/sitetrack/schedule-engine/internal/errors"
	"github.com/sitetrack/schedule-engine/internal/metrics"
	"github.com/sitetrack/schedule-engine/internal/milestone"
	"github.com/sitetrack/schedule-engine/internal/notify"
	"github.com/sitetrack/schedule-engine/internal/schedule"
)

// Orchestrator coordinates mutations for a single project.
type Orchestrator struct {
	projectID string
	svc       backend.Service
	logger    zerolog.Logger

	metrics  *metrics.Metrics
	notifier *notify.Notifier
	clock    func() time.Time

	mu         sync.Mutex
	milestones []milestone.Milestone
	dateRange  *milestone.DateRange
	loaded     bool
	lastResult *schedule.Result
}

// New creates an orchestrator for one project.
func New(projectID string, svc backend.Service, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		projectID: projectID,
		svc:       svc,
		logger:    logger.With().Str("component", "orchestrator").Str("project", projectID).Logger(),
		clock:     time.Now,
	}
}

// SetMetrics attaches a metrics collector.
func (o *Orchestrator) SetMetrics(m *metrics.Metrics) { o.metrics = m }

// SetNotifier attaches the schedule-transition notifier.
func (o *Orchestrator) SetNotifier(n *notify.Notifier) { o.notifier = n }

// SetClock overrides the wall clock (for testing).
func (o *Orchestrator) SetClock(clock func() time.Time) { o.clock = clock }

// ProjectID returns the owning project id.
func (o *Orchestrator) ProjectID() string { return o.projectID }

// Load replaces the local snapshot with the backend's current state.
func (o *Orchestrator) Load(ctx context.Context) error {
	ms, err := o.svc.GetByProject(ctx, o.projectID)
	if err != nil {
		o.recordFailure("load", err)
		return err
	}
	rng, err := o.svc.GetProjectDateRange(ctx, o.projectID)
	if err != nil {
		o.recordFailure("load", err)
		return err
	}

	o.mu.Lock()
	o.milestones = ms
	o.dateRange = rng
	o.loaded = true
	o.mu.Unlock()

	o.logger.Debug().Int("milestones", len(ms)).Bool("has_range", rng != nil).Msg("snapshot loaded")
	return nil
}

func (o *Orchestrator) ensureLoaded(ctx context.Context) error {
	o.mu.Lock()
	loaded := o.loaded
	o.mu.Unlock()
	if loaded {
		return nil
	}
	return o.Load(ctx)
}

// Snapshot returns deep copies of the milestone list and range. Callers can
// feed these straight into the schedule calculators on every render.
func (o *Orchestrator) Snapshot() ([]milestone.Milestone, *milestone.DateRange) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() ([]milestone.Milestone, *milestone.DateRange) {
	ms := make([]milestone.Milestone, len(o.milestones))
	for i := range o.milestones {
		ms[i] = o.milestones[i].Clone()
	}
	var rng *milestone.DateRange
	if o.dateRange != nil {
		r := *o.dateRange
		rng = &r
	}
	return ms, rng
}

// Create validates, persists, and locally appends a new pending milestone,
// then widens the project range if the due date falls outside it.
func (o *Orchestrator) Create(ctx context.Context, title string, dueDate caldate.Date, userID string) (milestone.Milestone, error) {
	if strings.TrimSpace(title) == "" {
		o.recordMutation("create", "invalid")
		return milestone.Milestone{}, serrors.NewValidationError("title", "must not be blank")
	}
	if dueDate.IsZero() {
		o.recordMutation("create", "invalid")
		return milestone.Milestone{}, serrors.NewValidationError("due_date", "is required")
	}
	if err := o.ensureLoaded(ctx); err != nil {
		return milestone.Milestone{}, err
	}

	created, err := o.svc.Create(ctx, backend.CreateInput{
		ProjectID: o.projectID,
		Title:     title,
		DueDate:   dueDate,
		Status:    milestone.StatusPending,
	}, userID)
	if err != nil {
		o.recordFailure("create", err)
		return milestone.Milestone{}, err
	}

	o.mu.Lock()
	o.milestones = append(o.milestones, created)
	o.mu.Unlock()
	o.recordMutation("create", "ok")
	o.logger.Info().Str("milestone", created.ID).Str("due", dueDate.String()).Msg("milestone created")

	if _, _, err := o.SyncDateRange(ctx); err != nil {
		// The milestone itself is persisted; a failed widen is recoverable
		// on the next mutation.
		o.logger.Warn().Err(err).Msg("date range sync failed after create")
	}

	o.afterMutation()
	return created.Clone(), nil
}

// UpdateStatus writes a bare status change. Any status may move to any
// other; transition legality is not enforced.
//
// This path deliberately leaves CompletionDate untouched even when the new
// status is completed: only the dedicated Complete operation stamps it.
// The asymmetry mirrors the shipped product behavior; confirm with product
// before changing it.
func (o *Orchestrator) UpdateStatus(ctx context.Context, id string, newStatus milestone.Status) error {
	if !newStatus.Valid() {
		o.recordMutation("update_status", "invalid")
		return serrors.NewValidationError("status", "unknown status "+string(newStatus))
	}
	if err := o.ensureLoaded(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	idx := o.indexLocked(id)
	o.mu.Unlock()
	if idx < 0 {
		return o.notFound("update_status", id)
	}

	if err := o.svc.Update(ctx, id, backend.Update{Status: &newStatus}); err != nil {
		o.recordFailure("update_status", err)
		return err
	}

	o.mu.Lock()
	if idx = o.indexLocked(id); idx >= 0 {
		o.milestones[idx].Status = newStatus
	}
	o.mu.Unlock()
	o.recordMutation("update_status", "ok")
	o.afterMutation()
	return nil
}

// Complete marks a milestone completed and stamps its completion date with
// the current calendar day.
func (o *Orchestrator) Complete(ctx context.Context, id string) error {
	if err := o.ensureLoaded(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	idx := o.indexLocked(id)
	o.mu.Unlock()
	if idx < 0 {
		return o.notFound("complete", id)
	}

	status := milestone.StatusCompleted
	today := caldate.FromTime(o.clock())
	err := o.svc.Update(ctx, id, backend.Update{Status: &status, CompletionDate: &today})
	if err != nil {
		o.recordFailure("complete", err)
		return err
	}

	o.mu.Lock()
	if idx = o.indexLocked(id); idx >= 0 {
		o.milestones[idx].Status = status
		o.milestones[idx].CompletionDate = today
	}
	o.mu.Unlock()
	o.recordMutation("complete", "ok")
	o.logger.Info().Str("milestone", id).Str("completed_on", today.String()).Msg("milestone completed")
	o.afterMutation()
	return nil
}

// Reschedule moves a milestone's due date, recording the replaced date in
// the audit trail. Writing the current due date back is a no-op: no history
// entry, no backend call.
func (o *Orchestrator) Reschedule(ctx context.Context, id string, newDue caldate.Date, userID string) error {
	if newDue.IsZero() {
		o.recordMutation("reschedule", "invalid")
		return serrors.NewValidationError("due_date", "is required")
	}
	if err := o.ensureLoaded(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	idx := o.indexLocked(id)
	if idx < 0 {
		o.mu.Unlock()
		return o.notFound("reschedule", id)
	}
	current := o.milestones[idx].Clone()
	o.mu.Unlock()

	if current.DueDate == newDue {
		o.logger.Debug().Str("milestone", id).Msg("reschedule to same date ignored")
		return nil
	}

	// First reschedule captures the initial due date; later ones keep it.
	original := current.OriginalDueDate
	if original.IsZero() {
		original = current.DueDate
	}
	history := milestone.AppendHistory(current.DateHistory, milestone.DateHistoryEntry{
		PreviousDate: current.DueDate,
		ChangedAt:    o.clock().UTC(),
		ChangedBy:    userID,
	})

	// One logical write: date, original, and trail land together.
	err := o.svc.Update(ctx, id, backend.Update{
		DueDate:         &newDue,
		OriginalDueDate: &original,
		DateHistory:     history,
	})
	if err != nil {
		o.recordFailure("reschedule", err)
		return err
	}

	o.mu.Lock()
	if idx = o.indexLocked(id); idx >= 0 {
		o.milestones[idx].DueDate = newDue
		o.milestones[idx].OriginalDueDate = original
		o.milestones[idx].DateHistory = history
	}
	o.mu.Unlock()
	o.recordMutation("reschedule", "ok")
	o.logger.Info().
		Str("milestone", id).
		Str("from", current.DueDate.String()).
		Str("to", newDue.String()).
		Str("by", userID).
		Msg("milestone rescheduled")

	if _, _, err := o.SyncDateRange(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("date range sync failed after reschedule")
	}

	o.afterMutation()
	return nil
}

// Delete removes a milestone from the backend and the local list. The
// entity vanishing from subsequent snapshots is the signal for callers to
// drop any stale selection.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	if err := o.ensureLoaded(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	idx := o.indexLocked(id)
	o.mu.Unlock()
	if idx < 0 {
		return o.notFound("delete", id)
	}

	if err := o.svc.Delete(ctx, id); err != nil {
		o.recordFailure("delete", err)
		return err
	}

	o.mu.Lock()
	if idx = o.indexLocked(id); idx >= 0 {
		o.milestones = append(o.milestones[:idx], o.milestones[idx+1:]...)
	}
	o.mu.Unlock()
	o.recordMutation("delete", "ok")
	o.logger.Info().Str("milestone", id).Msg("milestone deleted")
	o.afterMutation()
	return nil
}

// SyncDateRange widens the project range to cover all due dates, persisting
// only when something actually changed. Returns the effective range and
// whether it was widened.
func (o *Orchestrator) SyncDateRange(ctx context.Context) (milestone.DateRange, bool, error) {
	o.mu.Lock()
	ms, current := o.snapshotLocked()
	o.mu.Unlock()

	next, changed := milestone.SyncRange(ms, current)
	if !changed {
		return next, false, nil
	}

	if err := o.svc.UpdateProjectDateRange(ctx, o.projectID, next); err != nil {
		o.recordFailure("sync_range", err)
		return milestone.DateRange{}, false, err
	}

	o.mu.Lock()
	r := next
	o.dateRange = &r
	o.mu.Unlock()
	o.recordMutation("sync_range", "ok")
	o.logger.Info().
		Str("start", next.StartDate.String()).
		Str("end", next.EndDate.String()).
		Msg("project date range widened")
	return next, true, nil
}

// SetDateRange stores an explicitly configured range (the setup flow).
func (o *Orchestrator) SetDateRange(ctx context.Context, start, end caldate.Date) (milestone.DateRange, error) {
	rng, err := milestone.NewRange(start, end)
	if err != nil {
		o.recordMutation("set_range", "invalid")
		return milestone.DateRange{}, err
	}
	if err := o.svc.UpdateProjectDateRange(ctx, o.projectID, rng); err != nil {
		o.recordFailure("set_range", err)
		return milestone.DateRange{}, err
	}
	o.mu.Lock()
	r := rng
	o.dateRange = &r
	o.mu.Unlock()
	o.recordMutation("set_range", "ok")
	return rng, nil
}

// ScheduleStatus derives the current classification from the snapshot.
func (o *Orchestrator) ScheduleStatus(today caldate.Date) schedule.Result {
	ms, rng := o.Snapshot()
	return schedule.Calculate(ms, rng, today)
}

// afterMutation recomputes the derived status and fires the notifier and
// gauge when the classification flipped.
func (o *Orchestrator) afterMutation() {
	today := caldate.FromTime(o.clock())
	ms, rng := o.Snapshot()
	result := schedule.Calculate(ms, rng, today)

	o.mu.Lock()
	prev := o.lastResult
	r := result
	o.lastResult = &r
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.SetScheduleStatus(o.projectID, string(result.Status))
		o.metrics.SetMilestonesTracked(o.projectID, len(ms))
	}
	if prev != nil && prev.Status != result.Status {
		o.notifier.ScheduleChanged(o.projectID, *prev, result)
	}
}

func (o *Orchestrator) indexLocked(id string) int {
	for i := range o.milestones {
		if o.milestones[i].ID == id {
			return i
		}
	}
	return -1
}

// notFound surfaces a stale-id warning; the operation is otherwise a no-op.
func (o *Orchestrator) notFound(op, id string) error {
	o.logger.Warn().Str("op", op).Str("milestone", id).Msg("milestone not in local list, skipping")
	o.recordMutation(op, "not_found")
	return serrors.ErrNotFound
}

func (o *Orchestrator) recordMutation(op, result string) {
	if o.metrics != nil {
		o.metrics.RecordMutation(op, result)
	}
}

func (o *Orchestrator) recordFailure(op string, err error) {
	o.recordMutation(op, "error")
	if o.metrics == nil {
		return
	}
	errType := "persistence"
	switch {
	case serrors.IsNotFound(err):
		errType = "not_found"
	case serrors.IsValidation(err):
		errType = "validation"
	}
	o.metrics.RecordBackendError(op, errType)
}
