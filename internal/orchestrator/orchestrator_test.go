package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitetrack/schedule-engine/internal/backend"
	"github.com/sitetrack/schedule-engine/internal/caldate"
	serrors "github.com/sitetrack/schedule-engine/internal/errors"
	"github.com/sitetrack/schedule-engine/internal/milestone"
	"github.com/sitetrack/schedule-engine/internal/notify"
	"github.com/sitetrack/schedule-engine/internal/schedule"
)

// countingService wraps the memory service to observe write traffic.
type countingService struct {
	*backend.MemoryService
	updates     int
	rangeWrites int
}

func (c *countingService) Update(ctx context.Context, id string, u backend.Update) error {
	c.updates++
	return c.MemoryService.Update(ctx, id, u)
}

func (c *countingService) UpdateProjectDateRange(ctx context.Context, projectID string, rng milestone.DateRange) error {
	c.rangeWrites++
	return c.MemoryService.UpdateProjectDateRange(ctx, projectID, rng)
}

func day(s string) caldate.Date { return caldate.MustParse(s) }

func fixedClock(s string) func() time.Time {
	d := caldate.MustParse(s)
	return func() time.Time {
		return time.Date(d.Year, d.Month, d.Day, 9, 30, 0, 0, time.UTC)
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *countingService) {
	t.Helper()
	svc := &countingService{MemoryService: backend.NewMemoryService()}
	o := New("p1", svc, zerolog.Nop())
	o.SetClock(fixedClock("2025-01-15"))
	require.NoError(t, o.Load(context.Background()))
	return o, svc
}

func TestCreate(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	m, err := o.Create(ctx, "Foundation pour", day("2025-01-20"), "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, milestone.StatusPending, m.Status)

	ms, rng := o.Snapshot()
	require.Len(t, ms, 1)
	require.NotNil(t, rng, "range auto-created from the first milestone")
	assert.Equal(t, "2025-01-13", rng.StartDate.String())
	assert.Equal(t, "2025-01-27", rng.EndDate.String())
}

func TestCreate_BlankTitle(t *testing.T) {
	o, svc := newTestOrchestrator(t)
	ctx := context.Background()

	_, err := o.Create(ctx, "   ", day("2025-01-20"), "u1")
	assert.True(t, serrors.IsValidation(err))

	_, err = o.Create(ctx, "", day("2025-01-20"), "u1")
	assert.True(t, serrors.IsValidation(err))

	ms, _ := svc.GetByProject(ctx, "p1")
	assert.Empty(t, ms, "validation failures never reach the backend")
}

func TestCreate_MissingDueDate(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	_, err := o.Create(context.Background(), "Framing", caldate.Date{}, "u1")
	assert.True(t, serrors.IsValidation(err))
}

func TestCreate_PersistenceFailureLeavesStateUntouched(t *testing.T) {
	o, svc := newTestOrchestrator(t)
	ctx := context.Background()

	svc.FailNext = serrors.NewAPIError("milestones", 503, "down")
	_, err := o.Create(ctx, "Framing", day("2025-01-20"), "u1")
	require.Error(t, err)
	assert.True(t, serrors.IsPersistence(err))

	ms, rng := o.Snapshot()
	assert.Empty(t, ms)
	assert.Nil(t, rng)
}

func TestCreate_AutoWiden(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	_, err := o.SetDateRange(ctx, day("2025-01-01"), day("2025-01-10"))
	require.NoError(t, err)

	_, err = o.Create(ctx, "Roof inspection", day("2025-01-20"), "u1")
	require.NoError(t, err)

	_, rng := o.Snapshot()
	require.NotNil(t, rng)
	assert.Equal(t, "2025-01-01", rng.StartDate.String(), "start already covered the min")
	assert.Equal(t, "2025-01-27", rng.EndDate.String(), "end padded 7 days past the new max")
}

func TestUpdateStatus_AnyToAny(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	m, _ := o.Create(ctx, "Framing", day("2025-01-20"), "u1")

	require.NoError(t, o.UpdateStatus(ctx, m.ID, milestone.StatusCompleted))
	require.NoError(t, o.UpdateStatus(ctx, m.ID, milestone.StatusPending), "un-complete is allowed")
	require.NoError(t, o.UpdateStatus(ctx, m.ID, milestone.StatusInProgress))

	ms, _ := o.Snapshot()
	assert.Equal(t, milestone.StatusInProgress, ms[0].Status)
}

func TestUpdateStatus_DoesNotStampCompletionDate(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	m, _ := o.Create(ctx, "Framing", day("2025-01-20"), "u1")

	require.NoError(t, o.UpdateStatus(ctx, m.ID, milestone.StatusCompleted))
	ms, _ := o.Snapshot()
	assert.Equal(t, milestone.StatusCompleted, ms[0].Status)
	assert.True(t, ms[0].CompletionDate.IsZero(),
		"a plain status toggle must leave the completion date unset")
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	err := o.UpdateStatus(context.Background(), "any", milestone.Status("done"))
	assert.True(t, serrors.IsValidation(err))
}

func TestUpdateStatus_NotFound(t *testing.T) {
	o, svc := newTestOrchestrator(t)
	err := o.UpdateStatus(context.Background(), "ghost", milestone.StatusCompleted)
	assert.ErrorIs(t, err, serrors.ErrNotFound)
	assert.Equal(t, 0, svc.updates, "stale ids never reach the backend")
}

func TestComplete_StampsToday(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	m, _ := o.Create(ctx, "Framing", day("2025-01-20"), "u1")

	require.NoError(t, o.Complete(ctx, m.ID))
	ms, _ := o.Snapshot()
	assert.Equal(t, milestone.StatusCompleted, ms[0].Status)
	assert.Equal(t, "2025-01-15", ms[0].CompletionDate.String())
}

func TestReschedule_FirstAndSecond(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	m, _ := o.Create(ctx, "Framing", day("2025-01-10"), "u1")

	// A → B
	require.NoError(t, o.Reschedule(ctx, m.ID, day("2025-01-18"), "u2"))
	ms, _ := o.Snapshot()
	assert.Equal(t, "2025-01-18", ms[0].DueDate.String())
	assert.Equal(t, "2025-01-10", ms[0].OriginalDueDate.String())
	require.Len(t, ms[0].DateHistory, 1)
	assert.Equal(t, "2025-01-10", ms[0].DateHistory[0].PreviousDate.String())
	assert.Equal(t, "u2", ms[0].DateHistory[0].ChangedBy)
	assert.False(t, ms[0].DateHistory[0].ChangedAt.IsZero())
	assert.NoError(t, ms[0].CheckHistory())

	// B → C keeps the original and appends.
	require.NoError(t, o.Reschedule(ctx, m.ID, day("2025-01-25"), "u3"))
	ms, _ = o.Snapshot()
	assert.Equal(t, "2025-01-25", ms[0].DueDate.String())
	assert.Equal(t, "2025-01-10", ms[0].OriginalDueDate.String(), "original is never overwritten")
	require.Len(t, ms[0].DateHistory, 2)
	assert.Equal(t, "2025-01-18", ms[0].DateHistory[1].PreviousDate.String())
	assert.NoError(t, ms[0].CheckHistory())
}

func TestReschedule_SameDateIsNoop(t *testing.T) {
	o, svc := newTestOrchestrator(t)
	ctx := context.Background()
	m, _ := o.Create(ctx, "Framing", day("2025-01-10"), "u1")
	before := svc.updates

	require.NoError(t, o.Reschedule(ctx, m.ID, day("2025-01-10"), "u2"))

	ms, _ := o.Snapshot()
	assert.Empty(t, ms[0].DateHistory, "no history entry for a no-op write")
	assert.True(t, ms[0].OriginalDueDate.IsZero())
	assert.Equal(t, before, svc.updates, "no backend write either")
}

func TestReschedule_PersistenceFailureLeavesStateUntouched(t *testing.T) {
	o, svc := newTestOrchestrator(t)
	ctx := context.Background()
	m, _ := o.Create(ctx, "Framing", day("2025-01-10"), "u1")

	svc.FailNext = serrors.NewAPIError("milestones", 500, "boom")
	err := o.Reschedule(ctx, m.ID, day("2025-01-18"), "u2")
	require.Error(t, err)

	ms, _ := o.Snapshot()
	assert.Equal(t, "2025-01-10", ms[0].DueDate.String())
	assert.Empty(t, ms[0].DateHistory)
	assert.True(t, ms[0].OriginalDueDate.IsZero())
}

func TestReschedule_WidensRange(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	_, err := o.SetDateRange(ctx, day("2025-01-01"), day("2025-01-15"))
	require.NoError(t, err)
	m, _ := o.Create(ctx, "Framing", day("2025-01-10"), "u1")

	require.NoError(t, o.Reschedule(ctx, m.ID, day("2025-02-01"), "u2"))
	_, rng := o.Snapshot()
	require.NotNil(t, rng)
	assert.Equal(t, "2025-01-01", rng.StartDate.String())
	assert.Equal(t, "2025-02-08", rng.EndDate.String())
}

func TestDelete(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	m, _ := o.Create(ctx, "Framing", day("2025-01-20"), "u1")
	keep, _ := o.Create(ctx, "Roofing", day("2025-01-25"), "u1")

	require.NoError(t, o.Delete(ctx, m.ID))
	ms, _ := o.Snapshot()
	require.Len(t, ms, 1)
	assert.Equal(t, keep.ID, ms[0].ID)

	assert.ErrorIs(t, o.Delete(ctx, m.ID), serrors.ErrNotFound)
}

func TestSyncDateRange_NoWriteWhenContained(t *testing.T) {
	o, svc := newTestOrchestrator(t)
	ctx := context.Background()
	_, err := o.SetDateRange(ctx, day("2025-01-01"), day("2025-03-01"))
	require.NoError(t, err)
	_, err = o.Create(ctx, "Framing", day("2025-01-20"), "u1")
	require.NoError(t, err)
	writes := svc.rangeWrites

	rng, changed, err := o.SyncDateRange(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "2025-03-01", rng.EndDate.String())
	assert.Equal(t, writes, svc.rangeWrites, "contained range is not rewritten")
}

func TestSetDateRange_Validation(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	_, err := o.SetDateRange(context.Background(), day("2025-03-01"), day("2025-01-01"))
	assert.True(t, serrors.IsValidation(err))
}

func TestScheduleStatus_FromSnapshot(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	_, err := o.SetDateRange(ctx, day("2025-01-01"), day("2025-01-31"))
	require.NoError(t, err)

	m, _ := o.Create(ctx, "Framing", day("2025-01-10"), "u1")
	_, err = o.Create(ctx, "Roofing", day("2025-01-20"), "u1")
	require.NoError(t, err)

	got := o.ScheduleStatus(day("2025-01-15"))
	assert.Equal(t, schedule.StatusBehind, got.Status)

	require.NoError(t, o.Complete(ctx, m.ID))
	got = o.ScheduleStatus(day("2025-01-15"))
	assert.Equal(t, schedule.Result{Status: schedule.StatusOnTrack, Days: 0}, got)
}

func TestSnapshot_DoesNotAliasLocalState(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()
	m, _ := o.Create(ctx, "Framing", day("2025-01-10"), "u1")
	require.NoError(t, o.Reschedule(ctx, m.ID, day("2025-01-18"), "u2"))

	ms, rng := o.Snapshot()
	ms[0].Title = "tampered"
	ms[0].DateHistory[0].ChangedBy = "tampered"
	if rng != nil {
		rng.EndDate = day("1999-01-01")
	}

	again, rngAgain := o.Snapshot()
	assert.Equal(t, "Framing", again[0].Title)
	assert.Equal(t, "u2", again[0].DateHistory[0].ChangedBy)
	if rngAgain != nil {
		assert.NotEqual(t, "1999-01-01", rngAgain.EndDate.String())
	}
}

func TestRegistry(t *testing.T) {
	svc := backend.NewMemoryService()
	r := NewRegistry(svc, zerolog.Nop())
	r.SetClock(fixedClock("2025-01-15"))

	a := r.ForProject("p1")
	b := r.ForProject("p1")
	c := r.ForProject("p2")
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, "p1", a.ProjectID())
}

type fakeSlackAPI struct {
	channels []string
}

func (f *fakeSlackAPI) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	f.channels = append(f.channels, channelID)
	return channelID, "123.456", nil
}

func TestNotifierFiresOnStatusFlip(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	api := &fakeSlackAPI{}
	o.SetNotifier(notify.New(api, "#site-alerts", zerolog.Nop()))
	ctx := context.Background()

	// First mutation establishes the baseline; there is no previous
	// classification to flip from.
	_, err := o.Create(ctx, "Foundation pour", day("2025-01-20"), "u1")
	require.NoError(t, err)
	assert.Empty(t, api.channels)

	// A past-due pending milestone flips the project to behind.
	m2, err := o.Create(ctx, "Permit filing", day("2025-01-10"), "u1")
	require.NoError(t, err)
	require.Len(t, api.channels, 1)
	assert.Equal(t, "#site-alerts", api.channels[0])

	// Same classification after the mutation, no new message.
	require.NoError(t, o.UpdateStatus(ctx, m2.ID, milestone.StatusInProgress))
	assert.Len(t, api.channels, 1)

	// Completing the late milestone flips back to on track.
	require.NoError(t, o.Complete(ctx, m2.ID))
	assert.Len(t, api.channels, 2)
}
