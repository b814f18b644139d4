package notify

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitetrack/schedule-engine/internal/schedule"
)

type fakeSlack struct {
	channels []string
	err      error
}

func (f *fakeSlack) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	f.channels = append(f.channels, channelID)
	return channelID, "123.456", f.err
}

func TestScheduleChanged_Posts(t *testing.T) {
	api := &fakeSlack{}
	n := New(api, "#site-alerts", zerolog.Nop())

	n.ScheduleChanged("riverside-tower",
		schedule.Result{Status: schedule.StatusOnTrack},
		schedule.Result{Status: schedule.StatusBehind, Days: 12})

	require.Len(t, api.channels, 1)
	assert.Equal(t, "#site-alerts", api.channels[0])
}

func TestScheduleChanged_NoopWithoutAPI(t *testing.T) {
	var n *Notifier
	n.ScheduleChanged("p", schedule.Result{}, schedule.Result{}) // must not panic

	n = New(nil, "#site-alerts", zerolog.Nop())
	n.ScheduleChanged("p", schedule.Result{}, schedule.Result{})

	api := &fakeSlack{}
	n = New(api, "", zerolog.Nop())
	n.ScheduleChanged("p", schedule.Result{}, schedule.Result{})
	assert.Empty(t, api.channels, "no channel configured means no post")
}

func TestScheduleChanged_SwallowsAPIError(t *testing.T) {
	api := &fakeSlack{err: errors.New("channel_not_found")}
	n := New(api, "#site-alerts", zerolog.Nop())
	n.ScheduleChanged("p", schedule.Result{Status: schedule.StatusOnTrack},
		schedule.Result{Status: schedule.StatusAhead, Days: 3})
	// No panic, no error surfaced.
	assert.Len(t, api.channels, 1)
}

func TestFormatTransition(t *testing.T) {
	got := FormatTransition("riverside-tower",
		schedule.Result{Status: schedule.StatusOnTrack},
		schedule.Result{Status: schedule.StatusBehind, Days: 12})
	assert.Contains(t, got, "riverside-tower")
	assert.Contains(t, got, "behind schedule")
	assert.Contains(t, got, "12 days")
	assert.Contains(t, got, "was on track")

	got = FormatTransition("p", schedule.Result{Status: schedule.StatusBehind, Days: 4},
		schedule.Result{Status: schedule.StatusCompleted})
	assert.Contains(t, got, "completed")
	assert.NotContains(t, got, "~0 days")
}
