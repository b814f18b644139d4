// Package notify posts schedule-status transitions to Slack.
package notify

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/sitetrack/schedule-engine/internal/schedule"
)

// SlackAPI is the minimal Slack API surface needed by the notifier.
type SlackAPI interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts a message when a project's derived schedule status flips.
// A nil Notifier or one without an API is a silent no-op, so the engine runs
// fine without Slack configured.
type Notifier struct {
	api     SlackAPI
	channel string
	logger  zerolog.Logger
}

// New creates a Notifier posting to the given channel.
func New(api SlackAPI, channel string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		api:     api,
		channel: channel,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

// ScheduleChanged posts a transition message. Failures are logged, never
// returned: notification is best-effort and must not fail the mutation that
// triggered it.
func (n *Notifier) ScheduleChanged(projectID string, from, to schedule.Result) {
	if n == nil || n.api == nil || n.channel == "" {
		return
	}
	text := FormatTransition(projectID, from, to)
	_, _, err := n.api.PostMessage(n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		n.logger.Warn().Err(err).Str("project", projectID).Msg("slack notification failed")
		return
	}
	n.logger.Debug().Str("project", projectID).Str("status", string(to.Status)).Msg("posted schedule transition")
}

// FormatTransition renders the Slack message for a status flip.
func FormatTransition(projectID string, from, to schedule.Result) string {
	head := fmt.Sprintf("%s Project `%s` is now *%s*", emoji(to.Status), projectID, label(to.Status))
	switch to.Status {
	case schedule.StatusBehind:
		head += fmt.Sprintf(" (~%d days)", to.Days)
	case schedule.StatusAhead:
		head += fmt.Sprintf(" (~%d days ahead)", to.Days)
	}
	return head + fmt.Sprintf(" — was %s", label(from.Status))
}

func emoji(s schedule.Status) string {
	switch s {
	case schedule.StatusBehind:
		return ":warning:"
	case schedule.StatusAhead:
		return ":rocket:"
	case schedule.StatusCompleted:
		return ":white_check_mark:"
	default:
		return ":calendar:"
	}
}

func label(s schedule.Status) string {
	switch s {
	case schedule.StatusOnTrack:
		return "on track"
	case schedule.StatusAhead:
		return "ahead of schedule"
	case schedule.StatusBehind:
		return "behind schedule"
	case schedule.StatusCompleted:
		return "completed"
	default:
		return string(s)
	}
}
