package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sitetrack/schedule-engine/internal/caldate"
	"github.com/sitetrack/schedule-engine/internal/milestone"
	"github.com/sitetrack/schedule-engine/internal/schedule"
)

// CreateMilestoneRequest is the body for POST .../milestones.
type CreateMilestoneRequest struct {
	Title   string       `json:"title"`
	DueDate caldate.Date `json:"due_date"`
	UserID  string       `json:"user_id"`
}

// UpdateStatusRequest is the body for PATCH .../status.
type UpdateStatusRequest struct {
	Status milestone.Status `json:"status"`
}

// RescheduleRequest is the body for POST .../reschedule.
type RescheduleRequest struct {
	DueDate caldate.Date `json:"due_date"`
	UserID  string       `json:"user_id"`
}

// SetRangeRequest is the body for PUT .../range.
type SetRangeRequest struct {
	StartDate caldate.Date `json:"start_date"`
	EndDate   caldate.Date `json:"end_date"`
}

// MilestoneListResponse wraps a list result.
type MilestoneListResponse struct {
	Milestones []milestone.Milestone `json:"milestones"`
	Total      int                   `json:"total"`
}

// TimelineMarker is one plotted point on the horizontal rail.
type TimelineMarker struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Status   milestone.Status `json:"status"`
	DueDate  caldate.Date     `json:"due_date"`
	Position float64          `json:"position"`
}

// ScheduleResponse is the derived view consumed by the timeline and
// dashboard screens. The two percentages track different things and
// are not expected to agree.
type ScheduleResponse struct {
	ScheduleStatus     schedule.Result      `json:"schedule_status"`
	CompletionPercent  int                  `json:"completion_percent"`
	TimeElapsedPercent int                  `json:"time_elapsed_percent"`
	DateRange          *milestone.DateRange `json:"date_range"`
	TodayPosition      float64              `json:"today_position"`
	Markers            []TimelineMarker     `json:"markers"`
	AsOf               caldate.Date         `json:"as_of"`
}

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// problemResponse writes an RFC 7807 problem response.
func problemResponse(c *fiber.Ctx, status int, problemType, title, detail string) error {
	c.Set("Content-Type", "application/problem+json")
	return c.Status(status).JSON(ProblemDetail{
		Type:     problemType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}
