package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/sitetrack/schedule-engine/internal/caldate"
	serrors "github.com/sitetrack/schedule-engine/internal/errors"
	"github.com/sitetrack/schedule-engine/internal/health"
	"github.com/sitetrack/schedule-engine/internal/milestone"
	"github.com/sitetrack/schedule-engine/internal/orchestrator"
	"github.com/sitetrack/schedule-engine/internal/schedule"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	registry  *orchestrator.Registry
	checker   *health.Checker
	logger    zerolog.Logger
	startTime time.Time

	// clock is overridable for tests; requests may also pin a day via the
	// as_of query parameter.
	clock func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(registry *orchestrator.Registry, checker *health.Checker, logger zerolog.Logger) *Handlers {
	return &Handlers{
		registry:  registry,
		checker:   checker,
		logger:    logger.With().Str("component", "handlers").Logger(),
		startTime: time.Now(),
		clock:     time.Now,
	}
}

// SetClock overrides the wall clock (for testing).
func (h *Handlers) SetClock(clock func() time.Time) { h.clock = clock }

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"uptime": time.Since(h.startTime).String(),
	})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	results := h.checker.RunAll(c.UserContext())
	for _, s := range results {
		if s == health.StatusDown {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not_ready", "checks": results,
			})
		}
	}
	return c.JSON(fiber.Map{"status": "ready", "checks": results})
}

// ListMilestones handles GET /api/v1/projects/:projectID/milestones.
func (h *Handlers) ListMilestones(c *fiber.Ctx) error {
	o := h.registry.ForProject(c.Params("projectID"))
	if err := o.Load(c.UserContext()); err != nil {
		return h.respondError(c, err)
	}
	ms, _ := o.Snapshot()
	return c.JSON(MilestoneListResponse{Milestones: ms, Total: len(ms)})
}

// CreateMilestone handles POST /api/v1/projects/:projectID/milestones.
func (h *Handlers) CreateMilestone(c *fiber.Ctx) error {
	var req CreateMilestoneRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	o := h.registry.ForProject(c.Params("projectID"))
	created, err := o.Create(c.UserContext(), req.Title, req.DueDate, req.UserID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateStatus handles PATCH /api/v1/projects/:projectID/milestones/:id/status.
func (h *Handlers) UpdateStatus(c *fiber.Ctx) error {
	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	o := h.registry.ForProject(c.Params("projectID"))
	if err := o.UpdateStatus(c.UserContext(), c.Params("id"), req.Status); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CompleteMilestone handles POST /api/v1/projects/:projectID/milestones/:id/complete.
func (h *Handlers) CompleteMilestone(c *fiber.Ctx) error {
	o := h.registry.ForProject(c.Params("projectID"))
	if err := o.Complete(c.UserContext(), c.Params("id")); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RescheduleMilestone handles POST /api/v1/projects/:projectID/milestones/:id/reschedule.
func (h *Handlers) RescheduleMilestone(c *fiber.Ctx) error {
	var req RescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	o := h.registry.ForProject(c.Params("projectID"))
	if err := o.Reschedule(c.UserContext(), c.Params("id"), req.DueDate, req.UserID); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteMilestone handles DELETE /api/v1/projects/:projectID/milestones/:id.
func (h *Handlers) DeleteMilestone(c *fiber.Ctx) error {
	o := h.registry.ForProject(c.Params("projectID"))
	if err := o.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetRange handles GET /api/v1/projects/:projectID/range.
func (h *Handlers) GetRange(c *fiber.Ctx) error {
	o := h.registry.ForProject(c.Params("projectID"))
	if err := o.Load(c.UserContext()); err != nil {
		return h.respondError(c, err)
	}
	_, rng := o.Snapshot()
	if rng == nil {
		return c.JSON(nil)
	}
	return c.JSON(rng)
}

// SetRange handles PUT /api/v1/projects/:projectID/range.
func (h *Handlers) SetRange(c *fiber.Ctx) error {
	var req SetRangeRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	o := h.registry.ForProject(c.Params("projectID"))
	rng, err := o.SetDateRange(c.UserContext(), req.StartDate, req.EndDate)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(rng)
}

// GetSchedule handles GET /api/v1/projects/:projectID/schedule. The derived
// view recomputes everything from the current snapshot on every call.
func (h *Handlers) GetSchedule(c *fiber.Ctx) error {
	o := h.registry.ForProject(c.Params("projectID"))
	if err := o.Load(c.UserContext()); err != nil {
		return h.respondError(c, err)
	}

	today := caldate.FromTime(h.clock())
	if asOf := c.Query("as_of"); asOf != "" {
		parsed, err := caldate.Parse(asOf)
		if err != nil {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_date", "Bad Request", "as_of must be YYYY-MM-DD")
		}
		today = parsed
	}

	ms, rng := o.Snapshot()
	resp := ScheduleResponse{
		ScheduleStatus:     schedule.Calculate(ms, rng, today),
		CompletionPercent:  schedule.CompletionPercent(ms),
		TimeElapsedPercent: schedule.TimeElapsedPercent(ms, rng, today),
		DateRange:          rng,
		Markers:            []TimelineMarker{},
		AsOf:               today,
	}

	if effective, ok := milestone.EffectiveRange(ms, rng); ok {
		resp.TodayPosition = schedule.TimelinePosition(today, effective.StartDate, effective.EndDate)
		for i := range ms {
			resp.Markers = append(resp.Markers, TimelineMarker{
				ID:       ms[i].ID,
				Title:    ms[i].Title,
				Status:   ms[i].Status,
				DueDate:  ms[i].DueDate,
				Position: schedule.TimelinePosition(ms[i].DueDate, effective.StartDate, effective.EndDate),
			})
		}
	}

	return c.JSON(resp)
}

// respondError maps the error taxonomy onto problem responses.
func (h *Handlers) respondError(c *fiber.Ctx, err error) error {
	switch {
	case serrors.IsValidation(err):
		return problemResponse(c, fiber.StatusBadRequest,
			"validation_failed", "Bad Request", err.Error())
	case serrors.IsNotFound(err):
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", err.Error())
	case serrors.IsPersistence(err):
		// Recoverable: local state is untouched, the client may retry.
		return problemResponse(c, fiber.StatusBadGateway,
			"backend_unavailable", "Bad Gateway", err.Error())
	default:
		h.logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		return problemResponse(c, fiber.StatusInternalServerError,
			"internal_error", "Internal Server Error", err.Error())
	}
}
