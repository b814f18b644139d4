// Package backend defines the persistence collaborator contract for
// milestones and project date ranges, with a REST implementation for the
// hosted service and an in-memory implementation for development and tests.
package backend

import (
	"context"

	"github.com/sitetrack/schedule-engine/internal/caldate"
	"github.com/sitetrack/schedule-engine/internal/milestone"
)

// CreateInput carries the fields needed to persist a new milestone.
type CreateInput struct {
	ProjectID string           `json:"project_id"`
	Title     string           `json:"title"`
	DueDate   caldate.Date     `json:"due_date"`
	Status    milestone.Status `json:"status"`
}

// Update is a partial milestone write. Nil fields are left untouched by the
// backend; DateHistory replaces the stored trail wholesale when set so the
// reschedule write lands as one logical update.
type Update struct {
	Status          *milestone.Status            `json:"status,omitempty"`
	DueDate         *caldate.Date                `json:"due_date,omitempty"`
	OriginalDueDate *caldate.Date                `json:"original_due_date,omitempty"`
	CompletionDate  *caldate.Date                `json:"completion_date,omitempty"`
	DateHistory     []milestone.DateHistoryEntry `json:"date_history,omitempty"`
}

// Service is the persistence collaborator. Every call is network-backed and
// fallible; implementations return typed errors from internal/errors, never
// panic. A nil range result with a nil error means the project has no
// configured timeline yet.
type Service interface {
	GetByProject(ctx context.Context, projectID string) ([]milestone.Milestone, error)
	Create(ctx context.Context, input CreateInput, userID string) (milestone.Milestone, error)
	Update(ctx context.Context, id string, u Update) error
	Delete(ctx context.Context, id string) error
	GetProjectDateRange(ctx context.Context, projectID string) (*milestone.DateRange, error)
	UpdateProjectDateRange(ctx context.Context, projectID string, rng milestone.DateRange) error
	Ping(ctx context.Context) error
}
