package backend

import (
	"context"
	"sync"

	"github.com/google/uuid"

	serrors "github.com/sitetrack/schedule-engine/internal/errors"
	"github.com/sitetrack/schedule-engine/internal/milestone"
)

// MemoryService is an in-process Service used by development mode and tests.
// It mints uuid ids the way the hosted backend would and hands out deep
// copies so callers can never alias its state.
type MemoryService struct {
	mu         sync.RWMutex
	milestones map[string]*milestone.Milestone
	ranges     map[string]*milestone.DateRange

	// FailNext, when set, makes the next mutating call return this error.
	// Lets tests exercise the state-untouched-on-failure contract.
	FailNext error
}

var _ Service = (*MemoryService)(nil)

// NewMemoryService creates an empty in-memory service.
func NewMemoryService() *MemoryService {
	return &MemoryService{
		milestones: make(map[string]*milestone.Milestone),
		ranges:     make(map[string]*milestone.DateRange),
	}
}

func (s *MemoryService) takeFailure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

// GetByProject returns copies of all milestones for a project.
func (s *MemoryService) GetByProject(_ context.Context, projectID string) ([]milestone.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]milestone.Milestone, 0)
	for _, m := range s.milestones {
		if m.ProjectID == projectID {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}

// Create stores a new milestone and returns it with a fresh id.
func (s *MemoryService) Create(_ context.Context, input CreateInput, _ string) (milestone.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return milestone.Milestone{}, err
	}
	m := &milestone.Milestone{
		ID:        uuid.New().String(),
		ProjectID: input.ProjectID,
		Title:     input.Title,
		Status:    input.Status,
		DueDate:   input.DueDate,
	}
	if m.Status == "" {
		m.Status = milestone.StatusPending
	}
	s.milestones[m.ID] = m
	return m.Clone(), nil
}

// Update applies a partial write.
func (s *MemoryService) Update(_ context.Context, id string, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	m, ok := s.milestones[id]
	if !ok {
		return serrors.NewAPIError(serviceName, 404, "milestone "+id+" not found")
	}
	if u.Status != nil {
		m.Status = *u.Status
	}
	if u.DueDate != nil {
		m.DueDate = *u.DueDate
	}
	if u.OriginalDueDate != nil {
		m.OriginalDueDate = *u.OriginalDueDate
	}
	if u.CompletionDate != nil {
		m.CompletionDate = *u.CompletionDate
	}
	if u.DateHistory != nil {
		trail := make([]milestone.DateHistoryEntry, len(u.DateHistory))
		copy(trail, u.DateHistory)
		m.DateHistory = trail
	}
	return nil
}

// Delete removes a milestone.
func (s *MemoryService) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	if _, ok := s.milestones[id]; !ok {
		return serrors.NewAPIError(serviceName, 404, "milestone "+id+" not found")
	}
	delete(s.milestones, id)
	return nil
}

// GetProjectDateRange returns the configured range, or nil when unset.
func (s *MemoryService) GetProjectDateRange(_ context.Context, projectID string) (*milestone.DateRange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ranges[projectID]
	if !ok {
		return nil, nil
	}
	out := *r
	return &out, nil
}

// UpdateProjectDateRange stores the project range.
func (s *MemoryService) UpdateProjectDateRange(_ context.Context, projectID string, rng milestone.DateRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	r := rng
	s.ranges[projectID] = &r
	return nil
}

// Ping always succeeds.
func (s *MemoryService) Ping(context.Context) error { return nil }
