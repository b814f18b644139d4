// Package seed loads YAML project fixtures into the in-memory backend.
// Supports environment variable overrides via ${VAR} or $VAR syntax in values.
package seed

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sitetrack/schedule-engine/internal/backend"
	"github.com/sitetrack/schedule-engine/internal/caldate"
	"github.com/sitetrack/schedule-engine/internal/milestone"
)

// File is the top-level fixture document.
type File struct {
	Projects []Project `yaml:"projects"`
}

// Project seeds one project with an optional configured range.
type Project struct {
	ID         string      `yaml:"id"`
	DateRange  *RangeSpec  `yaml:"date_range"`
	Milestones []Milestone `yaml:"milestones"`
}

// RangeSpec mirrors the project date range.
type RangeSpec struct {
	StartDate caldate.Date `yaml:"start_date"`
	EndDate   caldate.Date `yaml:"end_date"`
}

// Milestone seeds one milestone.
type Milestone struct {
	Title          string           `yaml:"title"`
	DueDate        caldate.Date     `yaml:"due_date"`
	Status         milestone.Status `yaml:"status"`
	CompletionDate caldate.Date     `yaml:"completion_date"`
}

// Load reads and parses a fixture file, expanding env vars.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse parses fixture bytes (useful for testing).
func Parse(data []byte) (*File, error) {
	expanded := expandEnvVars(string(data))

	var f File
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("seed: parse: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	for _, p := range f.Projects {
		if p.ID == "" {
			return fmt.Errorf("seed: project without id")
		}
		if p.DateRange != nil {
			if _, err := milestone.NewRange(p.DateRange.StartDate, p.DateRange.EndDate); err != nil {
				return fmt.Errorf("seed: project %s: %w", p.ID, err)
			}
		}
		for _, m := range p.Milestones {
			if strings.TrimSpace(m.Title) == "" {
				return fmt.Errorf("seed: project %s: milestone without title", p.ID)
			}
			if m.DueDate.IsZero() {
				return fmt.Errorf("seed: project %s: milestone %q without due date", p.ID, m.Title)
			}
			if m.Status != "" && !m.Status.Valid() {
				return fmt.Errorf("seed: project %s: milestone %q has unknown status %q", p.ID, m.Title, m.Status)
			}
		}
	}
	return nil
}

// Apply pushes the fixtures through the backend service.
func Apply(ctx context.Context, f *File, svc backend.Service) error {
	for _, p := range f.Projects {
		if p.DateRange != nil {
			rng := milestone.DateRange{StartDate: p.DateRange.StartDate, EndDate: p.DateRange.EndDate}
			if err := svc.UpdateProjectDateRange(ctx, p.ID, rng); err != nil {
				return fmt.Errorf("seed: project %s range: %w", p.ID, err)
			}
		}
		for _, m := range p.Milestones {
			status := m.Status
			if status == "" {
				status = milestone.StatusPending
			}
			created, err := svc.Create(ctx, backend.CreateInput{
				ProjectID: p.ID,
				Title:     m.Title,
				DueDate:   m.DueDate,
				Status:    status,
			}, "seed")
			if err != nil {
				return fmt.Errorf("seed: project %s milestone %q: %w", p.ID, m.Title, err)
			}
			if !m.CompletionDate.IsZero() {
				done := m.CompletionDate
				if err := svc.Update(ctx, created.ID, backend.Update{CompletionDate: &done}); err != nil {
					return fmt.Errorf("seed: project %s milestone %q: %w", p.ID, m.Title, err)
				}
			}
		}
	}
	return nil
}

// envVarPattern matches ${VAR_NAME} and $VAR_NAME.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces ${VAR} and $VAR with the corresponding environment
// variable value. Missing vars are replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "${")
		name = strings.TrimSuffix(name, "}")
		name = strings.TrimPrefix(name, "$")
		return os.Getenv(name)
	})
}
