package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitetrack/schedule-engine/internal/backend"
	"github.com/sitetrack/schedule-engine/internal/milestone"
)

const fixture = `
projects:
  - id: riverside-tower
    date_range:
      start_date: 2025-01-01
      end_date: 2025-03-31
    milestones:
      - title: Permits approved
        due_date: 2025-01-15
        status: completed
        completion_date: 2025-01-12
      - title: Foundation pour
        due_date: 2025-02-01
  - id: depot-refit
    milestones:
      - title: Site survey
        due_date: 2025-02-10
        status: in_progress
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(fixture))
	require.NoError(t, err)
	require.Len(t, f.Projects, 2)

	p := f.Projects[0]
	assert.Equal(t, "riverside-tower", p.ID)
	require.NotNil(t, p.DateRange)
	assert.Equal(t, "2025-01-01", p.DateRange.StartDate.String())
	require.Len(t, p.Milestones, 2)
	assert.Equal(t, milestone.StatusCompleted, p.Milestones[0].Status)
	assert.Equal(t, "2025-01-12", p.Milestones[0].CompletionDate.String())

	assert.Nil(t, f.Projects[1].DateRange, "range is optional")
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("SEED_PROJECT", "expanded-project")
	f, err := Parse([]byte("projects:\n  - id: ${SEED_PROJECT}\n"))
	require.NoError(t, err)
	assert.Equal(t, "expanded-project", f.Projects[0].ID)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing id":     "projects:\n  - milestones:\n      - title: x\n        due_date: 2025-01-01\n",
		"missing title":  "projects:\n  - id: p\n    milestones:\n      - due_date: 2025-01-01\n",
		"missing due":    "projects:\n  - id: p\n    milestones:\n      - title: x\n",
		"bad status":     "projects:\n  - id: p\n    milestones:\n      - title: x\n        due_date: 2025-01-01\n        status: done\n",
		"inverted range": "projects:\n  - id: p\n    date_range:\n      start_date: 2025-02-01\n      end_date: 2025-01-01\n",
		"bad date":       "projects:\n  - id: p\n    milestones:\n      - title: x\n        due_date: not-a-date\n",
	}
	for name, doc := range cases {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestApply(t *testing.T) {
	f, err := Parse([]byte(fixture))
	require.NoError(t, err)

	svc := backend.NewMemoryService()
	require.NoError(t, Apply(context.Background(), f, svc))

	ms, err := svc.GetByProject(context.Background(), "riverside-tower")
	require.NoError(t, err)
	require.Len(t, ms, 2)

	rng, err := svc.GetProjectDateRange(context.Background(), "riverside-tower")
	require.NoError(t, err)
	require.NotNil(t, rng)
	assert.Equal(t, "2025-03-31", rng.EndDate.String())

	var completed *milestone.Milestone
	for i := range ms {
		if ms[i].Title == "Permits approved" {
			completed = &ms[i]
		}
	}
	require.NotNil(t, completed)
	assert.Equal(t, milestone.StatusCompleted, completed.Status)
	assert.Equal(t, "2025-01-12", completed.CompletionDate.String())

	other, err := svc.GetByProject(context.Background(), "depot-refit")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, milestone.StatusInProgress, other[0].Status)
}
