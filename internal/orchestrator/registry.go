package orchestrator

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sitetrack/schedule-engine/internal/backend"
	"github.com/sitetrack/schedule-engine/internal/metrics"
	"github.com/sitetrack/schedule-engine/internal/notify"
)

// Registry hands out one orchestrator per project, created on first touch.
// All orchestrators share the backend, metrics, and notifier wiring.
type Registry struct {
	svc      backend.Service
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	notifier *notify.Notifier
	clock    func() time.Time

	mu        sync.Mutex
	byProject map[string]*Orchestrator
}

// NewRegistry creates an empty registry.
func NewRegistry(svc backend.Service, logger zerolog.Logger) *Registry {
	return &Registry{
		svc:       svc,
		logger:    logger,
		clock:     time.Now,
		byProject: make(map[string]*Orchestrator),
	}
}

// SetMetrics attaches a metrics collector to all future orchestrators.
func (r *Registry) SetMetrics(m *metrics.Metrics) { r.metrics = m }

// SetNotifier attaches the schedule notifier to all future orchestrators.
func (r *Registry) SetNotifier(n *notify.Notifier) { r.notifier = n }

// SetClock overrides the wall clock (for testing).
func (r *Registry) SetClock(clock func() time.Time) { r.clock = clock }

// ForProject returns the project's orchestrator, creating it if needed.
func (r *Registry) ForProject(projectID string) *Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.byProject[projectID]; ok {
		return o
	}
	o := New(projectID, r.svc, r.logger)
	o.SetMetrics(r.metrics)
	o.SetNotifier(r.notifier)
	o.SetClock(r.clock)
	r.byProject[projectID] = o
	return o
}
