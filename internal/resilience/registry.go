package resilience

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"jobsieve/internal/config"
)

// Registry owns one Guard per source id.
type Registry struct {
	mu     sync.Mutex
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
	guards map[string]*Guard
}

// NewRegistry creates an empty registry. A nil now uses time.Now.
func NewRegistry(cfg *config.Config, logger *slog.Logger, now func() time.Time) *Registry {
	return &Registry{
		cfg:    cfg,
		logger: logger,
		now:    now,
		guards: make(map[string]*Guard),
	}
}

// Guard returns the guard for src, creating it on first use with the
// source's merged resilience settings.
func (r *Registry) Guard(src config.Source) *Guard {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.guards[src.ID]; ok {
		return g
	}
	settings := SettingsFromConfig(r.cfg.SourceResilience(src))
	g := NewGuard(src.ID, settings, r.logger, r.now)
	r.guards[src.ID] = g
	return g
}

// Snapshot returns every breaker's state ordered by source id.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.Lock()
	guards := make([]*Guard, 0, len(r.guards))
	for _, g := range r.guards {
		guards = append(guards, g)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(guards))
	for _, g := range guards {
		out = append(out, g.breaker.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// State returns the breaker state for a source id, CLOSED when unknown.
func (r *Registry) State(sourceID string) State {
	r.mu.Lock()
	g, ok := r.guards[sourceID]
	r.mu.Unlock()
	if !ok {
		return StateClosed
	}
	return g.breaker.State()
}
