package planner

import (
	"context"
	"sync"
	"time"

	"tanktally_backend/internal/bootstrap"
	"tanktally_backend/internal/events"
	"tanktally_backend/internal/mapsurface"
	"tanktally_backend/platform/apperr"
	"tanktally_backend/platform/clock"
	"tanktally_backend/platform/logger"

	"github.com/google/uuid"
)

// Registry owns the live planners and evicts idle ones.
type Registry struct {
	mu       sync.RWMutex
	planners map[string]*Planner

	deps      Dependencies
	settings  Settings
	bootstrap *bootstrap.Resolver
	idleTTL   time.Duration
	clock     clock.Clock
	log       *logger.Logger

	root    context.Context
	cancel  context.CancelFunc
	newID   func() string
	watched func(plannerID string) int
}

// NewRegistry creates a registry. Planners run until deleted, evicted after
// idleTTL without activity, or until Close.
func NewRegistry(deps Dependencies, settings Settings, boot *bootstrap.Resolver, idleTTL time.Duration) *Registry {
	c := deps.Clock
	if c == nil {
		c = clock.Real()
		deps.Clock = c
	}
	root, cancel := context.WithCancel(context.Background())
	return &Registry{
		planners:  make(map[string]*Planner),
		deps:      deps,
		settings:  settings,
		bootstrap: boot,
		idleTTL:   idleTTL,
		clock:     c,
		log:       deps.Log,
		root:      root,
		cancel:    cancel,
		newID:     uuid.NewString,
	}
}

// Create bootstraps the initial view from ipHint, constructs the map surface
// with it and starts a planner.
func (r *Registry) Create(ctx context.Context, ipHint string) (*Planner, bootstrap.Result, error) {
	if err := r.root.Err(); err != nil {
		return nil, bootstrap.Result{}, apperr.Unavailable("planner registry is closed")
	}

	id := r.newID()
	notify := func(state mapsurface.State) {
		if r.deps.Bus == nil {
			return
		}
		if err := r.deps.Bus.PublishSync(context.Background(), events.MapUpdated{
			BaseEvent:  events.NewBaseEvent(),
			PlannerRef: events.PlannerRef{PlannerID: id},
			State:      state,
		}); err != nil {
			r.log.Warn("map update handler failed", "plannerId", id, "error", err)
		}
	}

	surface, res := r.bootstrap.Construct(ctx, ipHint, mapsurface.NewFactory(notify))

	p := New(id, res.View, surface, r.deps, r.settings)
	p.Start(r.root)

	r.mu.Lock()
	r.planners[id] = p
	r.mu.Unlock()

	if r.deps.Bus != nil {
		r.deps.Bus.Publish(ctx, events.PlannerCreated{
			BaseEvent:  events.NewBaseEvent(),
			PlannerRef: events.PlannerRef{PlannerID: id},
			View:       res.View,
			Source:     string(res.Source),
		})
	}
	r.log.Info("planner created", "plannerId", id, "source", res.Source, "region", res.Region)
	return p, res, nil
}

// Get returns a live planner.
func (r *Registry) Get(id string) (*Planner, error) {
	r.mu.RLock()
	p, ok := r.planners[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound("planner not found")
	}
	return p, nil
}

// Delete stops and forgets a planner.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	p, ok := r.planners[id]
	delete(r.planners, id)
	r.mu.Unlock()
	if !ok {
		return apperr.NotFound("planner not found")
	}
	p.Stop("deleted")
	return nil
}

// Len returns the number of live planners.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.planners)
}

// KeepWatched makes Sweep spare planners for which watchers reports open
// event streams.
func (r *Registry) KeepWatched(watchers func(plannerID string) int) {
	r.mu.Lock()
	r.watched = watchers
	r.mu.Unlock()
}

// Sweep stops every planner idle for longer than the TTL and returns how
// many were evicted. Watched planners count as active.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.clock.Now().Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*Planner
	for id, p := range r.planners {
		if r.watched != nil && r.watched(id) > 0 {
			p.touch()
			continue
		}
		if p.LastActive().Before(cutoff) {
			idle = append(idle, p)
			delete(r.planners, id)
		}
	}
	r.mu.Unlock()

	for _, p := range idle {
		p.Stop("idle")
		r.log.Info("planner evicted", "plannerId", p.ID())
	}
	return len(idle)
}

// Run sweeps periodically until ctx is done, then closes the registry.
func (r *Registry) Run(ctx context.Context) error {
	interval := r.idleTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Close()
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close stops every planner and rejects new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*Planner, 0, len(r.planners))
	for id, p := range r.planners {
		all = append(all, p)
		delete(r.planners, id)
	}
	r.mu.Unlock()

	for _, p := range all {
		p.Stop("shutdown")
	}
	r.cancel()
}

// SnapshotOf returns the current state of a live planner.
func (r *Registry) SnapshotOf(ctx context.Context, id string) (Snapshot, error) {
	p, err := r.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return p.Snapshot(ctx)
}
