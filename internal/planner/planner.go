// Package planner composes the location fields, suggestion fetcher,
// coordinate resolver and route coordinator of one route-planning session
// onto a single event loop, and exposes them over HTTP.
package planner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"tanktally_backend/internal/eventloop"
	"tanktally_backend/internal/events"
	"tanktally_backend/internal/fields"
	"tanktally_backend/internal/geo"
	"tanktally_backend/internal/mapsurface"
	"tanktally_backend/internal/ports"
	"tanktally_backend/internal/resolver"
	"tanktally_backend/internal/route"
	"tanktally_backend/internal/session"
	"tanktally_backend/internal/suggest"
	"tanktally_backend/platform/apperr"
	"tanktally_backend/platform/clock"
	"tanktally_backend/platform/logger"
)

const defaultQueueSize = 64

// Dependencies are the collaborators shared by every planner.
type Dependencies struct {
	Geocoder ports.Geocoder
	Router   ports.Router
	Resolver *resolver.Resolver
	Clock    clock.Clock
	Bus      events.Bus
	Log      *logger.Logger
}

// Settings tune a planner.
type Settings struct {
	Debounce  time.Duration
	Rotation  session.Policy
	QueueSize int
}

// Planner is one start/end route-planning session. All state lives on its
// loop; exported methods are safe for concurrent use.
type Planner struct {
	id          string
	createdAt   time.Time
	initialView geo.View

	loop     *eventloop.Loop
	store    *fields.Store
	sessions *session.Manager
	fetcher  *suggest.Fetcher
	resolver *resolver.Resolver
	route    *route.Coordinator
	surface  mapsurface.MapSurface

	// selections counts Select calls per field; only the latest may resolve.
	selections map[geo.FieldID]uint64

	bus    events.Bus
	clock  clock.Clock
	log    *logger.Logger
	cancel context.CancelFunc

	lastActive atomic.Int64
	stopOnce   sync.Once
}

// New creates a planner drawing into surface. Call Start to run its loop.
func New(id string, view geo.View, surface mapsurface.MapSurface, deps Dependencies, settings Settings) *Planner {
	queue := settings.QueueSize
	if queue <= 0 {
		queue = defaultQueueSize
	}
	c := deps.Clock
	if c == nil {
		c = clock.Real()
	}
	res := deps.Resolver
	if res == nil {
		res = resolver.New(deps.Geocoder, deps.Log)
	}

	log := deps.Log.WithPlannerID(id)
	p := &Planner{
		id:          id,
		createdAt:   c.Now(),
		initialView: view,
		loop:        eventloop.New(log, queue),
		store:       fields.NewStore(),
		sessions:    session.NewManager(settings.Rotation),
		resolver:    res,
		surface:     surface,
		selections:  make(map[geo.FieldID]uint64),
		bus:         deps.Bus,
		clock:       c,
		log:         log,
	}
	p.fetcher = suggest.New(suggest.Options{
		Executor: p.loop,
		Clock:    c,
		Geocoder: deps.Geocoder,
		Tokens:   suggest.TokenFunc(func() string { return p.sessions.Current().Value }),
		Debounce: settings.Debounce,
		Sink:     p.onSuggestions,
		Log:      log,
	})
	p.route = route.New(p.loop, deps.Router, surface, p, log)
	p.touch()
	return p
}

// ID returns the planner id.
func (p *Planner) ID() string { return p.id }

// LastActive returns when a client last interacted with the planner.
func (p *Planner) LastActive() time.Time { return time.Unix(0, p.lastActive.Load()) }

// Done is closed once the planner's loop has exited.
func (p *Planner) Done() <-chan struct{} { return p.loop.Done() }

// Start runs the loop until ctx is cancelled or Stop is called.
func (p *Planner) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go func() {
		if err := p.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.log.Warn("planner loop exited", "error", err)
		}
	}()
}

// Stop cancels pending work and ends the loop. It is idempotent.
func (p *Planner) Stop(reason string) {
	p.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.loop.Call(ctx, func() {
			p.fetcher.Stop()
			p.route.Stop()
			p.publish(events.PlannerStopped{BaseEvent: events.NewBaseEvent(), PlannerRef: p.ref(), Reason: reason})
		})
		if p.cancel != nil {
			p.cancel()
		}
	})
}

// SetText records a keystroke for field and schedules a suggestion query.
func (p *Planner) SetText(ctx context.Context, field geo.FieldID, text string) error {
	p.touch()
	var err error
	if callErr := p.loop.Call(ctx, func() { err = p.setText(field, text) }); callErr != nil {
		return callErr
	}
	return err
}

// Select resolves suggestionID, which must be one of field's current
// suggestions. Resolution completes asynchronously; its outcome is published.
func (p *Planner) Select(ctx context.Context, field geo.FieldID, suggestionID string) error {
	p.touch()
	var err error
	if callErr := p.loop.Call(ctx, func() { err = p.selectSuggestion(field, suggestionID) }); callErr != nil {
		return callErr
	}
	return err
}

// RotateSession starts a new search session.
func (p *Planner) RotateSession(ctx context.Context) (session.Token, error) {
	p.touch()
	var token session.Token
	err := p.loop.Call(ctx, func() {
		token = p.sessions.Rotate()
		p.publish(events.SessionRotated{BaseEvent: events.NewBaseEvent(), PlannerRef: p.ref(), Reason: "manual"})
	})
	return token, err
}

// Snapshot returns the planner's current state.
func (p *Planner) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := p.loop.Call(ctx, func() {
		snap = Snapshot{
			ID:          p.id,
			CreatedAt:   p.createdAt,
			InitialView: p.initialView,
			Fields:      p.store.Snapshot(),
			Session:     p.sessions.Current(),
		}
		if reader, ok := p.surface.(interface{ State() mapsurface.State }); ok {
			state := reader.State()
			snap.Map = &state
		}
	})
	return snap, err
}

// Settle waits until every queued transition and in-flight provider call,
// including the work they trigger, has finished.
func (p *Planner) Settle(ctx context.Context) error {
	return p.loop.Flush(ctx)
}

func (p *Planner) setText(field geo.FieldID, text string) error {
	if err := p.store.SetText(field, text); err != nil {
		return err
	}
	p.fetcher.Request(field, text)
	p.route.OnSnapshot(p.store.Snapshot())
	return nil
}

func (p *Planner) selectSuggestion(field geo.FieldID, suggestionID string) error {
	f, err := p.store.Field(field)
	if err != nil {
		return err
	}
	if !containsSuggestion(f.Suggestions, suggestionID) {
		return apperr.NotFound("suggestion is not offered for this field")
	}

	p.selections[field]++
	pending := resolution{field: field, suggestionID: suggestionID, revision: f.Revision, seq: p.selections[field]}
	token := p.sessions.Current().Value
	p.loop.Go(func(ctx context.Context) func() {
		coords, err := p.resolver.Resolve(ctx, suggestionID, token)
		return func() { p.applyResolution(pending, coords, err) }
	})
	return nil
}

// resolution identifies one Select call awaiting coordinates.
type resolution struct {
	field        geo.FieldID
	suggestionID string
	revision     uint64
	seq          uint64
}

// applyResolution stores coordinates unless the field was edited or
// selected again after the selection was made.
func (p *Planner) applyResolution(r resolution, coords geo.Coordinates, err error) {
	field, suggestionID := r.field, r.suggestionID
	if latest := p.selections[field]; r.seq != latest {
		p.log.StaleResponse("resolve", string(field), r.seq, latest)
		return
	}
	current, _ := p.store.Revision(field)
	if current != r.revision {
		p.log.StaleResponse("resolve", string(field), r.revision, current)
		return
	}

	if err != nil {
		p.log.Warn("selection could not be resolved", "field", field, "suggestionId", suggestionID, "error", err)
		p.publish(events.ResolveFailed{
			BaseEvent:    events.NewBaseEvent(),
			PlannerRef:   p.ref(),
			Field:        field,
			SuggestionID: suggestionID,
			Failure:      failureOf(err),
		})
		return
	}

	if err := p.store.SetResolved(field, coords); err != nil {
		p.publish(events.ResolveFailed{
			BaseEvent:    events.NewBaseEvent(),
			PlannerRef:   p.ref(),
			Field:        field,
			SuggestionID: suggestionID,
			Failure:      failureOf(err),
		})
		return
	}
	_ = p.store.ClearSuggestions(field)

	p.surface.AddMarker(string(field), coords)
	snap := p.store.Snapshot()
	if _, _, both := snap.Endpoints(); !both {
		p.surface.SetCenter(coords)
	}

	p.publish(events.LocationResolved{
		BaseEvent:    events.NewBaseEvent(),
		PlannerRef:   p.ref(),
		Field:        field,
		SuggestionID: suggestionID,
		Coordinates:  coords,
	})
	p.route.OnSnapshot(snap)
}

func (p *Planner) onSuggestions(r suggest.Result) {
	if r.Err != nil {
		_ = p.store.ClearSuggestions(r.Field)
		p.publish(events.SuggestionsFailed{
			BaseEvent:  events.NewBaseEvent(),
			PlannerRef: p.ref(),
			Field:      r.Field,
			Seq:        r.Seq,
			Failure:    failureOf(r.Err),
		})
		return
	}

	applied, err := p.store.SetSuggestions(r.Field, r.Suggestions)
	if err != nil || !applied {
		return
	}
	p.publish(events.SuggestionsUpdated{
		BaseEvent:   events.NewBaseEvent(),
		PlannerRef:  p.ref(),
		Field:       r.Field,
		Seq:         r.Seq,
		Suggestions: r.Suggestions,
	})
}

// RouteRendered implements route.Listener.
func (p *Planner) RouteRendered(start, end geo.Coordinates, geometry geo.RouteGeometry) {
	p.publish(events.RouteRendered{
		BaseEvent:  events.NewBaseEvent(),
		PlannerRef: p.ref(),
		Start:      start,
		End:        end,
		Points:     len(geometry),
	})
	if _, rotated := p.sessions.AfterRoute(); rotated {
		p.publish(events.SessionRotated{BaseEvent: events.NewBaseEvent(), PlannerRef: p.ref(), Reason: "after_route"})
	}
}

// RouteFailed implements route.Listener.
func (p *Planner) RouteFailed(start, end geo.Coordinates, err error) {
	p.log.Warn("route failed", "start", start.String(), "end", end.String(), "error", err)
	p.publish(events.RouteFailed{
		BaseEvent:  events.NewBaseEvent(),
		PlannerRef: p.ref(),
		Start:      start,
		End:        end,
		Failure:    failureOf(err),
	})
}

// RouteCleared implements route.Listener.
func (p *Planner) RouteCleared() {
	p.publish(events.RouteCleared{BaseEvent: events.NewBaseEvent(), PlannerRef: p.ref()})
}

// publish delivers synchronously so subscribers see a planner's events in
// loop order.
func (p *Planner) publish(event events.Event) {
	if p.bus == nil {
		return
	}
	if err := p.bus.PublishSync(context.Background(), event); err != nil {
		p.log.Warn("event handler failed", "event", event.EventName(), "error", err)
	}
}

func (p *Planner) ref() events.PlannerRef { return events.PlannerRef{PlannerID: p.id} }

func (p *Planner) touch() { p.lastActive.Store(p.clock.Now().UnixNano()) }

func containsSuggestion(list []geo.Suggestion, id string) bool {
	for _, s := range list {
		if s.ID == id {
			return true
		}
	}
	return false
}

func failureOf(err error) events.Failure {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return events.Failure{Kind: appErr.Kind.String(), Message: appErr.Message}
	}
	return events.Failure{Kind: apperr.KindUnknown.String(), Message: err.Error()}
}

var _ route.Listener = (*Planner)(nil)
