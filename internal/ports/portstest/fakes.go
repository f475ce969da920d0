// Package portstest provides in-memory provider fakes with controllable
// latency for exercising the planner without a network.
package portstest

import (
	"context"
	"sync"

	"tanktally_backend/internal/geo"
	"tanktally_backend/internal/ports"
	"tanktally_backend/platform/apperr"
)

// Call records one provider invocation.
type Call struct {
	Arg   string
	Token string
}

type gates struct {
	mu      sync.Mutex
	held    map[string]chan struct{}
	started chan string
}

func newGates() *gates {
	return &gates{held: make(map[string]chan struct{}), started: make(chan string, 256)}
}

// hold makes calls for key block until release is called.
func (g *gates) hold(key string) (release func()) {
	ch := make(chan struct{})
	g.mu.Lock()
	g.held[key] = ch
	g.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (g *gates) wait(ctx context.Context, key string) error {
	g.mu.Lock()
	ch := g.held[key]
	g.mu.Unlock()
	select {
	case g.started <- key:
	default:
	}
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return apperr.Network("request aborted", ctx.Err())
	}
}

// Geocoder is a fake ports.Geocoder.
type Geocoder struct {
	*gates

	mu          sync.Mutex
	suggestions map[string][]geo.Suggestion
	suggestErr  map[string]error
	coordinates map[string]geo.Coordinates
	retrieveErr map[string]error
	queries     []Call
	retrieves   []Call
}

// NewGeocoder creates an empty fake. Unknown queries return no suggestions;
// unknown ids return NotFound.
func NewGeocoder() *Geocoder {
	return &Geocoder{
		gates:       newGates(),
		suggestions: make(map[string][]geo.Suggestion),
		suggestErr:  make(map[string]error),
		coordinates: make(map[string]geo.Coordinates),
		retrieveErr: make(map[string]error),
	}
}

// OnSuggest sets the answer for query.
func (g *Geocoder) OnSuggest(query string, suggestions []geo.Suggestion, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.suggestions[query] = suggestions
	if err != nil {
		g.suggestErr[query] = err
	}
}

// OnRetrieve sets the answer for a suggestion id.
func (g *Geocoder) OnRetrieve(id string, coords geo.Coordinates, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.coordinates[id] = coords
	if err != nil {
		g.retrieveErr[id] = err
	}
}

// HoldSuggest blocks Suggest(query) until the returned func is called.
func (g *Geocoder) HoldSuggest(query string) func() { return g.hold("suggest:" + query) }

// HoldRetrieve blocks Retrieve(id) until the returned func is called.
func (g *Geocoder) HoldRetrieve(id string) func() { return g.hold("retrieve:" + id) }

// Started yields "suggest:<query>" or "retrieve:<id>" as calls begin.
func (g *Geocoder) Started() <-chan string { return g.started }

// Queries returns every Suggest call so far.
func (g *Geocoder) Queries() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.queries...)
}

// Retrieves returns every Retrieve call so far.
func (g *Geocoder) Retrieves() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.retrieves...)
}

func (g *Geocoder) Suggest(ctx context.Context, query, sessionToken string) ([]geo.Suggestion, error) {
	g.mu.Lock()
	g.queries = append(g.queries, Call{Arg: query, Token: sessionToken})
	g.mu.Unlock()

	if err := g.wait(ctx, "suggest:"+query); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.suggestErr[query]; err != nil {
		return nil, err
	}
	return append([]geo.Suggestion{}, g.suggestions[query]...), nil
}

func (g *Geocoder) Retrieve(ctx context.Context, suggestionID, sessionToken string) (geo.Coordinates, error) {
	g.mu.Lock()
	g.retrieves = append(g.retrieves, Call{Arg: suggestionID, Token: sessionToken})
	g.mu.Unlock()

	if err := g.wait(ctx, "retrieve:"+suggestionID); err != nil {
		return geo.Coordinates{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.retrieveErr[suggestionID]; err != nil {
		return geo.Coordinates{}, err
	}
	coords, ok := g.coordinates[suggestionID]
	if !ok {
		return geo.Coordinates{}, apperr.NotFound("unknown suggestion " + suggestionID)
	}
	return coords, nil
}

// Router is a fake ports.Router keyed by "start;end".
type Router struct {
	*gates

	mu     sync.Mutex
	routes map[string]geo.RouteGeometry
	errs   map[string]error
	calls  []Call
}

// NewRouter creates a fake that answers with a straight line unless told otherwise.
func NewRouter() *Router {
	return &Router{
		gates:  newGates(),
		routes: make(map[string]geo.RouteGeometry),
		errs:   make(map[string]error),
	}
}

// Key identifies a start/end pair.
func Key(start, end geo.Coordinates) string { return start.String() + ";" + end.String() }

// OnRoute sets the answer for a pair.
func (r *Router) OnRoute(start, end geo.Coordinates, geometry geo.RouteGeometry, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[Key(start, end)] = geometry
	if err != nil {
		r.errs[Key(start, end)] = err
	} else {
		delete(r.errs, Key(start, end))
	}
}

// HoldRoute blocks Route for the pair until the returned func is called.
func (r *Router) HoldRoute(start, end geo.Coordinates) func() { return r.hold("route:" + Key(start, end)) }

// Started yields "route:<start>;<end>" as calls begin.
func (r *Router) Started() <-chan string { return r.started }

// Calls returns every Route call so far, keyed by pair.
func (r *Router) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

func (r *Router) Route(ctx context.Context, start, end geo.Coordinates) (geo.RouteGeometry, error) {
	key := Key(start, end)
	r.mu.Lock()
	r.calls = append(r.calls, Call{Arg: key})
	r.mu.Unlock()

	if err := r.wait(ctx, "route:"+key); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs[key]; err != nil {
		return nil, err
	}
	if geometry, ok := r.routes[key]; ok {
		return append(geo.RouteGeometry(nil), geometry...), nil
	}
	return geo.RouteGeometry{start, end}, nil
}

// OriginLocator is a fake ports.OriginLocator.
type OriginLocator struct {
	mu     sync.Mutex
	Origin ports.Origin
	Err    error
	hints  []string
}

func (o *OriginLocator) LocateByOrigin(ctx context.Context, ipHint string) (ports.Origin, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hints = append(o.hints, ipHint)
	if o.Err != nil {
		return ports.Origin{}, o.Err
	}
	return o.Origin, nil
}

// Hints returns the ip hints seen so far.
func (o *OriginLocator) Hints() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.hints...)
}

var (
	_ ports.Geocoder      = (*Geocoder)(nil)
	_ ports.Router        = (*Router)(nil)
	_ ports.OriginLocator = (*OriginLocator)(nil)
)
