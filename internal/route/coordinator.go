// Package route draws the route between the two resolved endpoints.
package route

import (
	"context"

	"tanktally_backend/internal/eventloop"
	"tanktally_backend/internal/fields"
	"tanktally_backend/internal/geo"
	"tanktally_backend/internal/mapsurface"
	"tanktally_backend/internal/ports"
	"tanktally_backend/platform/logger"
)

// Listener is told what happened to the route layer. Calls happen on the loop.
type Listener interface {
	RouteRendered(start, end geo.Coordinates, geometry geo.RouteGeometry)
	RouteFailed(start, end geo.Coordinates, err error)
	RouteCleared()
}

type pair struct {
	start geo.Coordinates
	end   geo.Coordinates
}

// Coordinator must only be used from its executor's loop.
type Coordinator struct {
	exec     eventloop.Executor
	router   ports.Router
	surface  mapsurface.MapSurface
	listener Listener
	log      *logger.Logger

	generation uint64
	last       *pair
	drawn      bool
}

// New creates a Coordinator pushing into surface.
func New(exec eventloop.Executor, router ports.Router, surface mapsurface.MapSurface, listener Listener, log *logger.Logger) *Coordinator {
	return &Coordinator{
		exec:     exec,
		router:   router,
		surface:  surface,
		listener: listener,
		log:      log,
	}
}

// OnSnapshot reacts to a store change. A route is requested only when both
// endpoints are resolved and the pair differs from the last one requested.
func (c *Coordinator) OnSnapshot(snap fields.Snapshot) {
	start, end, ok := snap.Endpoints()
	if !ok {
		c.reset()
		return
	}

	p := pair{start: start, end: end}
	if c.last != nil && *c.last == p {
		return
	}

	c.last = &p
	c.generation++
	gen := c.generation

	c.exec.Go(func(ctx context.Context) func() {
		geometry, err := c.router.Route(ctx, p.start, p.end)
		return func() { c.apply(gen, p, geometry, err) }
	})
}

// Generation returns the number of route requests issued so far.
func (c *Coordinator) Generation() uint64 { return c.generation }

// Stop invalidates any in-flight request.
func (c *Coordinator) Stop() {
	c.generation++
}

// reset forgets the last pair and clears a drawn route. Pending responses
// become stale.
func (c *Coordinator) reset() {
	if c.last == nil {
		return
	}
	c.last = nil
	c.generation++

	if c.drawn {
		c.surface.UpsertRouteLayer(geo.RouteGeometry{})
		c.drawn = false
		c.listener.RouteCleared()
	}
}

func (c *Coordinator) apply(gen uint64, p pair, geometry geo.RouteGeometry, err error) {
	if gen != c.generation {
		c.log.StaleResponse("route", p.start.String()+";"+p.end.String(), gen, c.generation)
		return
	}

	if err != nil {
		// The previous layer, if any, stays on the map.
		c.listener.RouteFailed(p.start, p.end, err)
		return
	}

	c.surface.UpsertRouteLayer(geometry)
	c.drawn = true
	c.listener.RouteRendered(p.start, p.end, geometry)
}
