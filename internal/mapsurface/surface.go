// Package mapsurface defines the map view the planner drives and an
// in-memory implementation whose state is streamed to clients.
package mapsurface

import (
	"sync"

	"tanktally_backend/internal/geo"
)

// RouteLayerID names the single route layer.
const RouteLayerID = "route"

// MapSurface is the rendering collaborator. Implementations own tiles,
// markers and polylines; the planner only pushes state into it.
type MapSurface interface {
	SetCenter(center geo.Coordinates)
	SetZoom(zoom float64)
	// UpsertRouteLayer replaces the route layer if present, else creates it.
	// An empty geometry leaves the layer in its cleared state.
	UpsertRouteLayer(geometry geo.RouteGeometry)
	// AddMarker places or moves the marker with the given id.
	AddMarker(id string, at geo.Coordinates)
}

// Factory constructs a surface. It is only called once the initial view is known.
type Factory func(view geo.View) MapSurface

// RouteLayer is the drawn route.
type RouteLayer struct {
	ID       string            `json:"id"`
	Geometry geo.RouteGeometry `json:"geometry"`
}

// State is a copy of everything the surface currently shows.
type State struct {
	Center  geo.Coordinates            `json:"center"`
	Zoom    float64                    `json:"zoom"`
	Layers  []RouteLayer               `json:"layers"`
	Markers map[string]geo.Coordinates `json:"markers"`
	Version uint64                     `json:"version"`
}

func (s State) clone() State {
	out := s
	out.Layers = make([]RouteLayer, len(s.Layers))
	for i, l := range s.Layers {
		out.Layers[i] = RouteLayer{ID: l.ID, Geometry: append(geo.RouteGeometry{}, l.Geometry...)}
	}
	out.Markers = make(map[string]geo.Coordinates, len(s.Markers))
	for k, v := range s.Markers {
		out.Markers[k] = v
	}
	return out
}

// Route returns the route layer geometry, or nil when no layer exists.
func (s State) Route() geo.RouteGeometry {
	for _, l := range s.Layers {
		if l.ID == RouteLayerID {
			return l.Geometry
		}
	}
	return nil
}

// Surface is a thread-safe in-memory MapSurface. Every change bumps Version
// and is reported to the notify callback outside the lock.
type Surface struct {
	mu     sync.RWMutex
	state  State
	notify func(State)
}

// New constructs a surface at view. notify may be nil.
func New(view geo.View, notify func(State)) *Surface {
	return &Surface{
		state: State{
			Center:  view.Center,
			Zoom:    view.Zoom,
			Layers:  []RouteLayer{},
			Markers: map[string]geo.Coordinates{},
		},
		notify: notify,
	}
}

// NewFactory returns a Factory that builds Surfaces reporting to notify.
func NewFactory(notify func(State)) Factory {
	return func(view geo.View) MapSurface { return New(view, notify) }
}

// State returns a copy of the current state.
func (s *Surface) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Surface) SetCenter(center geo.Coordinates) {
	s.update(func(st *State) { st.Center = center })
}

func (s *Surface) SetZoom(zoom float64) {
	s.update(func(st *State) { st.Zoom = zoom })
}

func (s *Surface) UpsertRouteLayer(geometry geo.RouteGeometry) {
	g := append(geo.RouteGeometry{}, geometry...)
	s.update(func(st *State) {
		for i := range st.Layers {
			if st.Layers[i].ID == RouteLayerID {
				st.Layers[i].Geometry = g
				return
			}
		}
		st.Layers = append(st.Layers, RouteLayer{ID: RouteLayerID, Geometry: g})
	})
}

func (s *Surface) AddMarker(id string, at geo.Coordinates) {
	s.update(func(st *State) { st.Markers[id] = at })
}

func (s *Surface) update(apply func(*State)) {
	s.mu.Lock()
	apply(&s.state)
	s.state.Version++
	snapshot := s.state.clone()
	s.mu.Unlock()

	if s.notify != nil {
		s.notify(snapshot)
	}
}

var _ MapSurface = (*Surface)(nil)
