package mapsurface

import (
	"testing"

	"tanktally_backend/internal/geo"
)

func TestUpsertRouteLayerNeverDuplicates(t *testing.T) {
	s := New(geo.View{Zoom: 9}, nil)

	first := geo.RouteGeometry{{Longitude: 1, Latitude: 1}, {Longitude: 2, Latitude: 2}}
	second := geo.RouteGeometry{{Longitude: 3, Latitude: 3}, {Longitude: 4, Latitude: 4}}
	s.UpsertRouteLayer(first)
	s.UpsertRouteLayer(second)

	st := s.State()
	if len(st.Layers) != 1 {
		t.Fatalf("expected a single route layer, got %d", len(st.Layers))
	}
	if st.Route()[0] != second[0] {
		t.Fatalf("layer not replaced: %+v", st.Route())
	}

	s.UpsertRouteLayer(nil)
	st = s.State()
	if len(st.Layers) != 1 || len(st.Route()) != 0 {
		t.Fatalf("expected one cleared layer, got %+v", st.Layers)
	}
}

func TestNotifyReceivesEachChange(t *testing.T) {
	var seen []State
	s := New(geo.View{Center: geo.Coordinates{Longitude: -70.9, Latitude: 42.35}, Zoom: 9}, func(st State) {
		seen = append(seen, st)
	})

	s.SetCenter(geo.Coordinates{Longitude: 1, Latitude: 2})
	s.SetZoom(5)
	s.AddMarker("start", geo.Coordinates{Longitude: 1, Latitude: 2})
	s.AddMarker("start", geo.Coordinates{Longitude: 3, Latitude: 4})

	if len(seen) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(seen))
	}
	last := seen[3]
	if last.Version != 4 || last.Zoom != 5 || len(last.Markers) != 1 || last.Markers["start"].Longitude != 3 {
		t.Fatalf("unexpected final state %+v", last)
	}
}

func TestStateIsACopy(t *testing.T) {
	s := New(geo.View{}, nil)
	s.UpsertRouteLayer(geo.RouteGeometry{{Longitude: 1, Latitude: 1}})

	st := s.State()
	st.Layers[0].Geometry[0].Longitude = 99
	st.Markers["x"] = geo.Coordinates{}

	again := s.State()
	if again.Route()[0].Longitude != 1 || len(again.Markers) != 0 {
		t.Fatal("state shares memory with the surface")
	}
}
