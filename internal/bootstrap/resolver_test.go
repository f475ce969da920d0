package bootstrap

import (
	"context"
	"testing"
	"time"

	"tanktally_backend/internal/geo"
	"tanktally_backend/internal/mapsurface"
	"tanktally_backend/internal/ports"
	"tanktally_backend/internal/ports/portstest"
	"tanktally_backend/platform/apperr"
	"tanktally_backend/platform/logger"
)

var fallback = geo.View{Center: geo.Coordinates{Longitude: -70.9, Latitude: 42.35}, Zoom: 9}

func newResolver(origin *portstest.OriginLocator, geocoder *portstest.Geocoder) *Resolver {
	return New(Options{
		Origin:       origin,
		Geocoder:     geocoder,
		Fallback:     fallback,
		RegionalZoom: 5,
		StepTimeout:  time.Second,
		NewToken:     func() string { return "boot-token" },
		Log:          logger.Discard(),
	})
}

func TestResolveCentersOnOriginRegion(t *testing.T) {
	origin := &portstest.OriginLocator{Origin: ports.Origin{City: "Utrecht", Region: "Utrecht", Country: "Netherlands"}}
	geocoder := portstest.NewGeocoder()
	geocoder.OnSuggest("Netherlands", []geo.Suggestion{{ID: "nl"}, {ID: "nl-2"}}, nil)
	geocoder.OnRetrieve("nl", geo.Coordinates{Longitude: 5.29, Latitude: 52.13}, nil)

	res := newResolver(origin, geocoder).Resolve(context.Background(), "203.0.113.7")

	if res.Source != SourceOrigin || res.Region != "Netherlands" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.View.Zoom != 5 || res.View.Center.Latitude != 52.13 {
		t.Fatalf("unexpected view %+v", res.View)
	}
	if hints := origin.Hints(); len(hints) != 1 || hints[0] != "203.0.113.7" {
		t.Fatalf("ip hint not forwarded: %v", hints)
	}
	for _, c := range append(geocoder.Queries(), geocoder.Retrieves()...) {
		if c.Token != "boot-token" {
			t.Fatalf("bootstrap calls must share one session token: %+v", c)
		}
	}
}

func TestResolveFallsBackOnEveryFailingStep(t *testing.T) {
	cases := []struct {
		name     string
		origin   *portstest.OriginLocator
		geocoder func() *portstest.Geocoder
	}{
		{
			name:     "origin lookup fails",
			origin:   &portstest.OriginLocator{Err: apperr.Network("timeout", context.DeadlineExceeded)},
			geocoder: portstest.NewGeocoder,
		},
		{
			name:     "origin has no place",
			origin:   &portstest.OriginLocator{Origin: ports.Origin{IP: "1.2.3.4"}},
			geocoder: portstest.NewGeocoder,
		},
		{
			name:     "no suggestion",
			origin:   &portstest.OriginLocator{Origin: ports.Origin{Country: "Atlantis"}},
			geocoder: portstest.NewGeocoder,
		},
		{
			name:   "suggest fails",
			origin: &portstest.OriginLocator{Origin: ports.Origin{Country: "Netherlands"}},
			geocoder: func() *portstest.Geocoder {
				g := portstest.NewGeocoder()
				g.OnSuggest("Netherlands", nil, apperr.Provider("500"))
				return g
			},
		},
		{
			name:   "retrieve fails",
			origin: &portstest.OriginLocator{Origin: ports.Origin{Country: "Netherlands"}},
			geocoder: func() *portstest.Geocoder {
				g := portstest.NewGeocoder()
				g.OnSuggest("Netherlands", []geo.Suggestion{{ID: "nl"}}, nil)
				return g
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := newResolver(tc.origin, tc.geocoder()).Resolve(context.Background(), "")
			if res.Source != SourceFallback || res.View != fallback {
				t.Fatalf("expected fallback view, got %+v", res)
			}
		})
	}
}

func TestConstructUsesFallbackWhenOriginFails(t *testing.T) {
	origin := &portstest.OriginLocator{Err: apperr.Network("unreachable", context.DeadlineExceeded)}

	var constructedWith *geo.View
	factory := func(view geo.View) mapsurface.MapSurface {
		constructedWith = &view
		return mapsurface.New(view, nil)
	}

	surface, res := newResolver(origin, portstest.NewGeocoder()).Construct(context.Background(), "", factory)

	if surface == nil || constructedWith == nil {
		t.Fatal("surface was never constructed")
	}
	if *constructedWith != fallback || res.Source != SourceFallback {
		t.Fatalf("constructed with %+v, want %+v", *constructedWith, fallback)
	}
	state := surface.(*mapsurface.Surface).State()
	if state.Center != fallback.Center || state.Zoom != fallback.Zoom {
		t.Fatalf("surface state %+v does not match fallback", state)
	}
}
