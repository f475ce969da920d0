package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"tanktally_backend/internal/bootstrap"
	"tanktally_backend/internal/events"
	"tanktally_backend/internal/geo"
	"tanktally_backend/internal/planner"
	"tanktally_backend/internal/provider/ipapi"
	"tanktally_backend/internal/provider/mapbox"
	"tanktally_backend/internal/resolver"
	"tanktally_backend/platform/config"
	"tanktally_backend/platform/logger"
)

const stepTimeout = 15 * time.Second

type routeSummary struct {
	PlannerID string          `json:"plannerId"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Start     geo.Coordinates `json:"start"`
	End       geo.Coordinates `json:"end"`
	Points    int             `json:"points"`
	Geometry  [][2]float64    `json:"geometry,omitempty"`
}

func main() {
	from := flag.String("from", "", "start address")
	to := flag.String("to", "", "end address")
	withGeometry := flag.Bool("geometry", false, "include route coordinates in the output")
	flag.Parse()

	if *from == "" || *to == "" {
		fmt.Fprintln(os.Stderr, "usage: plan-route --from <address> --to <address>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.GetEnv())
	log.Info("planning route", "from", *from, "to", *to)

	ctx := context.Background()
	bus := events.NewInMemoryBus(log)
	feed := make(chan events.Event, 256)
	bus.Subscribe(events.Wildcard, events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		select {
		case feed <- event:
		default:
		}
		return nil
	}))

	mapboxClient := mapbox.NewFromConfig(cfg, cfg.GetSuggestLimit(), log)
	boot := bootstrap.New(bootstrap.Options{
		Origin:   ipapi.New(cfg.GetIPLookupURL(), cfg.GetProviderTimeout(), log),
		Geocoder: mapboxClient,
		Fallback: geo.View{
			Center: geo.Coordinates{Longitude: cfg.GetDefaultLongitude(), Latitude: cfg.GetDefaultLatitude()},
			Zoom:   cfg.GetDefaultZoom(),
		},
		RegionalZoom: cfg.GetRegionalZoom(),
		StepTimeout:  cfg.GetBootstrapTimeout(),
		Log:          log,
	})
	registry := planner.NewRegistry(planner.Dependencies{
		Geocoder: mapboxClient,
		Router:   mapboxClient,
		Resolver: resolver.New(mapboxClient, log),
		Bus:      bus,
		Log:      log,
	}, planner.Settings{Debounce: cfg.GetSuggestDebounce()}, boot, 0)
	defer registry.Close()

	p, _, err := registry.Create(ctx, "")
	if err != nil {
		log.Error("failed to create planner", "error", err)
		os.Exit(1)
	}

	if err := place(ctx, p, feed, geo.FieldStart, *from); err != nil {
		log.Error("start address failed", "error", err)
		os.Exit(1)
	}
	if err := place(ctx, p, feed, geo.FieldEnd, *to); err != nil {
		log.Error("end address failed", "error", err)
		os.Exit(1)
	}

	rendered, err := awaitRoute(feed)
	if err != nil {
		log.Error("routing failed", "error", err)
		os.Exit(1)
	}

	summary := routeSummary{
		PlannerID: p.ID(),
		From:      *from,
		To:        *to,
		Start:     rendered.Start,
		End:       rendered.End,
		Points:    rendered.Points,
	}
	if *withGeometry {
		snap, err := p.Snapshot(ctx)
		if err == nil && snap.Map != nil {
			summary.Geometry = snap.Map.Route().Pairs()
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Error("failed to write output", "error", err)
		os.Exit(1)
	}
}

// place types text into field, picks the first suggestion and waits until
// the field holds coordinates.
func place(ctx context.Context, p *planner.Planner, feed <-chan events.Event, field geo.FieldID, text string) error {
	if err := p.SetText(ctx, field, text); err != nil {
		return err
	}

	var first geo.Suggestion
	err := await(feed, func(event events.Event) (bool, error) {
		switch e := event.(type) {
		case events.SuggestionsUpdated:
			if e.Field != field || len(e.Suggestions) == 0 {
				return false, nil
			}
			first = e.Suggestions[0]
			return true, nil
		case events.SuggestionsFailed:
			if e.Field == field {
				return true, fmt.Errorf("suggest %q: %s", text, e.Message)
			}
		}
		return false, nil
	})
	if err != nil {
		return err
	}

	if err := p.Select(ctx, field, first.ID); err != nil {
		return err
	}
	return await(feed, func(event events.Event) (bool, error) {
		switch e := event.(type) {
		case events.LocationResolved:
			return e.Field == field, nil
		case events.ResolveFailed:
			if e.Field == field {
				return true, fmt.Errorf("resolve %q: %s", first.Label, e.Message)
			}
		}
		return false, nil
	})
}

func awaitRoute(feed <-chan events.Event) (events.RouteRendered, error) {
	var rendered events.RouteRendered
	err := await(feed, func(event events.Event) (bool, error) {
		switch e := event.(type) {
		case events.RouteRendered:
			rendered = e
			return true, nil
		case events.RouteFailed:
			return true, errors.New(e.Message)
		}
		return false, nil
	})
	return rendered, err
}

func await(feed <-chan events.Event, match func(events.Event) (bool, error)) error {
	deadline := time.After(stepTimeout)
	for {
		select {
		case event := <-feed:
			if done, err := match(event); done || err != nil {
				return err
			}
		case <-deadline:
			return errors.New("timed out waiting for the planner")
		}
	}
}
