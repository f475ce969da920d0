// Package bootstrap picks the map's first view from the caller's network
// origin, falling back to a fixed view whenever any step fails.
package bootstrap

import (
	"context"
	"time"

	"tanktally_backend/internal/geo"
	"tanktally_backend/internal/mapsurface"
	"tanktally_backend/internal/ports"
	"tanktally_backend/platform/apperr"
	"tanktally_backend/platform/logger"

	"github.com/google/uuid"
)

// Source says where a view came from.
type Source string

const (
	SourceOrigin   Source = "origin"
	SourceFallback Source = "fallback"
)

// Result is the outcome of Resolve.
type Result struct {
	View   geo.View `json:"view"`
	Source Source   `json:"source"`
	Region string   `json:"region,omitempty"`
}

// Options configures a Resolver.
type Options struct {
	Origin       ports.OriginLocator
	Geocoder     ports.Geocoder
	Fallback     geo.View
	RegionalZoom float64
	// StepTimeout bounds each provider call. Zero means no extra bound.
	StepTimeout time.Duration
	NewToken    func() string
	Log         *logger.Logger
}

// Resolver computes the initial view.
type Resolver struct {
	origin       ports.OriginLocator
	geocoder     ports.Geocoder
	fallback     geo.View
	regionalZoom float64
	stepTimeout  time.Duration
	newToken     func() string
	log          *logger.Logger
}

// New creates a Resolver.
func New(opts Options) *Resolver {
	newToken := opts.NewToken
	if newToken == nil {
		newToken = uuid.NewString
	}
	return &Resolver{
		origin:       opts.Origin,
		geocoder:     opts.Geocoder,
		fallback:     opts.Fallback,
		regionalZoom: opts.RegionalZoom,
		stepTimeout:  opts.StepTimeout,
		newToken:     newToken,
		log:          opts.Log,
	}
}

// Resolve always returns a usable view.
func (r *Resolver) Resolve(ctx context.Context, ipHint string) Result {
	region, center, err := r.locate(ctx, ipHint)
	if err != nil {
		r.log.Info("initial view falls back to default", "error", err, "kind", apperr.GetKind(err).String())
		return Result{View: r.fallback, Source: SourceFallback}
	}

	r.log.Debug("initial view from origin", "region", region, "center", center.String())
	return Result{
		View:   geo.View{Center: center, Zoom: r.regionalZoom},
		Source: SourceOrigin,
		Region: region,
	}
}

// Construct resolves the view first and only then builds the surface, so a
// surface never exists without a center and zoom.
func (r *Resolver) Construct(ctx context.Context, ipHint string, factory mapsurface.Factory) (mapsurface.MapSurface, Result) {
	res := r.Resolve(ctx, ipHint)
	return factory(res.View), res
}

func (r *Resolver) locate(ctx context.Context, ipHint string) (string, geo.Coordinates, error) {
	var origin ports.Origin
	err := r.step(ctx, func(ctx context.Context) error {
		var err error
		origin, err = r.origin.LocateByOrigin(ctx, ipHint)
		return err
	})
	if err != nil {
		return "", geo.Coordinates{}, err
	}

	region := origin.RegionName()
	if region == "" {
		return "", geo.Coordinates{}, apperr.NotFound("origin has no region name")
	}

	token := r.newToken()

	var suggestions []geo.Suggestion
	err = r.step(ctx, func(ctx context.Context) error {
		var err error
		suggestions, err = r.geocoder.Suggest(ctx, region, token)
		return err
	})
	if err != nil {
		return "", geo.Coordinates{}, err
	}
	if len(suggestions) == 0 {
		return "", geo.Coordinates{}, apperr.NotFound("no suggestion for region " + region)
	}

	var center geo.Coordinates
	err = r.step(ctx, func(ctx context.Context) error {
		var err error
		center, err = r.geocoder.Retrieve(ctx, suggestions[0].ID, token)
		return err
	})
	if err != nil {
		return "", geo.Coordinates{}, err
	}
	if err := center.Validate(); err != nil {
		return "", geo.Coordinates{}, err
	}

	return region, center, nil
}

func (r *Resolver) step(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.stepTimeout)
		defer cancel()
	}
	return fn(ctx)
}
