// Package resolver turns a chosen suggestion into coordinates.
package resolver

import (
	"context"
	"strings"

	"tanktally_backend/internal/geo"
	"tanktally_backend/internal/ports"
	"tanktally_backend/platform/apperr"
	"tanktally_backend/platform/logger"

	"golang.org/x/sync/singleflight"
)

// Resolver deduplicates concurrent lookups of the same suggestion id: every
// caller waiting on an id shares one provider call and its outcome.
type Resolver struct {
	geocoder ports.Geocoder
	group    singleflight.Group
	log      *logger.Logger
}

// New creates a Resolver.
func New(geocoder ports.Geocoder, log *logger.Logger) *Resolver {
	return &Resolver{geocoder: geocoder, log: log}
}

// Resolve returns the coordinates for suggestionID. A failure is returned as
// is; there is no fallback to earlier coordinates.
func (r *Resolver) Resolve(ctx context.Context, suggestionID, sessionToken string) (geo.Coordinates, error) {
	ch, err := r.start(ctx, suggestionID, sessionToken)
	if err != nil {
		return geo.Coordinates{}, err
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return geo.Coordinates{}, res.Err
		}
		return res.Val.(geo.Coordinates), nil
	case <-ctx.Done():
		return geo.Coordinates{}, apperr.Network("resolve aborted", ctx.Err()).WithOp("resolve")
	}
}

// start joins or begins the shared lookup. The shared call is detached from
// any single caller's cancellation so one caller leaving does not fail the rest.
func (r *Resolver) start(ctx context.Context, suggestionID, sessionToken string) (<-chan singleflight.Result, error) {
	id := strings.TrimSpace(suggestionID)
	if id == "" {
		return nil, apperr.Validation("suggestion id is required")
	}

	shared := context.WithoutCancel(ctx)
	return r.group.DoChan(id, func() (interface{}, error) {
		coords, err := r.geocoder.Retrieve(shared, id, sessionToken)
		if err != nil {
			r.log.Warn("resolve failed", "suggestionId", id, "error", err)
			return nil, err
		}
		if err := coords.Validate(); err != nil {
			return nil, apperr.Wrap(apperr.KindProvider, "provider returned invalid coordinates", err).WithOp("resolve")
		}
		return coords, nil
	}), nil
}
