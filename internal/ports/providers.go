// Package ports declares the provider boundaries the planner depends on.
// Implementations live under internal/provider.
package ports

import (
	"context"

	"tanktally_backend/internal/geo"
)

// Geocoder suggests places for partial text and resolves a chosen suggestion.
// Both calls are scoped by the caller's search session token.
type Geocoder interface {
	Suggest(ctx context.Context, query, sessionToken string) ([]geo.Suggestion, error)
	Retrieve(ctx context.Context, suggestionID, sessionToken string) (geo.Coordinates, error)
}

// Router computes a route between two positions. Providers may return
// several candidates; implementations return the first.
type Router interface {
	Route(ctx context.Context, start, end geo.Coordinates) (geo.RouteGeometry, error)
}

// Origin is the approximate location derived from a network address.
type Origin struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// RegionName picks the most general place name available, which is what the
// bootstrap view is centered on.
func (o Origin) RegionName() string {
	switch {
	case o.Country != "":
		return o.Country
	case o.Region != "":
		return o.Region
	default:
		return o.City
	}
}

// OriginLocator looks up the approximate location of a network origin.
// An empty ipHint means the origin of the calling process.
type OriginLocator interface {
	LocateByOrigin(ctx context.Context, ipHint string) (Origin, error)
}
