package mapbox

import (
	"context"
	"fmt"
	"net/url"

	"tanktally_backend/internal/geo"
	"tanktally_backend/platform/apperr"
)

// Route returns the geometry of the first driving route between start and end.
func (c *Client) Route(ctx context.Context, start, end geo.Coordinates) (geo.RouteGeometry, error) {
	params := url.Values{}
	params.Set("geometries", "geojson")
	params.Set("overview", "full")
	params.Set("access_token", c.accessToken)

	waypoints := url.PathEscape(start.String() + ";" + end.String())
	reqURL := fmt.Sprintf("%s/%s?%s", c.directionsURL, waypoints, params.Encode())

	var payload directionsResponse
	if err := c.getJSON(ctx, "route", reqURL, &payload); err != nil {
		return nil, err
	}

	switch payload.Code {
	case "Ok", "":
	case "NoRoute", "NoSegment":
		return nil, apperr.NotFound("no route between endpoints").WithOp("route")
	default:
		return nil, apperr.Provider(fmt.Sprintf("directions failed: %s %s", payload.Code, payload.Message)).WithOp("route")
	}

	if len(payload.Routes) == 0 {
		return nil, apperr.NotFound("no route between endpoints").WithOp("route")
	}

	raw := payload.Routes[0].Geometry.Coordinates
	geometry := make(geo.RouteGeometry, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			return nil, apperr.Provider("route geometry has a malformed position").WithOp("route")
		}
		point := geo.Coordinates{Longitude: pair[0], Latitude: pair[1]}
		if err := point.Validate(); err != nil {
			return nil, apperr.Wrap(apperr.KindProvider, "route geometry out of range", err).WithOp("route")
		}
		geometry = append(geometry, point)
	}

	return geometry, nil
}
