package maps

import "tanktally_backend/internal/geo"

// SuggestRequest represents the query parameters for a one-off suggestion lookup.
type SuggestRequest struct {
	Query        string `form:"q" validate:"required,min=1,max=256"`
	SessionToken string `form:"sessionToken" validate:"omitempty,max=128"`
}

// SuggestResponse echoes the session token so follow-up retrieves can reuse it.
type SuggestResponse struct {
	SessionToken string           `json:"sessionToken"`
	Suggestions  []geo.Suggestion `json:"suggestions"`
}

// RetrieveRequest carries the session the suggestion came from.
type RetrieveRequest struct {
	ID           string `uri:"id" validate:"required,max=512"`
	SessionToken string `form:"sessionToken" validate:"omitempty,max=128"`
}

// RetrieveResponse is the resolved position of a suggestion.
type RetrieveResponse struct {
	ID          string          `json:"id"`
	Coordinates geo.Coordinates `json:"coordinates"`
}

// RouteRequest holds both endpoints of a route lookup.
type RouteRequest struct {
	FromLon *float64 `form:"fromLon" validate:"required,longitude"`
	FromLat *float64 `form:"fromLat" validate:"required,latitude"`
	ToLon   *float64 `form:"toLon" validate:"required,longitude"`
	ToLat   *float64 `form:"toLat" validate:"required,latitude"`
}

// endpoints must only be called after validation.
func (r RouteRequest) endpoints() (geo.Coordinates, geo.Coordinates) {
	return geo.Coordinates{Longitude: *r.FromLon, Latitude: *r.FromLat},
		geo.Coordinates{Longitude: *r.ToLon, Latitude: *r.ToLat}
}

// RouteResponse is a driving route as [longitude, latitude] pairs.
type RouteResponse struct {
	Start    geo.Coordinates `json:"start"`
	End      geo.Coordinates `json:"end"`
	Geometry [][2]float64    `json:"geometry"`
}
