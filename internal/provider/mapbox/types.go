package mapbox

import "tanktally_backend/internal/geo"

// suggestionPayload mirrors the relevant parts of a Search Box suggestion.
type suggestionPayload struct {
	MapboxID       string `json:"mapbox_id"`
	Name           string `json:"name"`
	PlaceFormatted string `json:"place_formatted"`
	FullAddress    string `json:"full_address"`
	FeatureType    string `json:"feature_type"`
}

type suggestResponse struct {
	Suggestions []suggestionPayload `json:"suggestions"`
}

type featureCoordinates struct {
	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`
}

type retrieveFeature struct {
	Properties struct {
		Coordinates featureCoordinates `json:"coordinates"`
	} `json:"properties"`
	Geometry struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

// coordinates prefers the routable point in properties, then the geometry.
func (f retrieveFeature) coordinates() (geo.Coordinates, bool) {
	props := f.Properties.Coordinates
	if props.Longitude != nil && props.Latitude != nil {
		return geo.Coordinates{Longitude: *props.Longitude, Latitude: *props.Latitude}, true
	}
	if len(f.Geometry.Coordinates) >= 2 {
		return geo.Coordinates{Longitude: f.Geometry.Coordinates[0], Latitude: f.Geometry.Coordinates[1]}, true
	}
	return geo.Coordinates{}, false
}

type retrieveResponse struct {
	Features []retrieveFeature `json:"features"`
}

type directionsRoute struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Geometry struct {
		Type        string      `json:"type"`
		Coordinates [][]float64 `json:"coordinates"`
	} `json:"geometry"`
}

type directionsResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Routes  []directionsRoute `json:"routes"`
}
