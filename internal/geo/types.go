// Package geo holds the value types shared by the planner components.
package geo

import (
	"fmt"
	"math"

	"tanktally_backend/platform/apperr"
)

// FieldID identifies one of the two location inputs.
type FieldID string

const (
	FieldStart FieldID = "start"
	FieldEnd   FieldID = "end"
)

// Fields lists the field identities in display order.
var Fields = []FieldID{FieldStart, FieldEnd}

// ParseFieldID validates a raw field name.
func ParseFieldID(raw string) (FieldID, error) {
	switch FieldID(raw) {
	case FieldStart, FieldEnd:
		return FieldID(raw), nil
	}
	return "", apperr.Validation(fmt.Sprintf("unknown field %q", raw))
}

// Coordinates is a WGS84 position, longitude first as the providers expect.
type Coordinates struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Validate reports whether both components are finite and within range.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Longitude) || math.IsNaN(c.Latitude) {
		return apperr.Validation("coordinates must be numbers")
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return apperr.Validation(fmt.Sprintf("longitude %v out of range [-180,180]", c.Longitude))
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return apperr.Validation(fmt.Sprintf("latitude %v out of range [-90,90]", c.Latitude))
	}
	return nil
}

// Pair returns the coordinates as [lon, lat].
func (c Coordinates) Pair() [2]float64 { return [2]float64{c.Longitude, c.Latitude} }

// String formats the position as "lon,lat", the form used in routing paths.
func (c Coordinates) String() string {
	return fmt.Sprintf("%g,%g", c.Longitude, c.Latitude)
}

// Suggestion is a provider-ranked candidate for partial text. ID is the only
// handle used to resolve coordinates later.
type Suggestion struct {
	ID             string `json:"id"`
	Label          string `json:"label"`
	SecondaryLabel string `json:"secondaryLabel"`
}

// RouteGeometry is an ordered polyline.
type RouteGeometry []Coordinates

// Pairs returns the geometry as [[lon, lat], ...].
func (g RouteGeometry) Pairs() [][2]float64 {
	out := make([][2]float64, len(g))
	for i, c := range g {
		out[i] = c.Pair()
	}
	return out
}

// View is a map center and zoom level.
type View struct {
	Center Coordinates `json:"center"`
	Zoom   float64     `json:"zoom"`
}
