package planner

import (
	"time"

	"tanktally_backend/internal/fields"
	"tanktally_backend/internal/geo"
	"tanktally_backend/internal/mapsurface"
	"tanktally_backend/internal/session"
)

// Snapshot is a point-in-time copy of a planner.
type Snapshot struct {
	ID          string            `json:"plannerId"`
	CreatedAt   time.Time         `json:"createdAt"`
	InitialView geo.View          `json:"initialView"`
	Fields      fields.Snapshot   `json:"fields"`
	Session     session.Token     `json:"session"`
	Map         *mapsurface.State `json:"map,omitempty"`
}
