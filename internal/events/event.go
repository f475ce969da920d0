// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"tanktally_backend/internal/geo"
	"tanktally_backend/internal/mapsurface"
	"tanktally_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions and constants
var NewBaseEvent = events.NewBaseEvent

const Wildcard = events.Wildcard

// PlannerEvent is an event scoped to one planner.
type PlannerEvent interface {
	Event
	Planner() string
}

// PlannerRef carries the planner an event belongs to.
type PlannerRef struct {
	PlannerID string `json:"plannerId"`
}

// Planner returns the planner id.
func (r PlannerRef) Planner() string { return r.PlannerID }

// Failure describes an error in event payloads.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// =============================================================================
// Planner Lifecycle Events
// =============================================================================

// PlannerCreated is published once a planner has its initial view.
type PlannerCreated struct {
	BaseEvent
	PlannerRef
	View   geo.View `json:"view"`
	Source string   `json:"source"`
}

func (e PlannerCreated) EventName() string { return "planner.created" }

// PlannerStopped is published when a planner is deleted or evicted.
type PlannerStopped struct {
	BaseEvent
	PlannerRef
	Reason string `json:"reason"`
}

func (e PlannerStopped) EventName() string { return "planner.stopped" }

// SessionRotated is published whenever the search session token changes.
type SessionRotated struct {
	BaseEvent
	PlannerRef
	Reason string `json:"reason"`
}

func (e SessionRotated) EventName() string { return "planner.session.rotated" }

// =============================================================================
// Suggestion & Resolution Events
// =============================================================================

// SuggestionsUpdated is published when a field's suggestion list was replaced.
type SuggestionsUpdated struct {
	BaseEvent
	PlannerRef
	Field       geo.FieldID      `json:"field"`
	Seq         uint64           `json:"seq"`
	Suggestions []geo.Suggestion `json:"suggestions"`
}

func (e SuggestionsUpdated) EventName() string { return "planner.suggestions.updated" }

// SuggestionsFailed is published when a suggestion query failed. The field's
// suggestions have been cleared.
type SuggestionsFailed struct {
	BaseEvent
	PlannerRef
	Field geo.FieldID `json:"field"`
	Seq   uint64      `json:"seq"`
	Failure
}

func (e SuggestionsFailed) EventName() string { return "planner.suggestions.failed" }

// LocationResolved is published when a field received coordinates.
type LocationResolved struct {
	BaseEvent
	PlannerRef
	Field        geo.FieldID     `json:"field"`
	SuggestionID string          `json:"suggestionId"`
	Coordinates  geo.Coordinates `json:"coordinates"`
}

func (e LocationResolved) EventName() string { return "planner.location.resolved" }

// ResolveFailed is published when a selection could not be resolved.
type ResolveFailed struct {
	BaseEvent
	PlannerRef
	Field        geo.FieldID `json:"field"`
	SuggestionID string      `json:"suggestionId"`
	Failure
}

func (e ResolveFailed) EventName() string { return "planner.location.resolve_failed" }

// =============================================================================
// Route & Map Events
// =============================================================================

// RouteRendered is published after the route layer was replaced.
type RouteRendered struct {
	BaseEvent
	PlannerRef
	Start  geo.Coordinates `json:"start"`
	End    geo.Coordinates `json:"end"`
	Points int             `json:"points"`
}

func (e RouteRendered) EventName() string { return "planner.route.rendered" }

// RouteFailed is published when routing failed. The previous layer is kept.
type RouteFailed struct {
	BaseEvent
	PlannerRef
	Start geo.Coordinates `json:"start"`
	End   geo.Coordinates `json:"end"`
	Failure
}

func (e RouteFailed) EventName() string { return "planner.route.failed" }

// RouteCleared is published when an endpoint lost its coordinates and the
// route layer was emptied.
type RouteCleared struct {
	BaseEvent
	PlannerRef
}

func (e RouteCleared) EventName() string { return "planner.route.cleared" }

// MapUpdated carries the full map surface state after every change.
type MapUpdated struct {
	BaseEvent
	PlannerRef
	State mapsurface.State `json:"state"`
}

func (e MapUpdated) EventName() string { return "planner.map.updated" }
