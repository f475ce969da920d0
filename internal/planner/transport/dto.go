package transport

import (
	"tanktally_backend/internal/geo"
	"tanktally_backend/internal/session"
)

// PlannerURI binds the :id path parameter.
type PlannerURI struct {
	ID string `uri:"id" validate:"required,uuid4"`
}

// FieldURI binds the :id and :field path parameters.
type FieldURI struct {
	ID    string `uri:"id" validate:"required,uuid4"`
	Field string `uri:"field" validate:"required,field_id"`
}

// CreatePlannerResponse is returned when a planner is created.
type CreatePlannerResponse struct {
	PlannerID string   `json:"plannerId"`
	View      geo.View `json:"view"`
	Source    string   `json:"source"`
	Region    string   `json:"region,omitempty"`
}

// SetTextRequest is the request body for a keystroke. An empty string clears the field.
type SetTextRequest struct {
	Text *string `json:"text" validate:"required,max=256"`
}

// SelectSuggestionRequest is the request body for choosing a suggestion.
type SelectSuggestionRequest struct {
	SuggestionID string `json:"suggestionId" validate:"required,max=512"`
}

// AcceptedResponse acknowledges work that completes asynchronously.
type AcceptedResponse struct {
	PlannerID string      `json:"plannerId"`
	Field     geo.FieldID `json:"field"`
	Status    string      `json:"status"`
}

// RotateSessionResponse carries the new session.
type RotateSessionResponse struct {
	PlannerID string        `json:"plannerId"`
	Session   session.Token `json:"session"`
}
