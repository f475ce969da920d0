// Package fields holds the state of the start and end location inputs.
//
// A Store is not safe for concurrent use. It is owned by a planner's event
// loop and every mutation happens there.
package fields

import (
	"tanktally_backend/internal/geo"
	"tanktally_backend/platform/apperr"
)

// Field is the state of one location input.
type Field struct {
	ID          geo.FieldID      `json:"id"`
	RawText     string           `json:"rawText"`
	Suggestions []geo.Suggestion `json:"suggestions"`
	Resolved    *geo.Coordinates `json:"resolved,omitempty"`
	// Revision increases on every text change. A resolution started at one
	// revision is only applied while the field is still at that revision.
	Revision uint64 `json:"revision"`
}

func (f Field) clone() Field {
	out := f
	out.Suggestions = append([]geo.Suggestion(nil), f.Suggestions...)
	if f.Resolved != nil {
		c := *f.Resolved
		out.Resolved = &c
	}
	return out
}

// Snapshot is an immutable copy of both fields.
type Snapshot struct {
	Start  Field       `json:"start"`
	End    Field       `json:"end"`
	Active geo.FieldID `json:"active,omitempty"`
}

// Get returns the field with the given id.
func (s Snapshot) Get(id geo.FieldID) Field {
	if id == geo.FieldEnd {
		return s.End
	}
	return s.Start
}

// Endpoints returns both resolved coordinates when both are present.
func (s Snapshot) Endpoints() (start, end geo.Coordinates, ok bool) {
	if s.Start.Resolved == nil || s.End.Resolved == nil {
		return geo.Coordinates{}, geo.Coordinates{}, false
	}
	return *s.Start.Resolved, *s.End.Resolved, true
}

// Store owns both fields and the active field marker.
type Store struct {
	fields map[geo.FieldID]*Field
	active geo.FieldID
}

// NewStore creates a store with both fields empty and none active.
func NewStore() *Store {
	s := &Store{fields: make(map[geo.FieldID]*Field, len(geo.Fields))}
	for _, id := range geo.Fields {
		s.fields[id] = &Field{ID: id}
	}
	return s
}

func (s *Store) field(id geo.FieldID) (*Field, error) {
	f, ok := s.fields[id]
	if !ok {
		return nil, apperr.Validation("unknown field: " + string(id))
	}
	return f, nil
}

// SetText records an edit. The field becomes active and loses its
// suggestions; a changed text also drops the resolution and bumps the revision.
func (s *Store) SetText(id geo.FieldID, text string) error {
	f, err := s.field(id)
	if err != nil {
		return err
	}

	s.active = id
	f.Suggestions = nil
	if f.RawText == text {
		return nil
	}
	f.RawText = text
	f.Resolved = nil
	f.Revision++
	return nil
}

// SetSuggestions replaces the suggestion list. It reports false and changes
// nothing when the field is not the active one.
func (s *Store) SetSuggestions(id geo.FieldID, suggestions []geo.Suggestion) (bool, error) {
	f, err := s.field(id)
	if err != nil {
		return false, err
	}
	if s.active != id {
		return false, nil
	}
	f.Suggestions = append([]geo.Suggestion(nil), suggestions...)
	return true, nil
}

// ClearSuggestions empties the suggestion list regardless of focus.
func (s *Store) ClearSuggestions(id geo.FieldID) error {
	f, err := s.field(id)
	if err != nil {
		return err
	}
	f.Suggestions = nil
	return nil
}

// SetResolved stores coordinates for the field. RawText is never touched.
func (s *Store) SetResolved(id geo.FieldID, coords geo.Coordinates) error {
	f, err := s.field(id)
	if err != nil {
		return err
	}
	if err := coords.Validate(); err != nil {
		return err
	}
	f.Resolved = &coords
	return nil
}

// Revision returns the field's current revision.
func (s *Store) Revision(id geo.FieldID) (uint64, error) {
	f, err := s.field(id)
	if err != nil {
		return 0, err
	}
	return f.Revision, nil
}

// Field returns a copy of one field.
func (s *Store) Field(id geo.FieldID) (Field, error) {
	f, err := s.field(id)
	if err != nil {
		return Field{}, err
	}
	return f.clone(), nil
}

// Active returns the most recently edited field, or "" before any edit.
func (s *Store) Active() geo.FieldID { return s.active }

// Snapshot returns a deep copy of both fields.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Start:  s.fields[geo.FieldStart].clone(),
		End:    s.fields[geo.FieldEnd].clone(),
		Active: s.active,
	}
}
