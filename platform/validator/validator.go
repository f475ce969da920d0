// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"errors"
	"strings"

	"tanktally_backend/platform/apperr"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator for structured validation.
// Using a struct allows for dependency injection and easier testing.
type Validator struct {
	v *validator.Validate
}

// FieldError is one failed rule, shaped for API responses.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// New creates a new Validator instance with the domain rules registered:
//
//	field_id   "start" or "end"
//	longitude  within [-180, 180]
//	latitude   within [-90, 90]
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("field_id", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "start", "end":
			return true
		}
		return false
	})
	_ = v.RegisterValidation("longitude", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return f >= -180 && f <= 180
	})
	_ = v.RegisterValidation("latitude", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return f >= -90 && f <= 90
	})
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

// Validate runs Struct and converts failures into an apperr validation error
// carrying per-field details.
func (val *Validator) Validate(s interface{}) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.KindValidation, "invalid input", err)
	}

	details := make([]FieldError, 0, len(verrs))
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
		names = append(names, fe.Field())
	}
	return apperr.Validation("invalid " + strings.Join(names, ", ")).WithDetails(details)
}
