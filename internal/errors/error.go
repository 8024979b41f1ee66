package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig      Category = "config"
	CategoryPersistence Category = "persistence"
	CategoryServer      Category = "server"
	CategoryCLI         Category = "cli"
)

// PlaceError is a coded error with an explanation and a fix suggestion,
// meant to be printed to an operator's terminal.
type PlaceError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type (config, persistence, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Field names the configuration key involved, if any.
	Field string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *PlaceError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Field)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *PlaceError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *PlaceError) WithSuggestion(s string) *PlaceError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *PlaceError) WithDetail(d string) *PlaceError {
	e.Detail = d
	return e
}

// WithDetailf adds a formatted detailed explanation to the error.
func (e *PlaceError) WithDetailf(format string, args ...any) *PlaceError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithField records the configuration key the error is about.
func (e *PlaceError) WithField(field string) *PlaceError {
	e.Field = field
	return e
}

// Wrap wraps another error.
func (e *PlaceError) Wrap(err error) *PlaceError {
	e.Wrapped = err
	return e
}

// New creates a PlaceError from a registered error code.
func New(code string) *PlaceError {
	template, ok := registry[code]
	if !ok {
		return &PlaceError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &PlaceError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new PlaceError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *PlaceError {
	return &PlaceError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a PlaceError. An error that already
// carries a PlaceError is returned as that PlaceError.
func FromError(err error, code string) *PlaceError {
	if err == nil {
		return nil
	}
	var pe *PlaceError
	if stderrors.As(err, &pe) {
		return pe
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err carries a PlaceError with the given code.
func HasCode(err error, code string) bool {
	var pe *PlaceError
	return stderrors.As(err, &pe) && pe.Code == code
}
