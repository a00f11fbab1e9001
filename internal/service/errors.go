// Package service holds the application logic between the HTTP handlers and
// the repositories.  Services return the errors below; handlers decide the
// status codes.
package service

import "errors"

var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("username or email already exists")
	ErrUnauthorized = errors.New("could not validate credentials")
	ErrNotFound     = errors.New("calculation not found")
)

// ValidationError names the offending field.  It matches ErrValidation
// through errors.Is.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }
