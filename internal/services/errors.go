package services

import (
	"errors"
	"fmt"

	"github.com/huangang/studyhub/internal/authz"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = authz.ErrDenied
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrStudyFull    = errors.New("study has reached its member limit")
	ErrFileRejected = errors.New("file rejected")
)

// ValidationError reports a bad input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func notFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

func conflict(message string) error {
	return fmt.Errorf("%w: %s", ErrConflict, message)
}
