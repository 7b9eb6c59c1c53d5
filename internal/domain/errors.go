package domain

import "errors"

// ErrNotFound is returned by stores when a referenced record does not exist
// or does not belong to the referenced initiative.
var ErrNotFound = errors.New("not found")

// ValidationError rejects a request or a write that would break an invariant.
type ValidationError struct {
	Message string
	Details map[string]any
}

func (e *ValidationError) Error() string { return e.Message }

func Invalid(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

// NotFoundError names what was missing while still matching ErrNotFound.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string { return e.What + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(what string) error {
	return &NotFoundError{What: what}
}
