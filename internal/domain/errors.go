package domain

import "errors"

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
	ErrIneligible   = errors.New("action not allowed")
	ErrInFlight     = errors.New("action already in progress")
)

// ValidationError is a local validation failure. No request was sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// IneligibleError is returned when an action is attempted that the
// eligibility rules disallow. Reason is the user-facing disabled reason.
type IneligibleError struct {
	Action string
	Reason string
}

func (e *IneligibleError) Error() string {
	return e.Action + ": " + e.Reason
}

func (e *IneligibleError) Unwrap() error {
	return ErrIneligible
}
