// Package services defines the business logic for contact intake, course
// registration, and the AI consultation flow. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler layer.
package services

import "errors"

var (
	// ErrEmptyMessage is returned when a consultation request contains an
	// empty message.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when a consultation message exceeds the
	// maximum configured length limit.
	ErrMessageTooLong = errors.New("message too long")

	// ErrConsentRequired is returned when a contact submission arrives
	// without the privacy consent flag set.
	ErrConsentRequired = errors.New("privacy consent required")

	// ErrIncompleteRegistration is returned when a registration is missing
	// one or more required fields. Use IncompleteRegistrationError to learn
	// which fields failed.
	ErrIncompleteRegistration = errors.New("registration incomplete")

	// ErrRegistrationNotFound indicates that the requested registration does
	// not exist.
	ErrRegistrationNotFound = errors.New("registration not found")

	// ErrCompletionFailed wraps an external model failure. The cause is kept
	// for server-side logs and must never reach the client.
	ErrCompletionFailed = errors.New("completion failed")
)

// IncompleteRegistrationError carries the names of the required registration
// fields that were empty. It unwraps to ErrIncompleteRegistration so callers
// can branch with errors.Is.
type IncompleteRegistrationError struct {
	Fields []string
}

// Error implements the error interface.
func (e *IncompleteRegistrationError) Error() string {
	return "registration incomplete: missing " + joinFields(e.Fields)
}

// Unwrap lets errors.Is match ErrIncompleteRegistration.
func (e *IncompleteRegistrationError) Unwrap() error { return ErrIncompleteRegistration }

func joinFields(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += ", "
		}
		out += f
	}
	return out
}
