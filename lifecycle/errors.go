package lifecycle

import "errors"

// Failure kinds. Every *Error carries exactly one of them, so callers can
// branch with errors.Is.
var (
	ErrRole         = errors.New("lifecycle: role not allowed")
	ErrPastDue      = errors.New("lifecycle: due date is not in the future")
	ErrValidation   = errors.New("lifecycle: invalid input")
	ErrConflict     = errors.New("lifecycle: translator already booked at that time")
	ErrState        = errors.New("lifecycle: job is not in the expected state")
	ErrCancelWindow = errors.New("lifecycle: cancel window has closed")
	ErrNotFound     = errors.New("lifecycle: not found")
	ErrFailed       = errors.New("lifecycle: operation failed")
)

// Error is a domain failure with a message meant for the end user.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.Error() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UserMessage returns the localized message of a domain failure, or "" for
// any other error.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
