package classpoll_errors

import (
	"errors"
)

// Common errors
var (
	ErrValidation    = errors.New("validation failed")
	ErrConflict      = errors.New("a poll is already active")
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("poll is not active")
	ErrDuplicateVote = errors.New("already voted")
	ErrStorage       = errors.New("storage failure")
	ErrRateLimited   = errors.New("rate limited")
)

// ValidationError carries a human readable reason and matches ErrValidation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError.
func Invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

// PublicMessage returns the text shown to callers for err. Storage and
// unknown failures collapse to a generic message.
func PublicMessage(err error) string {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Reason
	case errors.Is(err, ErrConflict):
		return "A poll is already active. Please end it before creating a new one."
	case errors.Is(err, ErrNotFound):
		return "Poll not found"
	case errors.Is(err, ErrInvalidState):
		return "Poll is not active"
	case errors.Is(err, ErrDuplicateVote):
		return "You have already voted"
	case errors.Is(err, ErrRateLimited):
		return "Too many requests"
	default:
		return "Server error"
	}
}
