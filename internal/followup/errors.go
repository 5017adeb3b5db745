package followup

import "errors"

var (
	// ErrNotFound: the referenced report or follow-up does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden: the caller does not own the follow-up.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState: the follow-up is already in a terminal state.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidDelay: a check-in must be scheduled in the future.
	ErrInvalidDelay = errors.New("delay must be positive")
)
