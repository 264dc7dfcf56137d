package router

import "errors"

// Rejection errors reported only to the originating connection. None of
// them mutate shared state and none are fatal to the process.
var (
	ErrInvalidRequest = errors.New("malformed event or missing required field")
	ErrNotAMember     = errors.New("sender has not joined this room")
	ErrEmptyBody      = errors.New("message body is empty")
)
