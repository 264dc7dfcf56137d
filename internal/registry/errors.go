package registry

import "errors"

// Registration errors. A duplicate registration indicates a bug in the
// caller, not a recoverable runtime condition.
var (
	ErrNilConnection     = errors.New("connection cannot be nil")
	ErrAlreadyRegistered = errors.New("connection ID already registered")
)
