package types

import "errors"

// Validation errors shared across the API layer and the store.
var (
	ErrInvalidEmail       = errors.New("email must be a valid address")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrMissingName        = errors.New("first name and last name are required")
	ErrInvalidRole        = errors.New("role must be 'student', 'teacher' or 'admin'")
	ErrInvalidCourseTitle = errors.New("course title must be 1-200 characters")
	ErrInvalidLessonTitle = errors.New("lesson title must be 1-200 characters")
	ErrInvalidUserID      = errors.New("user ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
)
