package types

import (
	"regexp"
	"strings"
)

// Compiled once at package initialization.
var (
	userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailRegex  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Validate checks the fields a registration request must supply.
// PasswordHash is not checked here; hashing happens before the user
// reaches the store.
func (u *User) Validate() error {
	if !emailRegex.MatchString(u.Email) {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(u.FirstName) == "" || strings.TrimSpace(u.LastName) == "" {
		return ErrMissingName
	}
	if !IsValidRole(u.Role) {
		return ErrInvalidRole
	}
	return nil
}

// Validate checks course fields before persistence.
func (c *Course) Validate() error {
	if len(c.Title) < 1 || len(c.Title) > 200 {
		return ErrInvalidCourseTitle
	}
	if !IsValidUserID(c.TeacherID) {
		return ErrInvalidUserID
	}
	return nil
}

// Validate checks lesson fields before persistence.
func (l *Lesson) Validate() error {
	if len(l.Title) < 1 || len(l.Title) > 200 {
		return ErrInvalidLessonTitle
	}
	return nil
}

// IsValidUserID checks if a user ID meets format requirements. The
// 1-50 character limit keeps IDs indexable and displayable.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 50 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// IsValidRole checks if the role is one of the recognized roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsBlank reports whether a message body is empty or whitespace-only.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
