// Package interfaces defines the persistence contract shared by the API
// layer and the SQLite store, so handlers can be tested against mocks.
package interfaces

import (
	"context"
	"errors"

	"coursehub/pkg/types"
)

// Store-level sentinel errors. The store maps driver errors onto these
// so handlers can translate them to HTTP statuses without inspecting
// SQLite internals.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrCourseNotFound  = errors.New("course not found")
	ErrDuplicateEmail  = errors.New("user with this email already exists")
	ErrAlreadyEnrolled = errors.New("user already enrolled in course")
)

// Store handles all record persistence for the CRUD layer.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, userID string) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)

	// Course operations
	CreateCourse(ctx context.Context, course *types.Course) error
	GetCourse(ctx context.Context, courseID string) (*types.Course, error)
	UpdateCourse(ctx context.Context, course *types.Course) error
	ListCourses(ctx context.Context) ([]*types.Course, error)
	ListCoursesForUser(ctx context.Context, userID, role string) ([]*types.Course, error)
	EnrollStudent(ctx context.Context, courseID, userID string) error

	// Lesson operations
	CreateLesson(ctx context.Context, lesson *types.Lesson) error
	ListLessons(ctx context.Context, courseID string) ([]*types.Lesson, error)

	// Assignment operations
	CreateAssignment(ctx context.Context, assignment *types.Assignment) error
	ListAssignments(ctx context.Context, courseID string) ([]*types.Assignment, error)

	// Health and lifecycle
	HealthCheck(ctx context.Context) error
	Close() error
}
