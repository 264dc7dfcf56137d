package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserValidate(t *testing.T) {
	valid := User{
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      RoleStudent,
	}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Email = "not-an-email"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidEmail)

	bad = valid
	bad.FirstName = "   "
	assert.ErrorIs(t, bad.Validate(), ErrMissingName)

	bad = valid
	bad.LastName = ""
	assert.ErrorIs(t, bad.Validate(), ErrMissingName)

	bad = valid
	bad.Role = "janitor"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidRole)
}

func TestCourseValidate(t *testing.T) {
	valid := Course{Title: "Distributed Systems", TeacherID: "teacher-1"}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Title = ""
	assert.ErrorIs(t, bad.Validate(), ErrInvalidCourseTitle)

	bad = valid
	bad.Title = strings.Repeat("x", 201)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidCourseTitle)

	bad = valid
	bad.TeacherID = "has spaces"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidUserID)
}

func TestLessonValidate(t *testing.T) {
	assert.NoError(t, (&Lesson{Title: "Intro"}).Validate())
	assert.ErrorIs(t, (&Lesson{Title: ""}).Validate(), ErrInvalidLessonTitle)
}

func TestIsValidUserID(t *testing.T) {
	assert.True(t, IsValidUserID("user-1"))
	assert.True(t, IsValidUserID("USER_42"))
	assert.False(t, IsValidUserID(""))
	assert.False(t, IsValidUserID("has spaces"))
	assert.False(t, IsValidUserID("emoji🙂"))
	assert.False(t, IsValidUserID(strings.Repeat("a", 51)))
}

func TestIsValidRole(t *testing.T) {
	assert.True(t, IsValidRole(RoleStudent))
	assert.True(t, IsValidRole(RoleTeacher))
	assert.True(t, IsValidRole(RoleAdmin))
	assert.False(t, IsValidRole("superuser"))
	assert.False(t, IsValidRole(""))
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(""))
	assert.True(t, IsBlank("   \t\n"))
	assert.False(t, IsBlank("hello"))
	assert.False(t, IsBlank("  x  "))
}

func TestIsEnrolled(t *testing.T) {
	course := Course{StudentIDs: []string{"s1", "s2"}}
	assert.True(t, course.IsEnrolled("s1"))
	assert.False(t, course.IsEnrolled("s3"))

	empty := Course{}
	assert.False(t, empty.IsEnrolled("s1"))
}
