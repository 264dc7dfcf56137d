package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinCreatesRoomLazily(t *testing.T) {
	d := NewDirectory()
	assert.False(t, d.Exists("course-1"))
	assert.Equal(t, 0, d.Count())

	d.Join("course-1", "conn-a")
	assert.True(t, d.Exists("course-1"))
	assert.Equal(t, 1, d.Count())
	assert.Equal(t, []string{"conn-a"}, d.MembersOf("course-1"))
}

func TestJoinIsIdempotent(t *testing.T) {
	d := NewDirectory()
	d.Join("course-1", "conn-a")
	d.Join("course-1", "conn-a")

	assert.Len(t, d.MembersOf("course-1"), 1)
}

func TestLeaveRemovesEmptyRoom(t *testing.T) {
	d := NewDirectory()
	d.Join("course-1", "conn-a")
	d.Join("course-1", "conn-b")

	d.Leave("course-1", "conn-a")
	assert.True(t, d.Exists("course-1"))
	assert.Equal(t, []string{"conn-b"}, d.MembersOf("course-1"))

	// Last member out removes the room entirely.
	d.Leave("course-1", "conn-b")
	assert.False(t, d.Exists("course-1"))
	assert.Equal(t, 0, d.Count())
}

func TestLeaveUnknownRoomIsNoOp(t *testing.T) {
	d := NewDirectory()
	d.Leave("course-1", "conn-a")
	assert.Equal(t, 0, d.Count())
}

func TestMembersOfUnknownRoom(t *testing.T) {
	d := NewDirectory()
	assert.Nil(t, d.MembersOf("course-404"))
}

func TestRoomsAreIndependent(t *testing.T) {
	d := NewDirectory()
	d.Join("course-1", "conn-a")
	d.Join("course-2", "conn-a")
	d.Join("course-2", "conn-b")

	d.Leave("course-1", "conn-a")
	assert.False(t, d.Exists("course-1"))
	assert.ElementsMatch(t, []string{"conn-a", "conn-b"}, d.MembersOf("course-2"))
}
