package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursehub/pkg/types"
)

type fakeConn struct {
	id     string
	closed bool
}

func (c *fakeConn) ID() string                { return c.id }
func (c *fakeConn) UserID() string            { return "" }
func (c *fakeConn) UserName() string          { return "" }
func (c *fakeConn) Send(_ *types.Frame) error { return nil }
func (c *fakeConn) Close() error              { c.closed = true; return nil }

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	conn := &fakeConn{id: "conn-1"}

	require.NoError(t, r.Register(conn))
	assert.Equal(t, 1, r.Count())

	got, ok := r.Get("conn-1")
	require.True(t, ok)
	assert.Equal(t, conn, got)

	_, ok = r.Get("conn-2")
	assert.False(t, ok)
}

func TestRegisterNilConnection(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register(nil), ErrNilConnection)
}

func TestRegisterDuplicateID(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeConn{id: "conn-1"}))

	err := r.Register(&fakeConn{id: "conn-1"})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, 1, r.Count())
}

func TestUnregisterReturnsMembershipSnapshot(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeConn{id: "conn-1"}))

	r.AddMembership("conn-1", "course-1")
	r.AddMembership("conn-1", "course-2")

	rooms := r.Unregister("conn-1")
	assert.ElementsMatch(t, []string{"course-1", "course-2"}, rooms)
	assert.Equal(t, 0, r.Count())
}

func TestUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeConn{id: "conn-1"}))

	first := r.Unregister("conn-1")
	assert.NotNil(t, first)

	second := r.Unregister("conn-1")
	assert.Nil(t, second)
}

func TestMembershipLifecycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeConn{id: "conn-1"}))

	assert.False(t, r.IsMember("conn-1", "course-1"))

	r.AddMembership("conn-1", "course-1")
	assert.True(t, r.IsMember("conn-1", "course-1"))
	assert.Equal(t, []string{"course-1"}, r.MembershipsOf("conn-1"))

	// Adding the same membership twice is a no-op.
	r.AddMembership("conn-1", "course-1")
	assert.Len(t, r.MembershipsOf("conn-1"), 1)

	r.RemoveMembership("conn-1", "course-1")
	assert.False(t, r.IsMember("conn-1", "course-1"))
	assert.Empty(t, r.MembershipsOf("conn-1"))
}

func TestMembershipOpsOnUnknownConnection(t *testing.T) {
	r := NewRegistry()

	r.AddMembership("ghost", "course-1")
	assert.False(t, r.IsMember("ghost", "course-1"))
	assert.Nil(t, r.MembershipsOf("ghost"))

	r.RemoveMembership("ghost", "course-1")
	assert.Equal(t, 0, r.Count())
}
