// Package registry tracks every live connection and the rooms it
// currently belongs to. It owns the connection side of the membership
// fact; the room directory owns the room side.
package registry

import (
	"sync"

	"coursehub/pkg/types"
)

// Conn is the handle the registry and router hold for a live client
// connection. The transport layer implements it; the core never touches
// the underlying socket.
type Conn interface {
	ID() string
	UserID() string
	UserName() string
	Send(frame *types.Frame) error
	Close() error
}

type entry struct {
	conn  Conn
	rooms map[string]struct{}
}

// Registry manages live connections with thread-safe operations.
// Membership mutations happen only on the hub goroutine; the RWMutex
// exists so read-only snapshots stay safe for callers outside it.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*entry
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*entry),
	}
}

// Register adds a connection with an empty membership set. A duplicate
// ID is a programmer error, not a runtime condition.
func (r *Registry) Register(conn Conn) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.ID()]; exists {
		return ErrAlreadyRegistered
	}

	r.conns[conn.ID()] = &entry{
		conn:  conn,
		rooms: make(map[string]struct{}),
	}
	return nil
}

// Unregister removes the connection and returns the snapshot of rooms
// it belonged to, for the caller to clean up in the room directory.
// Idempotent: a second call returns nil.
func (r *Registry) Unregister(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.conns[connID]
	if !exists {
		return nil
	}
	delete(r.conns, connID)

	rooms := make([]string, 0, len(e.rooms))
	for room := range e.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Get returns the connection handle for delivery.
func (r *Registry) Get(connID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.conns[connID]
	if !exists {
		return nil, false
	}
	return e.conn, true
}

// MembershipsOf returns a read-only snapshot of the rooms the
// connection has joined. Nil if the connection is not registered.
func (r *Registry) MembershipsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.conns[connID]
	if !exists {
		return nil
	}

	rooms := make([]string, 0, len(e.rooms))
	for room := range e.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// AddMembership records that the connection joined a room. No-op if the
// connection is unknown or already a member.
func (r *Registry) AddMembership(connID, roomKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, exists := r.conns[connID]; exists {
		e.rooms[roomKey] = struct{}{}
	}
}

// RemoveMembership records that the connection left a room. No-op if
// either side of the fact is already gone.
func (r *Registry) RemoveMembership(connID, roomKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, exists := r.conns[connID]; exists {
		delete(e.rooms, roomKey)
	}
}

// IsMember reports whether the connection currently belongs to the room.
func (r *Registry) IsMember(connID, roomKey string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.conns[connID]
	if !exists {
		return false
	}
	_, member := e.rooms[roomKey]
	return member
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
