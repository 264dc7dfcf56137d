// Package room maintains the directory of active rooms: room key to
// member connection IDs. Rooms are created lazily on first join and
// removed the moment their member set becomes empty, so a key absent
// from the directory and an empty room are the same observable state.
package room

import (
	"sync"
)

// Directory maps room keys to member sets. Mutations happen only on the
// hub goroutine; the RWMutex keeps concurrent snapshots safe.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
}

// NewDirectory creates an empty room directory.
func NewDirectory() *Directory {
	return &Directory{
		rooms: make(map[string]map[string]struct{}),
	}
}

// Join adds the connection to the room, creating the room if absent.
// Already a member is a no-op, not an error.
func (d *Directory) Join(roomKey, connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	members, exists := d.rooms[roomKey]
	if !exists {
		members = make(map[string]struct{})
		d.rooms[roomKey] = members
	}
	members[connID] = struct{}{}
}

// Leave removes the connection from the room. If the room becomes
// empty it is removed from the directory synchronously. Unknown room or
// membership is a no-op.
func (d *Directory) Leave(roomKey, connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	members, exists := d.rooms[roomKey]
	if !exists {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(d.rooms, roomKey)
	}
}

// MembersOf returns a snapshot of the room's member connection IDs.
// An unknown room yields an empty slice, never an error.
func (d *Directory) MembersOf(roomKey string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members, exists := d.rooms[roomKey]
	if !exists {
		return nil
	}

	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// Exists reports whether the room currently has any members.
func (d *Directory) Exists(roomKey string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, exists := d.rooms[roomKey]
	return exists
}

// Count returns the number of active rooms.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}
