package room

import (
	"sort"
	"sync"
)

// Member is anything with a stable identity that can sit in a room.
type Member interface {
	ID() string
}

// Directory indexes room membership both ways: room to members and member to rooms.
// All mutations take the write lock, so a broadcast snapshot never observes a
// half-applied join or leave. Empty rooms are deleted immediately.
type Directory[M Member] struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]M
	byMember map[string]map[string]struct{}
}

// NewDirectory creates an empty directory.
func NewDirectory[M Member]() *Directory[M] {
	return &Directory[M]{
		rooms:    make(map[string]map[string]M),
		byMember: make(map[string]map[string]struct{}),
	}
}

// Join adds m to room, creating the room if needed.
// It reports whether membership changed; joining twice is a no-op.
func (d *Directory[M]) Join(m M, room string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	members, ok := d.rooms[room]
	if !ok {
		members = make(map[string]M)
		d.rooms[room] = members
	}
	if _, exists := members[m.ID()]; exists {
		return false
	}
	members[m.ID()] = m

	joined, ok := d.byMember[m.ID()]
	if !ok {
		joined = make(map[string]struct{})
		d.byMember[m.ID()] = joined
	}
	joined[room] = struct{}{}
	return true
}

// Leave removes m from room and deletes the room once empty.
// It reports whether membership changed.
func (d *Directory[M]) Leave(m M, room string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.leaveLocked(m.ID(), room)
}

// LeaveAll removes m from every room and returns the rooms it left.
func (d *Directory[M]) LeaveAll(m M) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	joined := d.byMember[m.ID()]
	left := make([]string, 0, len(joined))
	for room := range joined {
		left = append(left, room)
	}
	for _, room := range left {
		d.leaveLocked(m.ID(), room)
	}
	sort.Strings(left)
	return left
}

func (d *Directory[M]) leaveLocked(id, room string) bool {
	members, ok := d.rooms[room]
	if !ok {
		return false
	}
	if _, exists := members[id]; !exists {
		return false
	}

	delete(members, id)
	if len(members) == 0 {
		delete(d.rooms, room)
	}

	if joined, ok := d.byMember[id]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(d.byMember, id)
		}
	}
	return true
}

// Members returns a snapshot of room's members except the one with exceptID.
// A missing room yields nil.
func (d *Directory[M]) Members(room, exceptID string) []M {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members, ok := d.rooms[room]
	if !ok {
		return nil
	}
	out := make([]M, 0, len(members))
	for id, m := range members {
		if id != exceptID {
			out = append(out, m)
		}
	}
	return out
}

// Broadcast calls deliver for each member of room except exceptID and returns
// the number of recipients. Membership is snapshotted under the read lock;
// deliver runs after the lock is released.
func (d *Directory[M]) Broadcast(room, exceptID string, deliver func(M)) int {
	recipients := d.Members(room, exceptID)
	for _, m := range recipients {
		deliver(m)
	}
	return len(recipients)
}

// Rooms returns the sorted rooms m belongs to.
func (d *Directory[M]) Rooms(m M) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	joined := d.byMember[m.ID()]
	out := make([]string, 0, len(joined))
	for room := range joined {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

// Has reports whether room currently exists.
func (d *Directory[M]) Has(room string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.rooms[room]
	return ok
}

// Size returns the member count of room.
func (d *Directory[M]) Size(room string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.rooms[room])
}

// Len returns the number of rooms.
func (d *Directory[M]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.rooms)
}
