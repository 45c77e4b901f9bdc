// Package registry is the single source of truth for who is connected, in
// which rooms, and with what status. It holds no transports; the relay owns
// those.
package registry

import (
	"errors"
	"sync"
	"time"

	"chat-relay/internal/models"
)

// ErrDuplicateConnection is returned by Register when the id is already
// present. Under correct transport id assignment this should not occur; the
// relay treats it as a reconnection race.
var ErrDuplicateConnection = errors.New("connection id already registered")

// Connection is a read snapshot of one live connection.
type Connection struct {
	ID           string
	Rooms        []string
	Status       models.Status
	LastActiveAt time.Time
}

type connState struct {
	rooms        map[string]struct{}
	status       models.Status
	lastActiveAt time.Time
}

type roomState struct {
	meta    models.Room
	members map[string]struct{}
}

// Registry keeps a bidirectional index: connection -> rooms and
// room -> members, so disconnect cleanup visits only the rooms the
// connection actually joined. All methods are safe for concurrent use;
// reads and writes interleave per event across reader goroutines.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connState
	rooms map[string]*roomState
}

func New() *Registry {
	return &Registry{
		conns: make(map[string]*connState),
		rooms: make(map[string]*roomState),
	}
}

// Register creates an entry for id with an empty room set and status online.
func (r *Registry) Register(id string) (Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[id]; exists {
		return Connection{}, ErrDuplicateConnection
	}
	c := &connState{
		rooms:        make(map[string]struct{}),
		status:       models.StatusOnline,
		lastActiveAt: time.Now(),
	}
	r.conns[id] = c
	return snapshot(id, c), nil
}

// Unregister removes the entry and revokes its membership in every room it
// joined. Idempotent; unregistering an unknown id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.conns[id]
	if !exists {
		return
	}
	for roomID := range c.rooms {
		if room, ok := r.rooms[roomID]; ok {
			delete(room.members, id)
		}
	}
	delete(r.conns, id)
}

// JoinRoom adds the connection to the room, creating the room implicitly if
// it does not exist. Idempotent. Returns false if the connection is unknown.
func (r *Registry) JoinRoom(id, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.conns[id]
	if !exists {
		return false
	}
	room, ok := r.rooms[roomID]
	if !ok {
		room = &roomState{
			meta:    models.Room{ID: roomID, Name: roomID},
			members: make(map[string]struct{}),
		}
		r.rooms[roomID] = room
	}
	room.members[id] = struct{}{}
	c.rooms[roomID] = struct{}{}
	return true
}

// LeaveRoom is the inverse of JoinRoom. Idempotent; a no-op when the
// connection is not a member. The room itself is kept even when empty.
func (r *Registry) LeaveRoom(id, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, exists := r.conns[id]; exists {
		delete(c.rooms, roomID)
	}
	if room, ok := r.rooms[roomID]; ok {
		delete(room.members, id)
	}
}

// SetStatus updates the announced status and lastActiveAt. A disconnect race
// must never crash the relay, so an unknown id is a silent no-op.
func (r *Registry) SetStatus(id string, status models.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, exists := r.conns[id]; exists {
		c.status = status
		c.lastActiveAt = time.Now()
	}
}

// Touch records activity (message, typing ping) without changing status.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, exists := r.conns[id]; exists {
		c.lastActiveAt = time.Now()
	}
}

// CreateRoom registers room metadata if the id is unused and reports whether
// the room was created. An existing id keeps its membership; metadata is
// replaced, so the last create wins on colliding normalized names.
func (r *Registry) CreateRoom(meta models.Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[meta.ID]
	if exists {
		room.meta = meta
		return false
	}
	r.rooms[meta.ID] = &roomState{meta: meta, members: make(map[string]struct{})}
	return true
}

// MembersOf returns the current member ids, empty for an unknown room.
func (r *Registry) MembersOf(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	members := make([]string, 0, len(room.members))
	for id := range room.members {
		members = append(members, id)
	}
	return members
}

// RoomsOf returns the room ids the connection belongs to.
func (r *Registry) RoomsOf(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.conns[id]
	if !exists {
		return nil
	}
	rooms := make([]string, 0, len(c.rooms))
	for roomID := range c.rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}

// Get returns a snapshot of one connection.
func (r *Registry) Get(id string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.conns[id]
	if !exists {
		return Connection{}, false
	}
	return snapshot(id, c), true
}

// Rooms lists every room with its member count.
func (r *Registry) Rooms() []models.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]models.RoomInfo, 0, len(r.rooms))
	for _, room := range r.rooms {
		infos = append(infos, models.RoomInfo{Room: room.meta, MemberCount: len(room.members)})
	}
	return infos
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func snapshot(id string, c *connState) Connection {
	rooms := make([]string, 0, len(c.rooms))
	for roomID := range c.rooms {
		rooms = append(rooms, roomID)
	}
	return Connection{
		ID:           id,
		Rooms:        rooms,
		Status:       c.status,
		LastActiveAt: c.lastActiveAt,
	}
}
