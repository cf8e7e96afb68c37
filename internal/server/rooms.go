// Package server owns the set of live rooms, their member sets, and their
// bounded message histories.
package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// historyLimit caps a room's retained history; the oldest entry is
	// evicted first once the cap is exceeded.
	historyLimit = 200
	// snapshotHistory is how much history a joining connection receives.
	snapshotHistory = 50
)

// Room is a named, discoverable group of identities sharing a bounded
// message history. Rooms are never destroyed while the process lives, even
// when empty; they stay discoverable until restart.
type Room struct {
	ID         string
	Name       string
	OwnerID    string
	members    map[*Client]Identity
	history    []ChatMessage
	lastActive time.Time
}

// MemberCount returns the number of identities currently in the room.
func (r *Room) MemberCount() int {
	return len(r.members)
}

// MemberIdentities returns the current member set. Order is unspecified.
func (r *Room) MemberIdentities() []Identity {
	members := make([]Identity, 0, len(r.members))
	for _, identity := range r.members {
		members = append(members, identity)
	}
	return members
}

// Connections returns the member connections, optionally excluding one.
func (r *Room) Connections(exclude *Client) []*Client {
	conns := make([]*Client, 0, len(r.members))
	for c := range r.members {
		if c == exclude {
			continue
		}
		conns = append(conns, c)
	}
	return conns
}

// memberByIdentity finds the member entry for an identity id regardless of
// which connection object is stored.
func (r *Room) memberByIdentity(identityID string) (*Client, Identity, bool) {
	for c, identity := range r.members {
		if identity.ID == identityID {
			return c, identity, true
		}
	}
	return nil, Identity{}, false
}

// RecentMessages returns a copy of the last n history entries in
// chronological order.
func (r *Room) RecentMessages(n int) []ChatMessage {
	start := len(r.history) - n
	if start < 0 {
		start = 0
	}
	recent := make([]ChatMessage, len(r.history)-start)
	copy(recent, r.history[start:])
	return recent
}

// RoomStore owns every live room. Absence of a room is a valid return
// value, never an error; protocol-level reporting is the coordinator's job.
//
// Like the ConnectionRegistry, the store relies on the Coordinator to
// serialize access.
type RoomStore struct {
	rooms   map[string]*Room
	order   []string
	created int
}

// NewRoomStore returns an empty store.
func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: make(map[string]*Room)}
}

// Create makes a new room with a generated id. The name must already be
// sanitized by the caller; a blank name falls back to an auto-numbered
// label.
func (s *RoomStore) Create(name, ownerID string) *Room {
	s.created++
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Room %d", s.created)
	}

	room := &Room{
		ID:         uuid.NewString(),
		Name:       name,
		OwnerID:    ownerID,
		members:    make(map[*Client]Identity),
		lastActive: time.Now(),
	}
	s.rooms[room.ID] = room
	s.order = append(s.order, room.ID)
	return room
}

// Get returns the room with the given id, if it exists.
func (s *RoomStore) Get(roomID string) (*Room, bool) {
	room, ok := s.rooms[roomID]
	return room, ok
}

// List returns discovery summaries for every room in stable insertion
// order.
func (s *RoomStore) List() []RoomSummary {
	summaries := make([]RoomSummary, 0, len(s.order))
	for _, id := range s.order {
		room := s.rooms[id]
		summaries = append(summaries, RoomSummary{
			ID:        room.ID,
			Name:      room.Name,
			UserCount: room.MemberCount(),
		})
	}
	return summaries
}

// Join adds an identity to a room. An identity occupies at most one room:
// any prior membership elsewhere is silently removed first. Reports false
// when the room does not exist.
func (s *RoomStore) Join(roomID string, c *Client, identity Identity) (*Room, bool) {
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	s.removeMembership(identity.ID)
	room.members[c] = identity
	room.lastActive = time.Now()
	return room, true
}

// Leave removes the member entry matching the identity id. Matching by
// identity rather than connection tolerates stale connection references
// left behind by a reconnect. Reports false when no such member exists.
func (s *RoomStore) Leave(roomID, identityID string) (Identity, bool) {
	room, ok := s.rooms[roomID]
	if !ok {
		return Identity{}, false
	}
	c, identity, found := room.memberByIdentity(identityID)
	if !found {
		return Identity{}, false
	}
	delete(room.members, c)
	room.lastActive = time.Now()
	return identity, true
}

// Rebind points an identity's membership at a new connection, keeping room
// and identity intact. Used when a reconnect reclaims an identity. Reports
// false when the identity is not in any room.
func (s *RoomStore) Rebind(identityID string, c *Client) (*Room, bool) {
	for _, id := range s.order {
		room := s.rooms[id]
		if old, identity, found := room.memberByIdentity(identityID); found {
			delete(room.members, old)
			room.members[c] = identity
			return room, true
		}
	}
	return nil, false
}

// RoomOf returns the room an identity is currently a member of, if any.
func (s *RoomStore) RoomOf(identityID string) (*Room, bool) {
	for _, id := range s.order {
		room := s.rooms[id]
		if _, _, found := room.memberByIdentity(identityID); found {
			return room, true
		}
	}
	return nil, false
}

// removeMembership drops an identity from whichever room currently holds it.
func (s *RoomStore) removeMembership(identityID string) {
	for _, room := range s.rooms {
		if c, _, found := room.memberByIdentity(identityID); found {
			delete(room.members, c)
		}
	}
}

// AppendMessage pushes a message onto a room's history, evicting the oldest
// entry once the cap is exceeded (FIFO, not LRU).
func (s *RoomStore) AppendMessage(roomID string, msg ChatMessage) {
	room, ok := s.rooms[roomID]
	if !ok {
		return
	}
	room.history = append(room.history, msg)
	if len(room.history) > historyLimit {
		room.history = room.history[len(room.history)-historyLimit:]
	}
	room.lastActive = time.Now()
}

// DeleteMessage removes a message from a room's history. Reports false when
// the room or message is absent.
func (s *RoomStore) DeleteMessage(roomID, messageID string) bool {
	room, ok := s.rooms[roomID]
	if !ok {
		return false
	}
	for i, msg := range room.history {
		if msg.ID == messageID {
			room.history = append(room.history[:i], room.history[i+1:]...)
			room.lastActive = time.Now()
			return true
		}
	}
	return false
}
