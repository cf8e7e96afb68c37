// Package server routes inbound envelopes to presence and moderation
// operations via the Coordinator type, which serializes every mutation of
// the room store and connection registry.
package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Coordinator validates inbound envelopes and applies them to the room
// store and connection registry. A single mutex serializes envelope
// processing: each envelope is handled start to finish before the next one
// from any connection begins. Outbound delivery is a non-blocking enqueue
// onto per-connection buffers, so no slow client is ever waited on while
// the lock is held.
type Coordinator struct {
	mu       sync.Mutex
	hub      *Hub
	registry *ConnectionRegistry
	rooms    *RoomStore
}

// NewCoordinator creates a coordinator delivering through the given hub and
// registers itself as the hub's disconnect listener.
func NewCoordinator(h *Hub) *Coordinator {
	co := &Coordinator{
		hub:      h,
		registry: NewConnectionRegistry(),
		rooms:    NewRoomStore(),
	}
	h.coordinator = co
	return co
}

// HandleEnvelope processes one raw inbound envelope from a connection.
// Every failure is reported as an ERROR envelope to the sender only; no
// envelope ever terminates the connection or leaves shared state corrupted.
func (co *Coordinator) HandleEnvelope(c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		co.mu.Lock()
		co.errorTo(c, "malformed message envelope")
		co.mu.Unlock()
		return
	}

	co.mu.Lock()
	defer co.mu.Unlock()

	switch env.Type {
	case MsgIdentifyUser:
		co.handleIdentify(c, env.Payload)
	case MsgCreateRoom:
		co.handleCreateRoom(c, env.Payload)
	case MsgJoinRoom:
		co.handleJoinRoom(c, env.Payload)
	case MsgSendMessage:
		co.handleSendMessage(c, env.Payload)
	case MsgLeaveRoom:
		co.handleLeaveRoom(c, env.Payload)
	case MsgDeleteMessage:
		co.handleDeleteMessage(c, env.Payload)
	case MsgKickUser:
		co.handleKickUser(c, env.Payload)
	default:
		co.errorTo(c, "unknown message type: "+env.Type)
	}
}

// Disconnect releases everything a closing connection held: its room
// membership and its registry binding. When a reconnect has already
// reclaimed the identity, only the stale binding is dropped so the newer
// connection keeps its claim.
func (co *Coordinator) Disconnect(c *Client) {
	co.mu.Lock()
	defer co.mu.Unlock()

	identity, bound := co.registry.Resolve(c)
	if !bound {
		return
	}
	current, _ := co.registry.ByIdentity(identity.ID)
	co.registry.Unbind(c)
	if current != c {
		return
	}

	if room, ok := co.rooms.RoomOf(identity.ID); ok {
		co.rooms.Leave(room.ID, identity.ID)
	}
	co.broadcastRoomList()
}

func (co *Coordinator) handleIdentify(c *Client, raw json.RawMessage) {
	var p IdentifyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		co.errorTo(c, "malformed identify payload")
		return
	}
	co.identify(c, p.Identity())
}

// identify binds an identity to a connection and confirms it. Reports false
// (after sending an error) when the payload is incomplete or the connection
// is already identified.
func (co *Coordinator) identify(c *Client, identity Identity) bool {
	if !identity.Valid() {
		co.errorTo(c, "identification requires id, username and a participant type")
		return false
	}
	if !co.registry.Bind(c, identity) {
		co.errorTo(c, "connection is already identified")
		return false
	}
	// A reconnect reclaiming an identity takes over its room membership, so
	// room broadcasts reach the live connection without a re-join.
	co.rooms.Rebind(identity.ID, c)
	log.Printf("Client %s identified as %s (%s)", c.addr, identity.Username, identity.Type)
	co.send(c, MsgUserIdentified, identity)
	return true
}

// requireIdentity resolves the connection's identity, auto-identifying when
// the envelope carried complete identity claims and the connection is still
// unidentified.
func (co *Coordinator) requireIdentity(c *Client, user *IdentifyPayload) (Identity, bool) {
	if identity, ok := co.registry.Resolve(c); ok {
		return identity, true
	}
	if user != nil {
		identity := user.Identity()
		if co.identify(c, identity) {
			return identity, true
		}
		return Identity{}, false
	}
	co.errorTo(c, "identify before joining or creating rooms")
	return Identity{}, false
}

// requireMember resolves the connection's identity and checks it is a
// member of the named room.
func (co *Coordinator) requireMember(c *Client, roomID string) (Identity, *Room, bool) {
	identity, ok := co.registry.Resolve(c)
	if !ok {
		co.errorTo(c, "identify before interacting with rooms")
		return Identity{}, nil, false
	}
	room, ok := co.rooms.Get(roomID)
	if !ok {
		co.errorTo(c, "room not found")
		return Identity{}, nil, false
	}
	if _, _, member := room.memberByIdentity(identity.ID); !member {
		co.errorTo(c, "you are not a member of this room")
		return Identity{}, nil, false
	}
	return identity, room, true
}

func (co *Coordinator) handleCreateRoom(c *Client, raw json.RawMessage) {
	var p CreateRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		co.errorTo(c, "malformed create room payload")
		return
	}
	identity, ok := co.requireIdentity(c, p.User)
	if !ok {
		return
	}

	name, _ := currentModerator().Clean(p.RoomName)
	room := co.rooms.Create(name, identity.ID)
	log.Printf("Room %q created by %s", room.Name, identity.Username)
	co.joinRoom(c, identity, room)
}

func (co *Coordinator) handleJoinRoom(c *Client, raw json.RawMessage) {
	var p JoinRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		co.errorTo(c, "malformed join room payload")
		return
	}
	identity, ok := co.requireIdentity(c, p.User)
	if !ok {
		return
	}
	room, ok := co.rooms.Get(p.RoomID)
	if !ok {
		co.errorTo(c, "room not found")
		return
	}
	co.joinRoom(c, identity, room)
}

// joinRoom performs the join against an existing room: membership
// migration, snapshot to the joiner, a joined notice to the rest of the
// room, and a global room list refresh.
func (co *Coordinator) joinRoom(c *Client, identity Identity, room *Room) {
	co.rooms.Join(room.ID, c, identity)

	co.send(c, MsgRoomJoined, RoomSnapshot{
		ID:       room.ID,
		Name:     room.Name,
		Users:    room.MemberIdentities(),
		Messages: room.RecentMessages(snapshotHistory),
	})
	co.broadcastRoom(room, MsgUserJoined, identity, c)
	co.broadcastRoomList()
}

func (co *Coordinator) handleSendMessage(c *Client, raw json.RawMessage) {
	var p SendMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		co.errorTo(c, "malformed send message payload")
		return
	}
	identity, room, ok := co.requireMember(c, p.RoomID)
	if !ok {
		return
	}

	text, ok := currentModerator().Clean(p.Text)
	if !ok {
		// Fully-censored messages vanish without feedback to the sender.
		return
	}

	msg := ChatMessage{
		ID:        uuid.NewString(),
		RoomID:    room.ID,
		Text:      text,
		Sender:    identity,
		CreatedAt: time.Now(),
	}
	co.rooms.AppendMessage(room.ID, msg)
	co.broadcastRoom(room, MsgNewMessage, msg, nil)
}

func (co *Coordinator) handleLeaveRoom(c *Client, raw json.RawMessage) {
	var p LeaveRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		co.errorTo(c, "malformed leave room payload")
		return
	}
	identity, room, ok := co.requireMember(c, p.RoomID)
	if !ok {
		return
	}

	co.rooms.Leave(room.ID, identity.ID)
	co.broadcastRoom(room, MsgUserLeft, UserLeftPayload{UserID: identity.ID, Username: identity.Username}, nil)
	co.send(c, MsgYouLeftRoom, YouLeftRoomPayload{RoomID: room.ID})
	co.broadcastRoomList()
}

func (co *Coordinator) handleDeleteMessage(c *Client, raw json.RawMessage) {
	var p DeleteMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		co.errorTo(c, "malformed delete message payload")
		return
	}
	identity, room, ok := co.requireMember(c, p.RoomID)
	if !ok {
		return
	}
	if !identity.IsInstructor() {
		co.errorTo(c, "only instructors can delete messages")
		return
	}
	if !co.rooms.DeleteMessage(room.ID, p.MessageID) {
		co.errorTo(c, "message not found")
		return
	}
	co.broadcastRoom(room, MsgMessageDeleted, MessageDeletedPayload{RoomID: room.ID, MessageID: p.MessageID}, nil)
}

func (co *Coordinator) handleKickUser(c *Client, raw json.RawMessage) {
	var p KickUserPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		co.errorTo(c, "malformed kick user payload")
		return
	}
	identity, room, ok := co.requireMember(c, p.RoomID)
	if !ok {
		return
	}
	if !identity.IsInstructor() {
		co.errorTo(c, "only instructors can remove participants")
		return
	}
	if p.UserIDToKick == identity.ID {
		co.errorTo(c, "you cannot remove yourself from the room")
		return
	}
	targetConn, target, found := room.memberByIdentity(p.UserIDToKick)
	if !found {
		co.errorTo(c, "user is not in this room")
		return
	}

	// Notify the target before tearing down its membership; the leave is
	// silent so the target does not also receive YOU_LEFT_ROOM.
	co.send(targetConn, MsgYouWereKicked, YouWereKickedPayload{RoomID: room.ID, By: identity.Username})
	co.rooms.Leave(room.ID, target.ID)
	log.Printf("User %s kicked from room %q by %s", target.Username, room.Name, identity.Username)
	co.broadcastRoom(room, MsgUserKicked, UserKickedPayload{
		UserID:   target.ID,
		Username: target.Username,
		By:       identity.Username,
	}, targetConn)
	co.broadcastRoomList()
}

// send enqueues one envelope for a single connection.
func (co *Coordinator) send(c *Client, msgType string, payload any) {
	if data := mustEnvelope(msgType, payload); data != nil {
		co.hub.safeSend(c, data)
	}
}

// errorTo reports a recoverable error to the offending connection only.
func (co *Coordinator) errorTo(c *Client, message string) {
	co.send(c, MsgError, ErrorPayload{Message: message})
}

// broadcastRoom delivers an envelope to every member connection of a room,
// optionally excluding one. Delivery is best-effort: connections that are
// gone or backed up are skipped.
func (co *Coordinator) broadcastRoom(room *Room, msgType string, payload any, exclude *Client) {
	data := mustEnvelope(msgType, payload)
	if data == nil {
		return
	}
	for _, member := range room.Connections(exclude) {
		co.hub.safeSend(member, data)
	}
}

// broadcastRoomList pushes the current discovery list to every open
// connection, identified or not.
func (co *Coordinator) broadcastRoomList() {
	if data := mustEnvelope(MsgRoomListUpdated, co.rooms.List()); data != nil {
		co.hub.broadcastAll(data, nil)
	}
}
