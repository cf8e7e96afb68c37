// Package server defines the JSON wire protocol spoken between the
// coordinator and its clients: envelope framing plus the typed payloads for
// every inbound and outbound message.
package server

import (
	"encoding/json"
	"log"
)

// Inbound envelope types (client -> coordinator).
const (
	MsgIdentifyUser  = "IDENTIFY_USER"
	MsgCreateRoom    = "CREATE_ROOM"
	MsgJoinRoom      = "JOIN_ROOM"
	MsgSendMessage   = "SEND_MESSAGE"
	MsgLeaveRoom     = "LEAVE_ROOM"
	MsgDeleteMessage = "DELETE_MESSAGE"
	MsgKickUser      = "KICK_USER"
)

// Outbound envelope types (coordinator -> client(s)).
const (
	MsgRoomListUpdated = "ROOM_LIST_UPDATED"
	MsgRequestUserInfo = "REQUEST_USER_INFO"
	MsgUserIdentified  = "USER_IDENTIFIED"
	MsgRoomJoined      = "ROOM_JOINED"
	MsgUserJoined      = "USER_JOINED"
	MsgUserLeft        = "USER_LEFT"
	MsgNewMessage      = "NEW_MESSAGE"
	MsgMessageDeleted  = "MESSAGE_DELETED"
	MsgUserKicked      = "USER_KICKED"
	MsgYouWereKicked   = "YOU_WERE_KICKED"
	MsgYouLeftRoom     = "YOU_LEFT_ROOM"
	MsgServerShutdown  = "SERVER_SHUTDOWN"
	MsgError           = "ERROR"
)

// Envelope is the framing for every message on the wire. The payload is
// decoded into its typed form based on Type, so code past the dispatcher
// never re-checks field presence on raw JSON.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IdentifyPayload carries the identity claims resolved by the caller's
// authentication layer. Also embedded in create/join payloads to allow
// auto-identification in a single round trip.
type IdentifyPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Type     string `json:"type"`
}

// Identity converts the wire payload into the domain identity value.
func (p IdentifyPayload) Identity() Identity {
	return Identity{ID: p.ID, Username: p.Username, Type: p.Type}
}

// CreateRoomPayload requests a new room. RoomName may be blank, in which
// case the store assigns an auto-numbered label.
type CreateRoomPayload struct {
	RoomName string           `json:"roomName"`
	User     *IdentifyPayload `json:"user,omitempty"`
}

// JoinRoomPayload requests membership in an existing room.
type JoinRoomPayload struct {
	RoomID string           `json:"roomId"`
	User   *IdentifyPayload `json:"user,omitempty"`
}

// SendMessagePayload carries raw message text; the coordinator sanitizes
// and censors it before it is stored or relayed.
type SendMessagePayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// LeaveRoomPayload requests removal from a room the sender is a member of.
type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

// DeleteMessagePayload requests removal of a message from room history.
// Instructor only.
type DeleteMessagePayload struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
}

// KickUserPayload requests removal of another participant. Instructor only.
type KickUserPayload struct {
	RoomID       string `json:"roomId"`
	UserIDToKick string `json:"userIdToKick"`
}

// RoomSnapshot is sent to a joining connection: the room, its current
// members, and the most recent slice of history.
type RoomSnapshot struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Users    []Identity    `json:"users"`
	Messages []ChatMessage `json:"messages"`
}

// UserLeftPayload announces a voluntary departure to the remaining room.
type UserLeftPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// UserKickedPayload announces a removal to the remaining room.
type UserKickedPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	By       string `json:"by"`
}

// YouWereKickedPayload is delivered to the removed participant, naming the
// acting instructor.
type YouWereKickedPayload struct {
	RoomID string `json:"roomId"`
	By     string `json:"by"`
}

// YouLeftRoomPayload confirms a voluntary leave to the leaving connection.
type YouLeftRoomPayload struct {
	RoomID string `json:"roomId"`
}

// MessageDeletedPayload announces a history deletion to the room.
type MessageDeletedPayload struct {
	RoomID    string `json:"roomId"`
	MessageID string `json:"messageId"`
}

// ErrorPayload carries a recoverable protocol, authorization, or not-found
// error back to the offending connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

// newEnvelope marshals an outbound envelope. A nil payload omits the field.
func newEnvelope(msgType string, payload any) ([]byte, error) {
	out := struct {
		Type    string `json:"type"`
		Payload any    `json:"payload,omitempty"`
	}{Type: msgType, Payload: payload}
	return json.Marshal(out)
}

// mustEnvelope is newEnvelope for payloads built from our own types, where
// a marshal failure indicates a programming error rather than bad input.
func mustEnvelope(msgType string, payload any) []byte {
	data, err := newEnvelope(msgType, payload)
	if err != nil {
		log.Printf("Error marshalling %s envelope: %v", msgType, err)
		return nil
	}
	return data
}
