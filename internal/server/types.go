// Package server defines the domain types shared across the chat
// coordinator: identities, rooms, and messages.
package server

import (
	"strings"
	"time"
)

// Participant types recognized by the coordinator. The caller resolves these
// during authentication; the coordinator only enforces the distinction.
const (
	ParticipantStudent    = "student"
	ParticipantInstructor = "instructor"
)

// Identity is the authenticated user bound to a connection. It is supplied
// by the caller at identification time and treated as authoritative for the
// lifetime of the connection.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Type     string `json:"type"`
}

// Valid reports whether the identity carries every field the coordinator
// requires and a recognized participant type.
func (i Identity) Valid() bool {
	if i.ID == "" || i.Username == "" {
		return false
	}
	return i.Type == ParticipantStudent || i.Type == ParticipantInstructor
}

// IsInstructor reports whether the identity may use moderation operations.
func (i Identity) IsInstructor() bool {
	return i.Type == ParticipantInstructor
}

// ChatMessage is one entry in a room's bounded history. Messages are
// immutable once created; deletion removes them from history entirely.
type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Text      string    `json:"text"`
	Sender    Identity  `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
}

// RoomSummary is the discovery view of a room used in room list broadcasts.
type RoomSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UserCount int    `json:"userCount"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
