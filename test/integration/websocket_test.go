package integration

import (
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/tutorlink/classchat/internal/server"
	"github.com/tutorlink/classchat/test/testhelpers"
)

const testOrigin = "http://client.test"

func dialClient(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn := testhelpers.DialWebSocket(t, testhelpers.WebSocketURL(ts, "/ws"), testOrigin)
	testhelpers.ExpectEnvelope(t, conn, server.MsgRequestUserInfo)
	return conn
}

func identifyAs(t *testing.T, conn *websocket.Conn, id, username, participantType string) {
	t.Helper()
	testhelpers.SendEnvelope(t, conn, server.MsgIdentifyUser, server.IdentifyPayload{
		ID:       id,
		Username: username,
		Type:     participantType,
	})
	testhelpers.ExpectEnvelope(t, conn, server.MsgUserIdentified)
}

func TestConnectRequestsUserInfo(t *testing.T) {
	ts := testhelpers.CreateTestServer(server.SetupRoutes())
	defer ts.Close()

	conn := testhelpers.DialWebSocket(t, testhelpers.WebSocketURL(ts, "/ws"), testOrigin)
	env := testhelpers.ExpectEnvelope(t, conn, server.MsgRequestUserInfo)
	if env.Type != server.MsgRequestUserInfo {
		t.Errorf("first envelope = %s", env.Type)
	}
}

// TestClassroomFlow drives the full happy path over real sockets: an
// instructor creates a room, a student joins, chats, and gets kicked.
func TestClassroomFlow(t *testing.T) {
	ts := testhelpers.CreateTestServer(server.SetupRoutes())
	defer ts.Close()

	instructor := dialClient(t, ts)
	student := dialClient(t, ts)
	identifyAs(t, instructor, "u1", "Ada", server.ParticipantInstructor)
	identifyAs(t, student, "u2", "Ben", server.ParticipantStudent)

	// Instructor creates the room and lands in it alone.
	testhelpers.SendEnvelope(t, instructor, server.MsgCreateRoom, server.CreateRoomPayload{RoomName: "Algebra"})
	joined := testhelpers.ExpectEnvelope(t, instructor, server.MsgRoomJoined)
	snapshot := testhelpers.DecodePayload[server.RoomSnapshot](t, joined)
	if len(snapshot.Users) != 1 || snapshot.Users[0].ID != "u1" {
		t.Fatalf("creator snapshot members = %v", snapshot.Users)
	}
	if len(snapshot.Messages) != 0 {
		t.Fatalf("new room should have no history, got %d", len(snapshot.Messages))
	}
	roomID := snapshot.ID

	listEnv := testhelpers.ExpectEnvelope(t, instructor, server.MsgRoomListUpdated)
	list := testhelpers.DecodePayload[[]server.RoomSummary](t, listEnv)
	found := false
	for _, summary := range list {
		if summary.ID == roomID {
			found = true
			if summary.UserCount != 1 {
				t.Errorf("room user count = %d, want 1", summary.UserCount)
			}
		}
	}
	if !found {
		t.Fatal("created room missing from room list broadcast")
	}

	// Student joins; both sides hear about it.
	testhelpers.SendEnvelope(t, student, server.MsgJoinRoom, server.JoinRoomPayload{RoomID: roomID})
	joined = testhelpers.ExpectEnvelope(t, student, server.MsgRoomJoined)
	snapshot = testhelpers.DecodePayload[server.RoomSnapshot](t, joined)
	if len(snapshot.Users) != 2 {
		t.Fatalf("joiner snapshot members = %v", snapshot.Users)
	}

	joinNotice := testhelpers.ExpectEnvelope(t, instructor, server.MsgUserJoined)
	if who := testhelpers.DecodePayload[server.Identity](t, joinNotice); who.ID != "u2" {
		t.Errorf("USER_JOINED for %q, want u2", who.ID)
	}

	// Student sends markup; everyone receives it escaped, sender included.
	testhelpers.SendEnvelope(t, student, server.MsgSendMessage, server.SendMessagePayload{
		RoomID: roomID,
		Text:   "<b>hi</b>",
	})
	for _, conn := range []*websocket.Conn{instructor, student} {
		msgEnv := testhelpers.ExpectEnvelope(t, conn, server.MsgNewMessage)
		msg := testhelpers.DecodePayload[server.ChatMessage](t, msgEnv)
		if msg.Text != "&lt;b&gt;hi&lt;/b&gt;" {
			t.Errorf("message text = %q, want escaped markup", msg.Text)
		}
		if msg.Sender.ID != "u2" {
			t.Errorf("message sender = %q", msg.Sender.ID)
		}
	}

	// Instructor kicks the student.
	testhelpers.SendEnvelope(t, instructor, server.MsgKickUser, server.KickUserPayload{
		RoomID:       roomID,
		UserIDToKick: "u2",
	})
	kicked := testhelpers.ExpectEnvelope(t, student, server.MsgYouWereKicked)
	if p := testhelpers.DecodePayload[server.YouWereKickedPayload](t, kicked); p.By != "Ada" {
		t.Errorf("kick attributed to %q, want Ada", p.By)
	}
	roomNotice := testhelpers.ExpectEnvelope(t, instructor, server.MsgUserKicked)
	if p := testhelpers.DecodePayload[server.UserKickedPayload](t, roomNotice); p.UserID != "u2" {
		t.Errorf("USER_KICKED for %q, want u2", p.UserID)
	}

	// The kicked student is no longer a member.
	testhelpers.SendEnvelope(t, student, server.MsgSendMessage, server.SendMessagePayload{
		RoomID: roomID,
		Text:   "still here?",
	})
	errEnv := testhelpers.ExpectEnvelope(t, student, server.MsgError)
	if p := testhelpers.DecodePayload[server.ErrorPayload](t, errEnv); p.Message == "" {
		t.Error("authorization error should carry a message")
	}
}

// TestProfanityDroppedOverWire verifies a fully-profane message vanishes
// silently: the next envelope the room sees is the follow-up message, with
// no ERROR in between.
func TestProfanityDroppedOverWire(t *testing.T) {
	ts := testhelpers.CreateTestServer(server.SetupRoutes())
	defer ts.Close()

	conn := dialClient(t, ts)
	identifyAs(t, conn, "u3", "Cleo", server.ParticipantStudent)

	testhelpers.SendEnvelope(t, conn, server.MsgCreateRoom, server.CreateRoomPayload{RoomName: "Manners"})
	joined := testhelpers.ExpectEnvelope(t, conn, server.MsgRoomJoined)
	roomID := testhelpers.DecodePayload[server.RoomSnapshot](t, joined).ID
	testhelpers.ExpectEnvelope(t, conn, server.MsgRoomListUpdated)

	testhelpers.SendEnvelope(t, conn, server.MsgSendMessage, server.SendMessagePayload{RoomID: roomID, Text: "fuck"})
	testhelpers.SendEnvelope(t, conn, server.MsgSendMessage, server.SendMessagePayload{RoomID: roomID, Text: "sorry"})

	env := testhelpers.ReadEnvelope(t, conn)
	if env.Type == server.MsgError {
		t.Fatal("dropped message must not produce an error")
	}
	if env.Type != server.MsgNewMessage {
		t.Fatalf("next envelope = %s, want NEW_MESSAGE", env.Type)
	}
	if msg := testhelpers.DecodePayload[server.ChatMessage](t, env); msg.Text != "sorry" {
		t.Errorf("broadcast text = %q, the profane message should have vanished", msg.Text)
	}
}

func TestJoinUnknownRoomOverWire(t *testing.T) {
	ts := testhelpers.CreateTestServer(server.SetupRoutes())
	defer ts.Close()

	conn := dialClient(t, ts)
	identifyAs(t, conn, "u4", "Dan", server.ParticipantStudent)

	testhelpers.SendEnvelope(t, conn, server.MsgJoinRoom, server.JoinRoomPayload{RoomID: "does-not-exist"})
	errEnv := testhelpers.ExpectEnvelope(t, conn, server.MsgError)
	if p := testhelpers.DecodePayload[server.ErrorPayload](t, errEnv); p.Message != "room not found" {
		t.Errorf("error = %q", p.Message)
	}
}

// TestAutoIdentifyOnCreate exercises the convenience path where CREATE_ROOM
// carries the full identity for an unidentified connection.
func TestAutoIdentifyOnCreate(t *testing.T) {
	ts := testhelpers.CreateTestServer(server.SetupRoutes())
	defer ts.Close()

	conn := dialClient(t, ts)
	testhelpers.SendEnvelope(t, conn, server.MsgCreateRoom, server.CreateRoomPayload{
		RoomName: "Geometry",
		User:     &server.IdentifyPayload{ID: "u5", Username: "Eva", Type: server.ParticipantInstructor},
	})

	testhelpers.ExpectEnvelope(t, conn, server.MsgUserIdentified)
	joined := testhelpers.ExpectEnvelope(t, conn, server.MsgRoomJoined)
	snapshot := testhelpers.DecodePayload[server.RoomSnapshot](t, joined)
	if len(snapshot.Users) != 1 || snapshot.Users[0].ID != "u5" {
		t.Errorf("snapshot members = %v", snapshot.Users)
	}
}
