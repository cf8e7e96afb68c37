// Package testhelpers provides common utilities for testing the classchat
// coordinator.
//
// It contains reusable helpers shared across unit and integration tests:
// creating test servers, dialing WebSocket connections, and exchanging
// protocol envelopes with deadlines.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tutorlink/classchat/internal/server"
)

// readTimeout bounds every envelope read so a missing broadcast fails the
// test instead of hanging it.
const readTimeout = 2 * time.Second

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to execute request: %v", err)
	}
	return resp
}

// WebSocketURL converts an httptest server URL to its ws:// equivalent for
// the given path.
func WebSocketURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

// DialWebSocket opens a WebSocket connection with the given Origin header
// and registers cleanup. It fails the test if the handshake does not
// complete.
func DialWebSocket(t *testing.T, url, origin string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("WebSocket dial failed (status %d): %v", status, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendEnvelope marshals and writes one protocol envelope.
func SendEnvelope(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("Failed to marshal payload: %v", err)
		}
		raw = data
	}
	data, err := json.Marshal(server.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		t.Fatalf("Failed to marshal envelope: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("Failed to write envelope: %v", err)
	}
}

// ReadEnvelope reads exactly one envelope within the read timeout.
func ReadEnvelope(t *testing.T, conn *websocket.Conn) server.Envelope {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read envelope: %v", err)
	}

	var env server.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Failed to unmarshal envelope %q: %v", data, err)
	}
	return env
}

// ExpectEnvelope reads envelopes until one of the wanted type arrives,
// skipping unrelated broadcasts (e.g. room list refreshes from concurrent
// activity). It fails the test on timeout.
func ExpectEnvelope(t *testing.T, conn *websocket.Conn, msgType string) server.Envelope {
	t.Helper()

	for i := 0; i < 20; i++ {
		env := ReadEnvelope(t, conn)
		if env.Type == msgType {
			return env
		}
	}
	t.Fatalf("Envelope of type %s never arrived", msgType)
	return server.Envelope{}
}

// DecodePayload unmarshals an envelope payload into the given type.
func DecodePayload[T any](t *testing.T, env server.Envelope) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		t.Fatalf("Failed to unmarshal %s payload: %v", env.Type, err)
	}
	return v
}
