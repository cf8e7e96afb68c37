package server

import "testing"

func testIdentity(id string) Identity {
	return Identity{ID: id, Username: "user-" + id, Type: ParticipantStudent}
}

func TestRegistryBindAndResolve(t *testing.T) {
	r := NewConnectionRegistry()
	c := &Client{}

	if !r.Bind(c, testIdentity("u1")) {
		t.Fatal("first Bind should succeed")
	}

	identity, ok := r.Resolve(c)
	if !ok || identity.ID != "u1" {
		t.Errorf("Resolve returned %v, %v", identity, ok)
	}

	conn, ok := r.ByIdentity("u1")
	if !ok || conn != c {
		t.Error("ByIdentity should return the bound connection")
	}
}

func TestRegistryRejectsDoubleBind(t *testing.T) {
	r := NewConnectionRegistry()
	c := &Client{}

	r.Bind(c, testIdentity("u1"))
	if r.Bind(c, testIdentity("u2")) {
		t.Error("a connection must hold at most one identity")
	}
}

// TestRegistryLastWriterWins verifies reconnect reclaim: a new connection
// binding an existing identity id replaces the previous connection pointer
// without error.
func TestRegistryLastWriterWins(t *testing.T) {
	r := NewConnectionRegistry()
	old := &Client{}
	reconnected := &Client{}

	r.Bind(old, testIdentity("u1"))
	if !r.Bind(reconnected, testIdentity("u1")) {
		t.Fatal("rebinding an identity from a new connection should succeed")
	}

	conn, ok := r.ByIdentity("u1")
	if !ok || conn != reconnected {
		t.Error("ByIdentity should point at the newest connection")
	}
}

// TestRegistryUnbindStaleConnection verifies that tearing down a superseded
// connection does not strip the identity from its newer connection.
func TestRegistryUnbindStaleConnection(t *testing.T) {
	r := NewConnectionRegistry()
	old := &Client{}
	reconnected := &Client{}

	r.Bind(old, testIdentity("u1"))
	r.Bind(reconnected, testIdentity("u1"))

	r.Unbind(old)

	if _, ok := r.Resolve(old); ok {
		t.Error("stale connection should no longer resolve")
	}
	conn, ok := r.ByIdentity("u1")
	if !ok || conn != reconnected {
		t.Error("newer connection should keep its identity claim")
	}

	r.Unbind(reconnected)
	if _, ok := r.ByIdentity("u1"); ok {
		t.Error("identity should be gone after its live connection unbinds")
	}
}

func TestRegistryUnbindUnknownConnection(t *testing.T) {
	r := NewConnectionRegistry()
	r.Unbind(&Client{}) // must not panic
}
