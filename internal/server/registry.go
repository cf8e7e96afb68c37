// Package server tracks which identity is bound to which open connection.
package server

// ConnectionRegistry maps open connections to their resolved identities and
// supports reverse lookup from identity id to connection.
//
// The registry carries no locking of its own: every access is serialized
// through the Coordinator, which owns the single mutex guarding shared
// coordinator state.
type ConnectionRegistry struct {
	identities  map[*Client]Identity
	connections map[string]*Client
}

// NewConnectionRegistry returns an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		identities:  make(map[*Client]Identity),
		connections: make(map[string]*Client),
	}
}

// Bind associates a connection with an identity. It reports false if the
// connection already holds an identity. Binding an identity id that is
// already registered to another connection silently replaces the previous
// connection pointer: last-writer-wins, so a reconnecting client can reclaim
// its identity.
func (r *ConnectionRegistry) Bind(c *Client, identity Identity) bool {
	if _, bound := r.identities[c]; bound {
		return false
	}
	r.identities[c] = identity
	r.connections[identity.ID] = c
	return true
}

// Resolve returns the identity bound to a connection, if any.
func (r *ConnectionRegistry) Resolve(c *Client) (Identity, bool) {
	identity, ok := r.identities[c]
	return identity, ok
}

// ByIdentity returns the connection currently registered for an identity id.
func (r *ConnectionRegistry) ByIdentity(identityID string) (*Client, bool) {
	c, ok := r.connections[identityID]
	return c, ok
}

// Unbind removes a connection's binding. The reverse entry is only cleared
// when it still points at this connection, so a binding claimed by a newer
// connection survives the old connection's teardown.
func (r *ConnectionRegistry) Unbind(c *Client) {
	identity, ok := r.identities[c]
	if !ok {
		return
	}
	delete(r.identities, c)
	if r.connections[identity.ID] == c {
		delete(r.connections, identity.ID)
	}
}
