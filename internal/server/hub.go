// Package server coordinates client registration, best-effort fan-out, and
// connection cleanup for the classchat WebSocket transport via the Hub type.
package server

import (
	"context"
	"log"
	"sync"
	"time"
)

// Hub owns the set of open WebSocket connections. It registers and
// unregisters clients, launches their pump goroutines, and provides the
// best-effort delivery primitives used by the Coordinator. Room semantics
// live in the Coordinator; the hub only knows about connections.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	// coordinator is told about every connection that leaves the hub, no
	// matter how it was removed, so registry and room state never outlive
	// the socket. Wired by NewCoordinator.
	coordinator *Coordinator
	mutex       sync.RWMutex
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewHub creates and initializes a new Hub instance ready to manage
// WebSocket connections.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering new clients.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// safeSend enqueues a payload for one client without blocking. It reports
// false when the client is gone or its outbound buffer is full; a slow or
// dead client never stalls delivery to anyone else.
func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// broadcastAll delivers a payload to every open connection except the
// excluded one. Clients whose buffers are full are dropped from the hub.
func (h *Hub) broadcastAll(message []byte, exclude *Client) {
	var failed []*Client
	for _, client := range h.clientSnapshot() {
		if client == exclude {
			continue
		}
		if !h.safeSend(client, message) {
			failed = append(failed, client)
		}
	}
	h.removeFailedClients(failed)
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. This method should be called in a separate goroutine as
// it runs until shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client %s connected from %s. Total clients: %d", client.id, client.addr, clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// removeClient drops a client from the hub and releases its coordinator
// state. The clients-map guard only prevents double-closing the send
// channel: a client already removed for backpressure still needs its
// registry binding and room membership torn down here.
func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.closed = true
		clientCount := len(h.clients)
		h.mutex.Unlock()
		// Close the channel after releasing the lock
		close(client.send)
		log.Printf("Client %s from %s disconnected. Total clients: %d", client.id, client.addr, clientCount)
	} else {
		h.mutex.Unlock()
	}

	if h.coordinator != nil {
		h.coordinator.Disconnect(client)
	}
}

var (
	hub         = NewHub()
	coordinator = NewCoordinator(hub)
)

// clientSnapshot returns a thread-safe snapshot of all current clients.
func (h *Hub) clientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// removeFailedClients removes clients that failed to receive messages and
// closes their channels.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			log.Printf("Client from %s removed due to full send buffer", client.addr)
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients announces the shutdown to every open connection, then
// closes them all. The announcement is best-effort: whatever the write
// pumps manage to flush before the close wins.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	clients := h.clientSnapshot()

	if notice := mustEnvelope(MsgServerShutdown, nil); notice != nil {
		for _, client := range clients {
			h.safeSend(client, notice)
		}
	}

	// Give the write pumps a moment to flush the shutdown notice.
	time.Sleep(100 * time.Millisecond)

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all
// goroutines to complete, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()

	// Wait for Run() to complete
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
