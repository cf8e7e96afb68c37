// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler handles WebSocket upgrade requests. It upgrades the HTTP
// connection, registers a new Client with the hub, and immediately asks the
// client to identify itself.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, hub, r.RemoteAddr)

	// Queue the identification request before registering; the write pump
	// launched by the hub delivers it as the first envelope.
	if notice := mustEnvelope(MsgRequestUserInfo, nil); notice != nil {
		client.queue(notice)
	}

	client.hub.register <- client
}

// HealthHandler provides a simple health check endpoint that returns server
// status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "classchat coordinator is running!")
}

// TestPageHandler serves an HTML test page for exercising the room
// protocol: identify, create or join a room, and exchange messages.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>classchat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
            font-size: 12px;
        }
        input[type="text"], select { padding: 5px; margin-right: 6px; }
        button { padding: 5px 15px; cursor: pointer; }
        fieldset { margin: 10px 0; }
    </style>
</head>
<body>
    <h1>classchat Protocol Test</h1>

    <fieldset>
        <legend>Connection</legend>
        <button onclick="connect()">Connect</button>
        <button onclick="disconnect()">Disconnect</button>
    </fieldset>

    <fieldset>
        <legend>Identify</legend>
        <input type="text" id="userId" placeholder="user id">
        <input type="text" id="username" placeholder="display name">
        <select id="userType">
            <option value="student">student</option>
            <option value="instructor">instructor</option>
        </select>
        <button onclick="identify()">Identify</button>
    </fieldset>

    <fieldset>
        <legend>Rooms</legend>
        <input type="text" id="roomName" placeholder="room name">
        <button onclick="createRoom()">Create</button>
        <input type="text" id="roomId" placeholder="room id">
        <button onclick="joinRoom()">Join</button>
        <button onclick="leaveRoom()">Leave</button>
    </fieldset>

    <fieldset>
        <legend>Chat</legend>
        <input type="text" id="text" placeholder="message" size="40">
        <button onclick="sendMessage()">Send</button>
    </fieldset>

    <div id="log"></div>

    <script>
        let ws = null;
        const logDiv = document.getElementById('log');

        function logLine(text) {
            const el = document.createElement('div');
            el.textContent = text;
            logDiv.appendChild(el);
            logDiv.scrollTop = logDiv.scrollHeight;
        }

        function send(type, payload) {
            if (!ws || ws.readyState !== WebSocket.OPEN) {
                logLine('not connected');
                return;
            }
            ws.send(JSON.stringify({type: type, payload: payload}));
            logLine('>> ' + type);
        }

        function connect() {
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onopen = () => logLine('connected');
            ws.onclose = () => { logLine('closed'); ws = null; };
            ws.onmessage = (ev) => {
                logLine('<< ' + ev.data);
                const env = JSON.parse(ev.data);
                if (env.type === 'ROOM_JOINED') {
                    document.getElementById('roomId').value = env.payload.id;
                }
            };
        }

        function disconnect() { if (ws) ws.close(); }

        function identify() {
            send('IDENTIFY_USER', {
                id: document.getElementById('userId').value,
                username: document.getElementById('username').value,
                type: document.getElementById('userType').value
            });
        }

        function createRoom() {
            send('CREATE_ROOM', {roomName: document.getElementById('roomName').value});
        }

        function joinRoom() {
            send('JOIN_ROOM', {roomId: document.getElementById('roomId').value});
        }

        function leaveRoom() {
            send('LEAVE_ROOM', {roomId: document.getElementById('roomId').value});
        }

        function sendMessage() {
            send('SEND_MESSAGE', {
                roomId: document.getElementById('roomId').value,
                text: document.getElementById('text').value
            });
            document.getElementById('text').value = '';
        }
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
