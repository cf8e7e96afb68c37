// Package server wires HTTP handlers into a ServeMux for the classchat
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: health check, the guarded WebSocket endpoint, and the test page.
func SetupRoutes() *http.ServeMux {
	guarded := CreateStack(JWTGate())

	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", guarded(WebSocketHandler))
	mux.HandleFunc("/test", TestPageHandler)
	return mux
}
