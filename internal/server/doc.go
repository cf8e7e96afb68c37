// Package server implements the real-time classroom chat coordinator for
// the tutorlink platform.
//
// The implementation is organized into specialized files for configuration,
// the connection hub, clients, rooms, moderation, and the protocol
// coordinator to keep the codebase maintainable and testable as the project
// grows.
package server
