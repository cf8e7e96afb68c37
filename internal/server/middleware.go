// Package server provides composable HTTP middleware guarding the upgrade
// endpoint. Identity issuance itself lives in the surrounding platform; the
// coordinator only verifies that the caller passed its gate.
package server

import (
	"log"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// Middleware wraps an http.HandlerFunc with a cross-cutting concern.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// CreateStack composes middlewares into one. The first middleware in the
// list is the outermost.
func CreateStack(middlewares ...Middleware) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// JWTGate rejects upgrade requests whose "token" query parameter does not
// verify against the configured HS256 secret. When no secret is configured
// the gate is a no-op, preserving deployments where the platform terminates
// authentication upstream.
func JWTGate() Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			secret := currentConfig().JWTSecret
			if secret == "" {
				next(w, r)
				return
			}

			tokenStr := r.URL.Query().Get("token")
			if tokenStr == "" {
				log.Printf("Rejected connection from %s: no authentication token", r.RemoteAddr)
				http.Error(w, "authentication token required", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenStr, func(*jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				log.Printf("Rejected connection from %s: invalid token: %v", r.RemoteAddr, err)
				http.Error(w, "invalid authentication token", http.StatusUnauthorized)
				return
			}

			next(w, r)
		}
	}
}
