package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestOriginCheck(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{AllowedOrigins: []string{"https://app.example.com"}})

	cases := []struct {
		origin string
		want   bool
	}{
		{"https://app.example.com", true},
		{"HTTPS://APP.EXAMPLE.COM", true},
		{"https://evil.example.com", false},
		{"", false},
		{"not a url", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tc.origin != "" {
			r.Header.Set("Origin", tc.origin)
		}
		if got := isOriginAllowed(r); got != tc.want {
			t.Errorf("isOriginAllowed(origin=%q) = %v, want %v", tc.origin, got, tc.want)
		}
	}
}

func TestOriginWildcard(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{AllowedOrigins: []string{"*"}})

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "https://anywhere.example.com")
	if !isOriginAllowed(r) {
		t.Error("wildcard configuration should allow any well-formed origin")
	}
}

func TestJWTGateDisabledWithoutSecret(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{})

	called := false
	handler := JWTGate()(func(http.ResponseWriter, *http.Request) { called = true })

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/ws", nil))

	if !called {
		t.Error("gate should pass through when no secret is configured")
	}
}

func TestJWTGateRejectsMissingAndInvalidTokens(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{JWTSecret: "test-secret"})

	handler := JWTGate()(func(http.ResponseWriter, *http.Request) {
		t.Error("handler must not run for a rejected request")
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: status = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/ws?token=garbage", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: status = %d, want 401", w.Code)
	}

	// A token signed with the wrong secret is rejected too.
	wrong, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/ws?token="+wrong, nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d, want 401", w.Code)
	}
}

func TestJWTGateAcceptsValidToken(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })
	SetConfig(&Config{JWTSecret: "test-secret"})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	called := false
	handler := JWTGate()(func(http.ResponseWriter, *http.Request) { called = true })

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))

	if !called {
		t.Errorf("valid token should pass the gate, status = %d", w.Code)
	}
}

func TestCreateStackOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.HandlerFunc) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next(w, r)
			}
		}
	}

	handler := CreateStack(mw("outer"), mw("inner"))(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	})
	handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if len(order) != 3 || order[0] != "outer" || order[1] != "inner" || order[2] != "handler" {
		t.Errorf("middleware order = %v", order)
	}
}
