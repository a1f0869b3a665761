package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atinyakov/asrcollect/internal/session"
	"github.com/go-chi/jwtauth/v5"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

func newVerifiedChain(t *testing.T, m *session.Manager, next http.Handler) http.Handler {
	t.Helper()
	return jwtauth.Verify(m.TokenAuth(), jwtauth.TokenFromCookie, jwtauth.TokenFromHeader)(Session(next))
}

func TestSession_ValidCookie(t *testing.T) {
	m, err := session.NewManager("secret", time.Hour, false)
	if err != nil {
		t.Fatal(err)
	}
	token, err := m.Issue("u1", "alice")
	if err != nil {
		t.Fatal(err)
	}

	dummy := &dummyHandler{}
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
	newVerifiedChain(t, m, dummy).ServeHTTP(httptest.NewRecorder(), req)

	if !dummy.called {
		t.Fatal("expected next handler to be called")
	}
	s, ok := SessionFromContext(dummy.ctx)
	if !ok || s.UserID != "u1" || s.Username != "alice" {
		t.Errorf("expected session for alice, got %+v (ok=%v)", s, ok)
	}
	if got := GetUserIDFromContext(dummy.ctx); got != "u1" {
		t.Errorf("GetUserIDFromContext = %q, want u1", got)
	}
}

func TestSession_BearerHeader(t *testing.T) {
	m, _ := session.NewManager("secret", 0, false)
	token, _ := m.Issue("u2", "bob")

	dummy := &dummyHandler{}
	req := httptest.NewRequest("GET", "/api/samples/next", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	newVerifiedChain(t, m, dummy).ServeHTTP(httptest.NewRecorder(), req)

	if got := GetUserIDFromContext(dummy.ctx); got != "u2" {
		t.Errorf("GetUserIDFromContext = %q, want u2", got)
	}
}

func TestSession_Anonymous(t *testing.T) {
	m, _ := session.NewManager("secret", time.Hour, false)
	other, _ := session.NewManager("other", time.Hour, false)
	forged, _ := other.Issue("u1", "alice")

	tests := []struct {
		name   string
		cookie string
	}{
		{"no cookie", ""},
		{"garbage", "not-a-token"},
		{"wrong key", forged},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dummy := &dummyHandler{}
			req := httptest.NewRequest("GET", "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: session.CookieName, Value: tt.cookie})
			}
			newVerifiedChain(t, m, dummy).ServeHTTP(httptest.NewRecorder(), req)

			if !dummy.called {
				t.Fatal("anonymous requests must pass through")
			}
			if _, ok := SessionFromContext(dummy.ctx); ok {
				t.Error("did not expect a session")
			}
		})
	}
}

func TestRequireSession(t *testing.T) {
	onMissing := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}

	dummy := &dummyHandler{}
	rec := httptest.NewRecorder()
	RequireSession(onMissing)(dummy).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if dummy.called || rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without calling next, got %d (called=%v)", rec.Code, dummy.called)
	}

	dummy = &dummyHandler{}
	rec = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(WithSession(req.Context(), session.Session{UserID: "u1"}))
	RequireSession(onMissing)(dummy).ServeHTTP(rec, req)
	if !dummy.called || rec.Code != http.StatusOK {
		t.Errorf("expected next to be called, got %d (called=%v)", rec.Code, dummy.called)
	}
}
