// Package session issues and reads the signed cookie that identifies a
// logged-in contributor.
package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the cookie jwtauth.TokenFromCookie reads.
const CookieName = "jwt"

// Session identifies the logged-in user.
type Session struct {
	UserID   string
	Username string
}

// Claims is the payload of a session token.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Manager signs session tokens with HS256.
type Manager struct {
	key    []byte
	auth   *jwtauth.JWTAuth
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewManager creates a Manager. An empty secret is replaced with a random
// key, which invalidates all sessions on restart. ttl of zero issues tokens
// without expiry. secure marks cookies HTTPS-only.
func NewManager(secret string, ttl time.Duration, secure bool) (*Manager, error) {
	key := []byte(secret)
	if secret == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
	}
	return &Manager{
		key:    key,
		auth:   jwtauth.New("HS256", key, nil),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}, nil
}

// TokenAuth returns the verifier for jwtauth.Verify.
func (m *Manager) TokenAuth() *jwtauth.JWTAuth {
	return m.auth
}

// Issue returns a signed token for the user.
func (m *Manager) Issue(userID, username string) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if m.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

// SetCookie stores token in the session cookie.
func (m *Manager) SetCookie(w http.ResponseWriter, token string) {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if m.ttl > 0 {
		c.MaxAge = int(m.ttl.Seconds())
	}
	http.SetCookie(w, c)
}

// ClearCookie removes the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Start issues a token and sets it as the session cookie.
func (m *Manager) Start(w http.ResponseWriter, userID, username string) error {
	token, err := m.Issue(userID, username)
	if err != nil {
		return err
	}
	m.SetCookie(w, token)
	return nil
}

// FromClaims rebuilds a Session from verified token claims.
func FromClaims(claims jwt.MapClaims) (Session, error) {
	id, ok := claims["user_id"].(string)
	if !ok || id == "" {
		return Session{}, errors.New("user_id claim is missing or not a string")
	}
	name, ok := claims["username"].(string)
	if !ok {
		return Session{}, errors.New("username claim is missing or not a string")
	}
	return Session{UserID: id, Username: name}, nil
}
