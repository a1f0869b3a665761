package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func verify(t *testing.T, m *Manager, token string) (jwt.MapClaims, error) {
	t.Helper()
	tok, err := jwtauth.VerifyToken(m.TokenAuth(), token)
	if err != nil {
		return nil, err
	}
	claims, err := tok.AsMap(context.Background())
	return jwt.MapClaims(claims), err
}

func TestIssueAndVerify(t *testing.T) {
	m, err := NewManager("secret", time.Hour, false)
	require.NoError(t, err)

	token, err := m.Issue("u1", "alice")
	require.NoError(t, err)

	claims, err := verify(t, m, token)
	require.NoError(t, err)
	s, err := FromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, Session{UserID: "u1", Username: "alice"}, s)
}

func TestIssue_RegisteredClaims(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m, err := NewManager("secret", time.Hour, false)
	require.NoError(t, err)
	m.now = func() time.Time { return issued }

	token, err := m.Issue("u1", "alice")
	require.NoError(t, err)

	var claims Claims
	_, err = jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return issued.Add(time.Minute) }))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	require.NotNil(t, claims.IssuedAt)
	require.NotNil(t, claims.ExpiresAt)
	assert.True(t, claims.IssuedAt.Equal(issued))
	assert.True(t, claims.ExpiresAt.Equal(issued.Add(time.Hour)))
}

func TestIssue_NoExpiry(t *testing.T) {
	m, err := NewManager("secret", 0, false)
	require.NoError(t, err)

	token, err := m.Issue("u1", "alice")
	require.NoError(t, err)
	claims, err := verify(t, m, token)
	require.NoError(t, err)
	assert.NotContains(t, claims, "exp")
	assert.Contains(t, claims, "iat")
}

func TestVerify_OtherKeyRejected(t *testing.T) {
	a, err := NewManager("", 0, false)
	require.NoError(t, err)
	b, err := NewManager("", 0, false)
	require.NoError(t, err)

	token, err := a.Issue("u1", "alice")
	require.NoError(t, err)
	_, err = verify(t, b, token)
	assert.Error(t, err, "random keys differ per manager")
}

func TestVerify_Expired(t *testing.T) {
	m, err := NewManager("secret", time.Minute, false)
	require.NoError(t, err)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := m.Issue("u1", "alice")
	require.NoError(t, err)
	_, err = verify(t, m, token)
	assert.Error(t, err)
}

func TestFromClaims_Missing(t *testing.T) {
	_, err := FromClaims(jwt.MapClaims{"username": "alice"})
	assert.Error(t, err)
	_, err = FromClaims(jwt.MapClaims{"user_id": "u1"})
	assert.Error(t, err)
	_, err = FromClaims(jwt.MapClaims{"user_id": 7, "username": "alice"})
	assert.Error(t, err)
}

func TestCookies(t *testing.T) {
	m, err := NewManager("secret", 2*time.Hour, true)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Start(rec, "u1", "alice"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.NotEmpty(t, c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 7200, c.MaxAge)

	rec = httptest.NewRecorder()
	m.ClearCookie(rec)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}
