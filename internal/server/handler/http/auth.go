// Package http provides the HTML views and JSON API of the collection
// service.
package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/atinyakov/asrcollect/internal/common"
	"github.com/atinyakov/asrcollect/internal/models"
	"go.uber.org/zap"
)

// AuthService defines the authentication operations required by the handlers.
type AuthService interface {
	// Register creates an account; common.ErrAlreadyExists when taken.
	Register(ctx context.Context, username, password string) (*models.User, error)
	// Login returns common.ErrInvalidCredentials on any mismatch.
	Login(ctx context.Context, username, password string) (*models.User, error)
}

// Sessions starts and ends browser sessions.
type Sessions interface {
	Start(w http.ResponseWriter, userID, username string) error
	ClearCookie(w http.ResponseWriter)
}

// AuthHandler handles the JSON registration, login and logout endpoints.
type AuthHandler struct {
	AuthService AuthService
	Sessions    Sessions
	Log         *zap.Logger
}

// Credentials is the JSON payload for registration and login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserResponse describes the logged-in user.
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// MessageResponse carries a confirmation shown to the user.
type MessageResponse struct {
	Message string `json:"message"`
}

func decodeCredentials(r *http.Request) (Credentials, bool) {
	var c Credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		return c, false
	}
	return c, c.Username != "" && c.Password != ""
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(r)
	if !ok {
		common.RespondWithError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	u, err := h.AuthService.Register(r.Context(), creds.Username, creds.Password)
	if err != nil {
		respondError(w, h.Log, err, msgMissingFields)
		return
	}
	orNop(h.Log).Info("user registered", zap.String("user_id", u.ID))
	common.RespondWithJSON(w, http.StatusCreated, MessageResponse{Message: msgRegistered})
}

// Login handles POST /api/login and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	creds, ok := decodeCredentials(r)
	if !ok {
		common.RespondWithError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	u, err := h.AuthService.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		respondError(w, h.Log, err, msgMissingFields)
		return
	}
	if err := h.Sessions.Start(w, u.ID, u.Username); err != nil {
		respondError(w, h.Log, err, msgMissingFields)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, UserResponse{ID: u.ID, Username: u.Username})
}

// Logout handles POST /api/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
