package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunegate/internal/auth"
	"github.com/desertthunder/tunegate/internal/models"
	"github.com/desertthunder/tunegate/internal/shared"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthHandler serves registration and login.
type AuthHandler struct {
	users    models.CredentialStore
	hasher   PasswordHasher
	sessions SessionIssuer
	logger   *log.Logger
}

func NewAuthHandler(users models.CredentialStore, hasher PasswordHasher, sessions SessionIssuer, logger *log.Logger) *AuthHandler {
	return &AuthHandler{users: users, hasher: hasher, sessions: sessions, logger: logger}
}

// Register creates an account for a new email.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	email, err := shared.NormalizeEmail(req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		writeError(w, h.logger, err)
		return
	}

	// Cheap rejection before paying for bcrypt; the unique constraint still decides races.
	exists, err := h.users.Exists(r.Context(), email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if exists {
		writeError(w, h.logger, shared.ErrDuplicateEmail)
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	id, err := h.users.Create(r.Context(), email, hash)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("user registered", "user", id)
	writeJSON(w, http.StatusOK, messageResponse{Message: "User created successfully"})
}

// Login checks the password and issues a session token.
//
// Unknown emails and wrong passwords produce the same response, and both pay for one bcrypt comparison.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	email, err := shared.NormalizeEmail(req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	hash, ok, err := h.users.PasswordHash(r.Context(), email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !ok {
		h.hasher.VerifyNone(req.Password)
		writeError(w, h.logger, shared.ErrInvalidCredentials)
		return
	}
	if !h.hasher.Verify(req.Password, hash) {
		writeError(w, h.logger, shared.ErrInvalidCredentials)
		return
	}

	token, expiresAt, err := h.sessions.Issue(email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}
