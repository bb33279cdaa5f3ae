package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunegate/internal/shared"
)

type linkResponse struct {
	URL string `json:"url"`
}

type callbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// DelegationHandler serves the Spotify authorization-code flow for an authenticated user.
//
// Every route requires [RequireSession] in front of it.
type DelegationHandler struct {
	broker DelegationBroker
	logger *log.Logger
}

func NewDelegationHandler(broker DelegationBroker, logger *log.Logger) *DelegationHandler {
	return &DelegationHandler{broker: broker, logger: logger}
}

// Link returns the Spotify authorization URL for the caller.
func (h *DelegationHandler) Link(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, h.logger, shared.ErrUnauthorized)
		return
	}

	url, err := h.broker.AuthorizationURL(r.Context(), id.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, linkResponse{URL: url})
}

// Callback exchanges the authorization code the frontend received on the redirect URI.
func (h *DelegationHandler) Callback(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, h.logger, shared.ErrUnauthorized)
		return
	}

	var req callbackRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.broker.ExchangeCode(r.Context(), id.UserID, req.Code, req.State); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Spotify account linked"})
}

// Status reports whether the caller has linked Spotify and whether the token is about to expire.
func (h *DelegationHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, h.logger, shared.ErrUnauthorized)
		return
	}

	status, err := h.broker.Status(r.Context(), id.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
