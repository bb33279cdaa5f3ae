package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunegate/internal/services"
	"github.com/desertthunder/tunegate/internal/shared"
)

// ResourceHandler proxies the caller's top tracks from Spotify. It requires [RequireDelegation].
type ResourceHandler struct {
	spotify services.Service
	logger  *log.Logger
}

func NewResourceHandler(spotify services.Service, logger *log.Logger) *ResourceHandler {
	return &ResourceHandler{spotify: spotify, logger: logger}
}

// ServeHTTP accepts optional `limit` (1-50) and `time_range` (short_term, medium_term, long_term) query parameters.
func (h *ResourceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := AccessTokenFrom(r.Context())
	if !ok {
		writeError(w, h.logger, shared.ErrNotLinked)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 50 {
			writeError(w, h.logger, fmt.Errorf("%w: limit must be between 1 and 50", shared.ErrInvalidInput))
			return
		}
		limit = n
	}
	timeRange := r.URL.Query().Get("time_range")

	page, err := h.spotify.TopTracks(r.Context(), token, limit, timeRange)
	if errors.Is(err, shared.ErrTokenRevoked) {
		// The broker vouched for this token, so Spotify has revoked the grant.
		writeError(w, h.logger, fmt.Errorf("%w: %w", shared.ErrExternalAuthExpired, err))
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, services.NewWrapped(timeRange, page))
}
