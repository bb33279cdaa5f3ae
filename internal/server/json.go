package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunegate/internal/shared"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// readJSON decodes the request body into v. Bodies that are not declared as JSON yield
// [shared.ErrUnsupportedMedia]; undecodable ones [shared.ErrInvalidInput].
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return shared.ErrUnsupportedMedia
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body", shared.ErrInvalidInput)
	}
	return nil
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiError is the client-facing rendering of an error.
type apiError struct {
	status  int
	code    string
	message string
}

// classify maps an error onto its HTTP status, a stable code and a message that is safe to return.
func classify(err error) apiError {
	switch {
	case errors.Is(err, shared.ErrUnsupportedMedia):
		return apiError{http.StatusUnsupportedMediaType, "UnsupportedMediaType", shared.ErrUnsupportedMedia.Error()}
	case errors.Is(err, shared.ErrDuplicateEmail):
		return apiError{http.StatusBadRequest, "DuplicateEmail", shared.ErrDuplicateEmail.Error()}
	case errors.Is(err, shared.ErrInvalidEmail):
		return apiError{http.StatusBadRequest, "InvalidEmail", shared.ErrInvalidEmail.Error()}
	case errors.Is(err, shared.ErrInvalidPassword):
		return apiError{http.StatusBadRequest, "InvalidPassword", err.Error()}
	case errors.Is(err, shared.ErrInvalidCredentials):
		return apiError{http.StatusBadRequest, "InvalidCredentials", shared.ErrInvalidCredentials.Error()}
	case errors.Is(err, shared.ErrInvalidInput):
		return apiError{http.StatusBadRequest, "InvalidInput", err.Error()}

	case errors.Is(err, shared.ErrSessionExpired):
		return apiError{http.StatusUnauthorized, "SessionExpired", shared.ErrSessionExpired.Error()}
	case errors.Is(err, shared.ErrSessionMissing):
		return apiError{http.StatusUnauthorized, "SessionMissing", shared.ErrSessionMissing.Error()}
	case errors.Is(err, shared.ErrSessionInvalidSignature), errors.Is(err, shared.ErrSessionMalformed):
		return apiError{http.StatusUnauthorized, "InvalidSession", "unauthorized: invalid token"}
	case errors.Is(err, shared.ErrUnauthorized):
		return apiError{http.StatusUnauthorized, "Unauthorized", shared.ErrUnauthorized.Error()}

	case errors.Is(err, shared.ErrNotLinked):
		return apiError{http.StatusForbidden, "NotLinked", shared.ErrNotLinked.Error()}
	case errors.Is(err, shared.ErrExternalAuthExpired):
		return apiError{http.StatusUnauthorized, "ExternalAuthExpired", shared.ErrExternalAuthExpired.Error()}
	case errors.Is(err, shared.ErrExchangeRejected):
		return apiError{http.StatusUnauthorized, "Rejected", shared.ErrExchangeRejected.Error()}
	case errors.Is(err, shared.ErrInvalidState):
		return apiError{http.StatusUnauthorized, "InvalidState", shared.ErrInvalidState.Error()}
	case errors.Is(err, shared.ErrExchangeFailed):
		return apiError{http.StatusBadGateway, "ExchangeFailed", shared.ErrExchangeFailed.Error()}
	case errors.Is(err, shared.ErrAPIRequest):
		return apiError{http.StatusBadGateway, "UpstreamError", "spotify request failed"}

	case errors.Is(err, shared.ErrNotFound):
		return apiError{http.StatusNotFound, "NotFound", shared.ErrNotFound.Error()}
	case errors.Is(err, shared.ErrStorage) && errors.Is(err, context.DeadlineExceeded):
		return apiError{http.StatusServiceUnavailable, "Unavailable", "service temporarily unavailable"}
	default:
		return apiError{http.StatusInternalServerError, "InternalError", "internal server error"}
	}
}

// writeError renders err as `{"error", "code"}`. Server-side failures are logged with their full chain.
func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	e := classify(err)
	if e.status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", e.status, "error", err)
	}
	if e.status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, e.status, errorResponse{Error: e.message, Code: e.code})
}
