package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Validation errors (user-correctable, 4xx)
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrInvalidEmail       = fmt.Errorf("incorrect email format")
	ErrInvalidPassword    = fmt.Errorf("invalid password")
	ErrDuplicateEmail     = fmt.Errorf("email already registered")
	ErrInvalidCredentials = fmt.Errorf("invalid email or password")
	ErrUnsupportedMedia   = fmt.Errorf("request must be JSON")
	ErrMissingArgument    = fmt.Errorf("missing required argument")

	// Session errors
	ErrUnauthorized            = fmt.Errorf("unauthorized")
	ErrSessionMissing          = fmt.Errorf("%w: token is missing", ErrUnauthorized)
	ErrSessionMalformed        = fmt.Errorf("%w: token is malformed", ErrUnauthorized)
	ErrSessionExpired          = fmt.Errorf("%w: token has expired", ErrUnauthorized)
	ErrSessionInvalidSignature = fmt.Errorf("%w: invalid token signature", ErrUnauthorized)

	// Delegation errors
	ErrNotLinked           = fmt.Errorf("spotify account not linked")
	ErrExternalAuthExpired = fmt.Errorf("spotify authorization expired, please re-authorize")
	ErrExchangeRejected    = fmt.Errorf("authorization code rejected, please re-authorize")
	ErrExchangeFailed      = fmt.Errorf("token endpoint unavailable")
	ErrInvalidState        = fmt.Errorf("invalid state parameter")
	ErrTokenRevoked        = fmt.Errorf("access token rejected by spotify")
	ErrAPIRequest          = fmt.Errorf("API request failed")

	// Storage errors
	ErrStorage  = fmt.Errorf("storage error")
	ErrNotFound = fmt.Errorf("not found")
)
