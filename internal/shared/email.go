package shared

import (
	"fmt"
	"net/mail"
	"strings"
)

// NormalizeEmail validates a bare email address and returns its canonical form.
//
// Display-name forms ("Jane <jane@example.com>") are rejected. The domain is lowercased and the
// local part is kept as typed; the domain must contain at least one dot.
func NormalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty address", ErrInvalidEmail)
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}
	if addr.Name != "" || addr.Address != trimmed {
		return "", fmt.Errorf("%w: display names are not allowed", ErrInvalidEmail)
	}

	at := strings.LastIndex(addr.Address, "@")
	local, domain := addr.Address[:at], addr.Address[at+1:]
	if local == "" {
		return "", fmt.Errorf("%w: empty local part", ErrInvalidEmail)
	}
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", fmt.Errorf("%w: invalid domain %q", ErrInvalidEmail, domain)
	}

	return local + "@" + strings.ToLower(domain), nil
}
