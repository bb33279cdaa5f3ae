// Package auth issues and checks first-party credentials.
//
// [PasswordHasher] wraps bcrypt for storing and verifying passwords. [SessionIssuer] signs and validates the
// short-lived HS256 session tokens handed out at login; sessions are stateless and cannot be revoked before they expire.
package auth
