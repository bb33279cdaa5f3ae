// Package models defines domain entities and persistence interfaces for the tunegate authentication gateway.
//
// Entities:
//   - [User] : first-party account (normalized email, bcrypt hash) owning an optional delegation
//   - [DelegatedToken] : Spotify access/refresh pair with an absolute expiry instant
//
// Persistence interfaces:
//   - [CredentialStore] : registration and login lookups, uniqueness on email
//   - [DelegatedTokenStore] : per-user token reads and wholesale overwrites
//
// Session tokens are not modeled here; they are stateless and never persisted.
package models
