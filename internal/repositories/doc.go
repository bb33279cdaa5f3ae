// Package repositories implements SQL persistence for users and their delegated Spotify tokens.
//
// Key Implementations:
//   - [UserRepository] : [models.CredentialStore] with email-based lookups
//   - [DelegatedTokenRepository] : [models.DelegatedTokenStore] backed by the oauth_* columns of users
//
// Queries are written once with `?` placeholders and rebound for postgres by [shared.DB.Rebind].
// Duplicate emails are detected from the driver error (sqlite3 extended code or postgres SQLSTATE 23505) rather than by
// a read-then-write check, so concurrent registrations cannot both succeed.
//
// Every operation runs under the database query timeout; failures are wrapped as [shared.ErrStorage].
package repositories
