// Package delegation owns the lifecycle of the Spotify tokens held on a user's behalf.
//
// A user moves through these states:
//
//	not_linked -> valid -> expiring -> (refresh) -> valid
//	                                 \-> revoked (refresh rejected, user must link again)
//
// [Broker] builds the authorization URL, exchanges the returned code, and hands out access tokens through
// [Broker.EnsureValidToken], refreshing them when they fall inside the refresh skew. Refreshes for one user are
// collapsed into a single call to the token endpoint; requests for different users never wait on each other.
//
// A [StateStore] binds the anti-forgery state parameter to the user who asked for the link.
package delegation
