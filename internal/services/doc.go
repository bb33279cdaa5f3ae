// Package services implements clients for the third-party APIs reached with delegated tokens.
//
// # Spotify
//
// [NewOAuthConfig] builds the authorization-code [oauth2.Config] from [shared.SpotifyConfig]; the delegation broker
// owns the token lifecycle. [SpotifyClient] only ever sees a live access token and makes plain Bearer requests.
//
// # Error Handling
//
//   - [shared.ErrTokenRevoked] : the API answered 401, the delegated token is no longer accepted
//   - [shared.ErrAPIRequest] : transport failure, non-2xx status or undecodable body
//   - [shared.ErrMissingArgument] : no access token supplied
//
// # API Mappings
//
// [ToTrack] maps [SpotifyTrack] onto the provider-neutral [Track] returned to clients, taking the first artist and
// the ISRC from external_ids.
package services
