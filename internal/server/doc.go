// Package server implements the HTTP authentication gateway.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] uses [http.ServeMux] with a
// per-route method filter; [Middleware] registered with Use wraps every route, in the order added. The method filter
// sits inside the middleware, so preflights reach [CORS] and a mismatch answers 405 with an Allow header.
//
// Global middleware: [Recover], [Logging], [Instrument] (Prometheus) and [CORS]. [RateLimit] guards the credential
// endpoints per client IP.
//
// # Guards
//
// Authentication is expressed as composable middleware rather than per-handler checks:
//
//	Chain(handler, RequireSession(...), RequireDelegation(...))
//
// [RequireSession] validates the Bearer session token and attaches an [Identity]; [RequireDelegation] asks the
// broker for a live Spotify access token and attaches it. Handlers read them back with [IdentityFrom] and
// [AccessTokenFrom]. A guard that fails writes the error response and stops the chain.
//
// # Routes
//
//	POST /register             {email, password}        200 | 400 | 415
//	POST /login                {email, password}        200 {token, expires_at} | 400 | 415
//	GET  /delegation/link      session                  200 {url}
//	POST /delegation/callback  session {code, state?}   200 | 401 Rejected/InvalidState | 502
//	GET  /delegation/status    session                  200 {status, expires_at}
//	GET  /protected-resource   session + delegation     200 | 403 NotLinked | 401 ExternalAuthExpired
//	GET  /healthz, GET /metrics
//
// The /api/register, /api/login, /api/spotify/link, /api/callback and /api/get-wrapped paths are served by the same
// handlers for existing frontends.
//
// # Errors
//
// Handlers return sentinel errors from the shared package; [classify] is the single place they become HTTP statuses.
// Responses carry `{"error": message, "code": kind}` and never include storage or upstream details.
package server
