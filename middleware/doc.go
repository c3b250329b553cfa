// Package middleware provides fiber handlers that bridge HTTP requests to a
// goGuard.Engine.
//
// # Handlers
//
//   - [RequestID]: correlates a request with its logs and audit events.
//   - [Logger]: one structured log line per request.
//   - [Authorize]: resolves the bearer token into an Identity. Never rejects.
//   - [RequireAuthenticated], [RequireRole]: enforce what Authorize resolved.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// parse or verify tokens itself; every decision about a token is delegated
// to Engine.Authenticate. A missing or invalid token leaves the request
// anonymous, and only the Require* handlers turn that into a 401.
package middleware
