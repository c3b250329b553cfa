// Package internal holds goGuard code that is private to this module.
//
// # Sub-packages
//
//   - limiters: the login-attempt lockout state machine
//   - logging: slog setup with trace and request IDs
//   - observability: metrics and health probe listener
package internal
