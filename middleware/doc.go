// Package middleware exposes an HTTP adapter for session enforcement built
// on top of voteauth.Engine token resolution.
//
// # Guards
//
//   - [Guard] — resolves the bearer token and injects the account's public
//     profile into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Engine.GetUser.
//
// # What this package must NOT do
//
//   - Inspect or decode token contents (tokens are opaque handles).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.GetUser.
package middleware
