// Package voteauth implements session authentication for a voting platform:
// credential login, opaque bearer-token issuance and revocation, admin-gated
// registration, TOTP two-factor login, and a failed-login lockout policy.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// voteauth is the public surface. It exposes [Engine], [Builder], [Config],
// the collaborator contracts ([UserStore], [Notifier]), and value types
// (LoginResult, TOTPSetup, etc.). Internal coordination — lockout counting,
// two-factor challenge storage, reset challenge storage, audit dispatch —
// lives under internal/ and is never exported.
//
// # Token model
//
// Tokens are opaque random keys held in Redis. A token is valid if and only
// if it exists in the store; revocation is deletion, and there is no embedded
// expiry. Validate-by-lookup keeps logout linearizable: once [Engine.Logout]
// returns, the token no longer resolves from any caller.
//
// # What this package must NOT do
//
//   - Render HTML, QR images, or email templates beyond the reset body text.
//   - Expose password hashes or TOTP secrets through any public result type.
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
package voteauth
