// Package stores implements the Redis-backed challenge stores used between
// the steps of multi-step authentication flows: the pending two-factor login
// challenge and the single-use password reset challenge.
package stores
