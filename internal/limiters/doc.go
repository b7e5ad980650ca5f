// Package limiters implements the Redis-backed failed-login lockout counter.
// Counters use single-key INCR so concurrent failures for one account never
// lose increments.
package limiters
