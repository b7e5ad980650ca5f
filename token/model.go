package token

import "time"

// Token is an opaque session credential bound to one user. Key is the
// random unguessable string presented by clients; it is the only lookup
// path.
type Token struct {
	Key       string
	UserID    string
	CreatedAt time.Time
}
