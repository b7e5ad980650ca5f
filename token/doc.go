// Package token implements the opaque bearer-token store. A token is valid
// if and only if its key exists in Redis; revocation is deletion and there
// is no embedded expiry. Create, Find, and Delete are single-key Redis
// operations, so token visibility is linearizable per key.
package token
