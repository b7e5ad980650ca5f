// Package password provides argon2id hashing and verification with
// PHC-formatted encoded hashes. Length and complexity policy is enforced by
// the registration layer, not here: existing voter accounts predate any
// policy and must keep verifying.
package password
