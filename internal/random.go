package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

const (
	tokenKeySize      = 32
	challengeIDSize   = 16
	resetSecretSize   = 32
	resetTokenRawSize = 16 + resetSecretSize
)

// NewTokenKey returns a fresh opaque session token key: 32 random bytes,
// base64url without padding.
func NewTokenKey() (string, error) {
	var raw [tokenKeySize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewChallengeID returns an identifier for a pending two-factor login
// challenge. Challenge IDs are capability handles: holding one proves the
// credential step was completed.
func NewChallengeID() (string, error) {
	var raw [challengeIDSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewResetChallenge returns a reset challenge id (uuid form, used as the
// storage key) plus the single-use secret handed to the account owner.
func NewResetChallenge() (string, [resetSecretSize]byte, error) {
	var secret [resetSecretSize]byte
	id, err := uuid.NewRandom()
	if err != nil {
		return "", secret, err
	}
	if _, err := rand.Read(secret[:]); err != nil {
		return "", secret, err
	}
	return id.String(), secret, nil
}

// HashResetSecret derives the stored form of a reset secret. Only the hash
// is persisted; the plaintext lives in the emailed link.
func HashResetSecret(secret [resetSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeResetToken packs the challenge id and secret into the opaque token
// embedded in the reset link.
func EncodeResetToken(resetID string, secret [resetSecretSize]byte) (string, error) {
	id, err := uuid.Parse(resetID)
	if err != nil {
		return "", err
	}

	var raw [resetTokenRawSize]byte
	copy(raw[:16], id[:])
	copy(raw[16:], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeResetToken reverses [EncodeResetToken].
func DecodeResetToken(token string) (string, [resetSecretSize]byte, error) {
	var secret [resetSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != resetTokenRawSize {
		return "", secret, errors.New("invalid reset token size")
	}

	var id uuid.UUID
	copy(id[:], raw[:16])
	copy(secret[:], raw[16:])

	return id.String(), secret, nil
}
