package voteauth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/decide-vote/voteauth/internal"
	"github.com/decide-vote/voteauth/internal/stores"
)

const resetMailSubject = "Restablecer contraseña"

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// Lookup is by email. An address with no account returns success without
// sending anything, so the endpoint cannot be used to enumerate registered
// emails. For known accounts a single-use reset link is mailed; only the
// hash of the link's secret is stored, and the record expires after the
// configured TTL.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.users == nil || e.resetStore == nil {
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return ErrResetDisabled
	}
	if e.notifier == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	resetID, secret, err := internal.NewResetChallenge()
	if err != nil {
		return err
	}

	record := &stores.ResetChallenge{
		UserID:     user.ID,
		SecretHash: internal.HashResetSecret(secret),
		ExpiresAt:  time.Now().Add(e.config.PasswordReset.ResetTTL).Unix(),
	}
	if err := e.resetStore.Save(ctx, resetID, record, e.config.PasswordReset.ResetTTL); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	resetToken, err := internal.EncodeResetToken(resetID, secret)
	if err != nil {
		return err
	}

	link := e.resetLink(user.ID, resetToken)
	body := fmt.Sprintf(
		"Alguien solicitó restablecer la contraseña del correo electrónico %s.\n"+
			"Haz click en el siguiente link:\n"+
			"%s\n"+
			"Tu nombre de usuario, en caso de que lo hayas olvidado: %s",
		user.Email, link, user.Username,
	)

	if err := e.notifier.Send(ctx, user.Email, resetMailSubject, body, ""); err != nil {
		return err
	}

	e.metricInc(MetricResetRequested)
	e.emitAudit(ctx, auditEventResetRequested, true, user.ID, nil, nil)
	return nil
}

// ConfirmPasswordReset describes the confirmpasswordreset operation and its observable behavior.
//
// Redeems a reset token from the emailed link and installs the new password.
// The challenge is consumed on first presentation regardless of outcome, so
// a leaked link is worth at most one attempt; missing, expired, and
// mismatched tokens are all reported as [ErrResetInvalid].
func (e *Engine) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error {
	if e == nil || e.users == nil || e.resetStore == nil {
		return ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return ErrResetDisabled
	}
	if newPassword == "" {
		return ErrBadRequest
	}

	resetID, secret, err := internal.DecodeResetToken(resetToken)
	if err != nil {
		e.emitAudit(ctx, auditEventResetFailure, false, "", ErrResetInvalid, nil)
		return ErrResetInvalid
	}

	record, err := e.resetStore.Consume(ctx, resetID)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrResetNotFound), errors.Is(err, stores.ErrResetExpired):
			e.emitAudit(ctx, auditEventResetFailure, false, "", ErrResetInvalid, nil)
			return ErrResetInvalid
		default:
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	presented := internal.HashResetSecret(secret)
	if subtle.ConstantTimeCompare(presented[:], record.SecretHash[:]) != 1 {
		e.emitAudit(ctx, auditEventResetFailure, false, record.UserID, ErrResetInvalid, nil)
		return ErrResetInvalid
	}

	user, err := e.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrResetInvalid
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := e.users.Save(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	e.metricInc(MetricResetConfirmed)
	e.emitAudit(ctx, auditEventResetConfirmed, true, user.ID, nil, nil)
	return nil
}

// resetLink assembles {protocol}://{domain}{path}/{uid}/{token}, with the
// user id transported base64url-encoded the way the web client expects.
func (e *Engine) resetLink(userID, resetToken string) string {
	uid := base64.RawURLEncoding.EncodeToString([]byte(userID))
	return e.config.PasswordReset.Protocol + "://" + e.config.PasswordReset.Domain +
		e.config.PasswordReset.Path + "/" + uid + "/" + resetToken
}
