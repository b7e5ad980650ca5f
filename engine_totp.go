package voteauth

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"time"

	"github.com/decide-vote/voteauth/token"
)

// BeginTwoFactorEnrollment describes the begintwofactorenrollment operation and its observable behavior.
//
// The caller authenticates with a session token. A fresh shared secret is
// generated and stored unconfirmed; until [Engine.ConfirmTwoFactorEnrollment]
// succeeds the account keeps logging in with the password alone, so an
// abandoned enrollment can never lock its owner out. Calling again discards
// any earlier unconfirmed secret.
func (e *Engine) BeginTwoFactorEnrollment(ctx context.Context, sessionToken string) (*TOTPSetup, error) {
	if e == nil || e.tokens == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.TOTP.Enabled {
		return nil, ErrTwoFactorNotEnrolled
	}

	user, err := e.userForToken(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	secret, secretBase32, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	user.TOTPSecret = secret
	user.TOTPConfirmed = false
	if err := e.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	e.metricInc(MetricEnrollmentStarted)
	e.emitAudit(ctx, auditEventEnrollmentStarted, true, user.ID, nil, nil)

	return &TOTPSetup{
		SecretBase32:    secretBase32,
		ProvisioningURI: e.totp.ProvisionURI(secretBase32, user.Username),
	}, nil
}

// ConfirmTwoFactorEnrollment describes the confirmtwofactorenrollment operation and its observable behavior.
//
// The submitted code must verify against the pending secret; this proves the
// authenticator actually holds it before logins start depending on it. Only
// after this call does the second factor gate [Engine.Login].
func (e *Engine) ConfirmTwoFactorEnrollment(ctx context.Context, sessionToken, code string) error {
	if e == nil || e.tokens == nil || e.users == nil {
		return ErrEngineNotReady
	}
	if !e.config.TOTP.Enabled {
		return ErrTwoFactorNotEnrolled
	}

	user, err := e.userForToken(ctx, sessionToken)
	if err != nil {
		return err
	}

	if len(user.TOTPSecret) == 0 {
		return ErrTwoFactorNotEnrolled
	}

	ok, err := e.totp.VerifyCode(user.TOTPSecret, code, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, user.ID, ErrInvalidCode, func() map[string]string {
			return map[string]string{"phase": "enrollment"}
		})
		return ErrInvalidCode
	}

	if !user.TOTPConfirmed {
		user.TOTPConfirmed = true
		if err := e.users.Save(ctx, user); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	e.metricInc(MetricEnrollmentConfirmed)
	e.emitAudit(ctx, auditEventEnrollmentConfirmed, true, user.ID, nil, nil)
	return nil
}

// TwoFactorSecretBase32 re-encodes a stored secret for display during
// enrollment. Provided for callers that render the QR and the manual-entry
// key on separate screens.
func (e *Engine) TwoFactorSecretBase32(ctx context.Context, sessionToken string) (string, error) {
	if e == nil || e.tokens == nil || e.users == nil {
		return "", ErrEngineNotReady
	}

	user, err := e.userForToken(ctx, sessionToken)
	if err != nil {
		return "", err
	}
	if len(user.TOTPSecret) == 0 {
		return "", ErrTwoFactorNotEnrolled
	}

	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return enc.EncodeToString(user.TOTPSecret), nil
}

// userForToken resolves a session token to its full account record.
func (e *Engine) userForToken(ctx context.Context, sessionToken string) (*User, error) {
	tok, err := e.tokens.Find(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	user, err := e.users.FindByID(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_, _ = e.tokens.Delete(ctx, sessionToken)
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return user, nil
}
