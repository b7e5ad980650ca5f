package voteauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/decide-vote/voteauth/internal"
	"github.com/decide-vote/voteauth/internal/stores"
)

// Login describes the login operation and its observable behavior.
//
// Credential outcomes are deliberately flattened: an unknown username and a
// wrong password both return [ErrInvalidCredentials], and both count against
// the account's failure streak. A blocked account returns [ErrAccountLocked]
// only after the submitted password verified, so the error never doubles as
// a username oracle. When the account has a confirmed authenticator, no
// token is issued; the caller must redeem the returned ChallengeID through
// [Engine.ConfirmLoginTwoFactor].
func (e *Engine) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if e == nil || e.tokens == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	if username == "" || password == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	user, err := e.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Unknown usernames still burn an attempt so probing a name
			// costs the same as probing a password.
			if ferr := e.recordLoginFailure(ctx, username); ferr != nil {
				return nil, ferr
			}
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	match, err := e.passwordHash.Verify(password, user.PasswordHash)
	if err != nil || !match {
		if ferr := e.recordLoginFailure(ctx, username); ferr != nil {
			return nil, ferr
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if user.IsBlocked {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, user.ID, ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}

	if e.config.TOTP.Enabled && user.TOTPConfirmed && len(user.TOTPSecret) > 0 {
		return e.beginTwoFactorLogin(ctx, user)
	}

	result, err := e.issueToken(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, nil, nil)
	return result, nil
}

// beginTwoFactorLogin parks the half-authenticated login behind a challenge.
// The failure streak is NOT reset here: credentials alone are not a login.
func (e *Engine) beginTwoFactorLogin(ctx context.Context, user *User) (*LoginResult, error) {
	challengeID, err := internal.NewChallengeID()
	if err != nil {
		return nil, err
	}

	record := &stores.TwoFactorChallenge{
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(e.config.TOTP.ChallengeTTL).Unix(),
	}
	if err := e.challenges.Save(ctx, challengeID, record, e.config.TOTP.ChallengeTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	e.metricInc(MetricTwoFactorRequired)
	e.emitAudit(ctx, auditEventTwoFactorRequired, true, user.ID, nil, nil)

	return &LoginResult{
		UserID:            user.ID,
		TwoFactorRequired: true,
		ChallengeID:       challengeID,
	}, nil
}

// ConfirmLoginTwoFactor redeems a pending challenge with an authenticator
// code. On success the challenge is deleted and a session token minted; the
// delete is the single-success gate, so two racing confirms with the same
// challenge yield exactly one token. Wrong codes consume the challenge's own
// attempt budget and the challenge is destroyed when it runs out, forcing a
// fresh credential login.
func (e *Engine) ConfirmLoginTwoFactor(ctx context.Context, challengeID, code string) (*LoginResult, error) {
	if e == nil || e.tokens == nil || e.users == nil || e.challenges == nil {
		return nil, ErrEngineNotReady
	}
	if challengeID == "" {
		return nil, ErrChallengeExpired
	}

	record, err := e.challenges.Get(ctx, challengeID)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrChallengeNotFound), errors.Is(err, stores.ErrChallengeExpired):
			return nil, ErrChallengeExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	user, err := e.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_, _ = e.challenges.Delete(ctx, challengeID)
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if user.IsBlocked {
		// Blocked mid-challenge, e.g. by an administrator.
		_, _ = e.challenges.Delete(ctx, challengeID)
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, user.ID, ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}

	if len(user.TOTPSecret) == 0 || !user.TOTPConfirmed {
		_, _ = e.challenges.Delete(ctx, challengeID)
		return nil, ErrTwoFactorNotEnrolled
	}

	ok, err := e.totp.VerifyCode(user.TOTPSecret, code, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		exceeded, rerr := e.challenges.RecordFailure(ctx, challengeID, e.config.TOTP.MaxChallengeAttempts)
		if rerr != nil {
			switch {
			case errors.Is(rerr, stores.ErrChallengeNotFound), errors.Is(rerr, stores.ErrChallengeExpired):
				return nil, ErrChallengeExpired
			default:
				return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, rerr)
			}
		}

		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, user.ID, ErrInvalidCode, nil)
		if exceeded {
			return nil, ErrChallengeAttemptsExceeded
		}
		return nil, ErrInvalidCode
	}

	deleted, err := e.challenges.Delete(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !deleted {
		// Lost the race against another confirm, or the TTL fired.
		return nil, ErrChallengeExpired
	}

	result, err := e.issueToken(ctx, user)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricTwoFactorSuccess)
	e.emitAudit(ctx, auditEventTwoFactorSuccess, true, user.ID, nil, nil)
	return result, nil
}

// recordLoginFailure bumps the per-account failure streak and blocks the
// account when the configured threshold is reached. The streak is then
// cleared so a later administrative unblock starts from zero.
func (e *Engine) recordLoginFailure(ctx context.Context, username string) error {
	if e.lockout == nil {
		return nil
	}

	reached, err := e.lockout.RecordFailure(ctx, username)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !reached {
		return nil
	}

	user, err := e.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Nothing to block; the counter keeps absorbing attempts.
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if !user.IsBlocked {
		user.IsBlocked = true
		if err := e.users.Save(ctx, user); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		e.metricInc(MetricAccountBlocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, user.ID, ErrAccountLocked, func() map[string]string {
			return map[string]string{"reason": "failed_login_threshold"}
		})
	}

	return e.lockout.Reset(ctx, username)
}
