package voteauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/decide-vote/voteauth/token"
)

// RegisterPrivileged describes the registerprivileged operation and its observable behavior.
//
// The caller authenticates with a session token whose owner must be a
// superuser. Input problems, including username collisions, are flattened to
// [ErrBadRequest]: the administrative client predates itemized errors and
// keys off the status alone. On success the new account's primary key is
// returned together with a session token already bound to it.
func (e *Engine) RegisterPrivileged(ctx context.Context, adminToken, username, password string) (*RegisterResult, error) {
	if e == nil || e.tokens == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	tok, err := e.tokens.Find(ctx, adminToken)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	caller, err := e.users.FindByID(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_, _ = e.tokens.Delete(ctx, adminToken)
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !caller.IsSuperuser {
		e.emitAudit(ctx, auditEventRegisterFailure, false, caller.ID, ErrUnauthorized, nil)
		return nil, ErrUnauthorized
	}

	if username == "" || password == "" {
		e.metricInc(MetricRegisterInvalid)
		e.emitAudit(ctx, auditEventRegisterFailure, false, caller.ID, ErrBadRequest, nil)
		return nil, ErrBadRequest
	}

	hash, err := e.passwordHash.Hash(password)
	if err != nil {
		return nil, err
	}

	created, err := e.users.Create(ctx, &User{
		Username:     username,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterFailure, false, caller.ID, ErrDuplicateUser, nil)
			return nil, ErrBadRequest
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	newToken, err := e.tokens.Create(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.metricInc(MetricTokenCreated)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, created.ID, nil, func() map[string]string {
		return map[string]string{"by": caller.ID}
	})

	return &RegisterResult{
		UserPK: created.ID,
		Token:  newToken.Key,
	}, nil
}

// RegisterSelfService describes the registerselfservice operation and its observable behavior.
//
// Open sign-up keyed on email: the email doubles as the username. Unlike the
// privileged path, validation failures are itemized per field through
// [*ValidationError] so forms can annotate inputs. A successful registration
// logs the new account straight in.
func (e *Engine) RegisterSelfService(ctx context.Context, email, password, passwordConfirmation string) (*LoginResult, error) {
	if e == nil || e.tokens == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.Registration.SelfServiceEnabled {
		return nil, ErrRegistrationDisabled
	}

	verr := newValidationError()

	if err := e.validate.Var(email, "required,email"); err != nil {
		verr.add("email", "must be a valid email address")
	}

	minTag := "required,min=" + strconv.Itoa(e.config.Registration.MinPasswordLength)
	if err := e.validate.Var(password, minTag); err != nil {
		verr.add("password", fmt.Sprintf(
			"must be at least %d characters", e.config.Registration.MinPasswordLength,
		))
	}
	if passwordConfirmation != password {
		verr.add("password_confirmation", "must match password")
	}

	if !verr.empty() {
		e.metricInc(MetricRegisterInvalid)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", verr, nil)
		return nil, verr
	}

	if _, err := e.users.FindByEmail(ctx, email); err == nil {
		verr.add("email", "already registered")
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", verr, nil)
		return nil, verr
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	hash, err := e.passwordHash.Hash(password)
	if err != nil {
		return nil, err
	}

	created, err := e.users.Create(ctx, &User{
		Username:     email,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			verr.add("email", "already registered")
			e.metricInc(MetricRegisterDuplicate)
			return nil, verr
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	result, err := e.issueToken(ctx, created)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, created.ID, nil, nil)
	return result, nil
}
