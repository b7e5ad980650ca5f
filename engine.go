package voteauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/decide-vote/voteauth/internal/limiters"
	"github.com/decide-vote/voteauth/internal/stores"
	"github.com/decide-vote/voteauth/password"
	"github.com/decide-vote/voteauth/token"
)

// Engine defines a public type used by voteauth APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	users        UserStore
	notifier     Notifier
	tokens       *token.Store
	lockout      *limiters.LockoutGuard
	challenges   *stores.TwoFactorChallengeStore
	resetStore   *stores.ResetChallengeStore
	audit        *auditDispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	totp         *totpManager
	validate     *validator.Validate
}

// Close describes the close operation and its observable behavior.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// GetUser resolves a session token to the owner's public profile. Unknown
// tokens and tokens whose owner no longer exists both report
// [ErrTokenNotFound]; in the orphan case the stale token is removed so it
// can never resolve again.
func (e *Engine) GetUser(ctx context.Context, tokenKey string) (*PublicUser, error) {
	if e == nil || e.tokens == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	tok, err := e.tokens.Find(ctx, tokenKey)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	user, err := e.users.FindByID(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_, _ = e.tokens.Delete(ctx, tokenKey)
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return &PublicUser{
		ID:       user.ID,
		Username: user.Username,
	}, nil
}

// Logout revokes a session token. Revoking an absent token is a no-op, so
// the operation is idempotent; backend outages still surface.
func (e *Engine) Logout(ctx context.Context, tokenKey string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	deleted, err := e.tokens.Delete(ctx, tokenKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if deleted {
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, true, "", nil, nil)
	}
	return nil
}

// issueToken mints a session token and resets the owner's failure streak.
// Called only after every required factor has been verified.
func (e *Engine) issueToken(ctx context.Context, user *User) (*LoginResult, error) {
	tok, err := e.tokens.Create(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if e.lockout != nil {
		if err := e.lockout.Reset(ctx, user.Username); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	e.metricInc(MetricTokenCreated)
	return &LoginResult{
		Token:  tok.Key,
		UserID: user.ID,
	}, nil
}
