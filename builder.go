package voteauth

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/decide-vote/voteauth/internal/limiters"
	"github.com/decide-vote/voteauth/internal/stores"
	"github.com/decide-vote/voteauth/password"
	"github.com/decide-vote/voteauth/token"
)

// Builder defines a public type used by voteauth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  *redis.Client

	users    UserStore
	notifier Notifier
	sink     AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithUserStore describes the withuserstore operation and its observable behavior.
func (b *Builder) WithUserStore(us UserStore) *Builder {
	b.users = us
	return b
}

// WithNotifier describes the withnotifier operation and its observable behavior.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if cfg.PasswordReset.Enabled && b.notifier == nil {
		return nil, errors.New("password reset requires a notifier")
	}

	engine := &Engine{
		config:   cfg,
		users:    b.users,
		notifier: b.notifier,
	}

	engine.tokens = token.NewStore(b.redis, cfg.Token.RedisPrefix)
	engine.lockout = limiters.NewLockoutGuard(b.redis, limiters.LockoutConfig{
		Enabled:   cfg.Lockout.Enabled,
		Threshold: cfg.Lockout.MaxFailedAttempts,
		Window:    cfg.Lockout.Window,
	})
	engine.challenges = stores.NewTwoFactorChallengeStore(b.redis, "")
	engine.resetStore = stores.NewResetChallengeStore(b.redis, "")
	engine.audit = newAuditDispatcher(cfg.Audit, b.sink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.totp = newTOTPManager(cfg.TOTP)
	engine.validate = validator.New()

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	b.built = true

	return engine, nil
}
