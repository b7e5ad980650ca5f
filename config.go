package voteauth

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvMaxFailedLoginAttempts is the environment variable consumed by
// [ConfigFromEnv] for the lockout threshold.
const EnvMaxFailedLoginAttempts = "AUTH_MAX_FAILED_LOGIN_ATTEMPTS"

// Config defines a public type used by voteauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token         TokenConfig
	TOTP          TOTPConfig
	Lockout       LockoutConfig
	Password      PasswordConfig
	Registration  RegistrationConfig
	PasswordReset PasswordResetConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig defines a public type used by voteauth APIs.
type TokenConfig struct {
	RedisPrefix string
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig defines a public type used by voteauth APIs.
//
// Digits, Period, and Skew follow RFC 6238 conventions: Period is the time
// step in seconds and Skew the number of adjacent steps accepted on either
// side of the current one.
type TOTPConfig struct {
	Enabled   bool
	Issuer    string
	Digits    int
	Period    int
	Skew      int
	Algorithm string // "SHA1" (default), "SHA256", "SHA512"

	// ChallengeTTL bounds the window between a credential-complete login and
	// the matching code submission. MaxChallengeAttempts is the per-challenge
	// wrong-code budget, counted separately from the credential lockout.
	ChallengeTTL         time.Duration
	MaxChallengeAttempts int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by voteauth APIs.
//
// MaxFailedAttempts has no hidden default: it must be injected, normally from
// AUTH_MAX_FAILED_LOGIN_ATTEMPTS via [ConfigFromEnv]. Window of zero means
// the failure streak never decays on its own.
type LockoutConfig struct {
	Enabled           bool
	MaxFailedAttempts int
	Window            time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by voteauth APIs.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig defines a public type used by voteauth APIs.
//
// MinPasswordLength applies to the self-service path only; the privileged
// path accepts whatever the administrator submits, matching the platform's
// historical behavior.
type RegistrationConfig struct {
	SelfServiceEnabled bool
	MinPasswordLength  int
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig defines a public type used by voteauth APIs.
//
// Protocol, Domain, and Path assemble the reset link embedded in the
// notification body: {Protocol}://{Domain}{Path}/{uid}/{token}.
type PasswordResetConfig struct {
	Enabled  bool
	ResetTTL time.Duration
	Protocol string
	Domain   string
	Path     string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by voteauth APIs.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by voteauth APIs.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			RedisPrefix: "vat",
		},
		TOTP: TOTPConfig{
			Enabled:              true,
			Issuer:               "Decide App",
			Digits:               6,
			Period:               30,
			Skew:                 1,
			Algorithm:            "SHA1",
			ChallengeTTL:         3 * time.Minute,
			MaxChallengeAttempts: 3,
		},
		Lockout: LockoutConfig{
			Enabled: true,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Registration: RegistrationConfig{
			SelfServiceEnabled: true,
			MinPasswordLength:  8,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:  true,
			ResetTTL: 30 * time.Minute,
			Protocol: "http",
			Domain:   "127.0.0.1:8000",
			Path:     "/authentication/reset",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// ConfigFromEnv returns the default configuration overlaid with environment
// settings. A .env file is honored when present (godotenv), already-set
// process variables win.
func ConfigFromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if raw := os.Getenv(EnvMaxFailedLoginAttempts); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Config{}, errors.New(EnvMaxFailedLoginAttempts + " must be an integer >= 1")
		}
		cfg.Lockout.MaxFailedAttempts = n
	}
	if v := os.Getenv("AUTH_TOTP_ISSUER"); v != "" {
		cfg.TOTP.Issuer = v
	}
	if v := os.Getenv("AUTH_RESET_PROTOCOL"); v != "" {
		cfg.PasswordReset.Protocol = v
	}
	if v := os.Getenv("AUTH_RESET_DOMAIN"); v != "" {
		cfg.PasswordReset.Domain = v
	}
	if v := os.Getenv("AUTH_RESET_PATH"); v != "" {
		cfg.PasswordReset.Path = v
	}

	return cfg, nil
}

func cloneConfig(cfg Config) Config {
	// All fields are value types; a shallow copy is a deep copy.
	return cfg
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
func (c *Config) Validate() error {
	if c.Token.RedisPrefix == "" {
		return errors.New("token redis prefix required")
	}
	if c.Lockout.Enabled && c.Lockout.MaxFailedAttempts < 1 {
		return errors.New("lockout max failed attempts must be >= 1")
	}
	if c.TOTP.Enabled {
		if c.TOTP.Digits < 6 || c.TOTP.Digits > 10 {
			return errors.New("totp digits must be between 6 and 10")
		}
		if c.TOTP.Period <= 0 {
			return errors.New("totp period must be positive")
		}
		if c.TOTP.Skew < 0 {
			return errors.New("totp skew must not be negative")
		}
		switch strings.ToUpper(c.TOTP.Algorithm) {
		case "", "SHA1", "SHA256", "SHA512":
		default:
			return errors.New("unsupported totp algorithm")
		}
		if c.TOTP.ChallengeTTL <= 0 {
			return errors.New("totp challenge ttl must be positive")
		}
		if c.TOTP.MaxChallengeAttempts < 1 {
			return errors.New("totp max challenge attempts must be >= 1")
		}
	}
	if c.Registration.SelfServiceEnabled && c.Registration.MinPasswordLength < 1 {
		return errors.New("registration min password length must be >= 1")
	}
	if c.PasswordReset.Enabled {
		if c.PasswordReset.ResetTTL <= 0 {
			return errors.New("password reset ttl must be positive")
		}
		if c.PasswordReset.Protocol == "" || c.PasswordReset.Domain == "" {
			return errors.New("password reset link protocol and domain required")
		}
	}
	return nil
}
