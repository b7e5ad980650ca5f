package voteauth

import "context"

// User is the full account record exchanged with [UserStore]. The engine
// reads credentials and two-factor state from it and writes back blocking
// and enrollment transitions. Implementations own ID assignment on Create.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsSuperuser  bool
	IsBlocked    bool

	// TOTPSecret is the raw shared secret, nil until enrollment begins.
	// TOTPConfirmed reports whether the owner has proven possession of the
	// secret with a valid code; only confirmed secrets gate login.
	TOTPSecret    []byte
	TOTPConfirmed bool
}

// PublicUser is the profile shape returned by [Engine.GetUser]. It never
// carries the password hash or the TOTP secret.
type PublicUser struct {
	ID       string
	Username string
}

// UserStore is the interface callers must implement to integrate voteauth
// with their user database. Lookup misses are reported with [ErrUserNotFound]
// and unique-constraint violations on Create with [ErrDuplicateUser]; any
// other failure is treated as a backend outage.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	Save(ctx context.Context, user *User) error
}

// Notifier delivers outbound mail. The engine only composes the reset
// message; transport, templating beyond the body string, and retries are the
// implementation's concern.
type Notifier interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// LoginResult is returned by [Engine.Login], [Engine.ConfirmLoginTwoFactor],
// and [Engine.RegisterSelfService]. Either Token is set (full session), or
// TwoFactorRequired is true and ChallengeID must be redeemed through
// [Engine.ConfirmLoginTwoFactor] before any token exists.
type LoginResult struct {
	Token  string
	UserID string

	TwoFactorRequired bool
	ChallengeID       string
}

// RegisterResult is returned by [Engine.RegisterPrivileged]. It includes the
// new account's primary key and a freshly issued session token.
type RegisterResult struct {
	UserPK string
	Token  string
}

// TOTPSetup holds the base32-encoded shared secret and the otpauth://
// provisioning URI returned by [Engine.BeginTwoFactorEnrollment]. QR image
// rendering of the URI is an external collaborator's job.
type TOTPSetup struct {
	SecretBase32    string
	ProvisioningURI string
}
