package voteauth

import "errors"

var (
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is an exported constant or variable used by the authentication engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidCode is an exported constant or variable used by the authentication engine.
	ErrInvalidCode = errors.New("invalid one-time code")
	// ErrTokenNotFound is an exported constant or variable used by the authentication engine.
	ErrTokenNotFound = errors.New("token not found")
	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnauthorized is an exported constant or variable used by the authentication engine.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrBadRequest is an exported constant or variable used by the authentication engine.
	ErrBadRequest = errors.New("bad request")
	// ErrDuplicateUser is an exported constant or variable used by the authentication engine.
	ErrDuplicateUser = errors.New("duplicate user")
	// ErrStorageUnavailable is an exported constant or variable used by the authentication engine.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrTwoFactorRequired is an exported constant or variable used by the authentication engine.
	ErrTwoFactorRequired = errors.New("two-factor verification required")
	// ErrTwoFactorNotEnrolled is an exported constant or variable used by the authentication engine.
	ErrTwoFactorNotEnrolled = errors.New("two-factor not enrolled")
	// ErrChallengeExpired is an exported constant or variable used by the authentication engine.
	ErrChallengeExpired = errors.New("two-factor challenge expired")
	// ErrChallengeAttemptsExceeded is an exported constant or variable used by the authentication engine.
	ErrChallengeAttemptsExceeded = errors.New("two-factor challenge attempts exceeded")
	// ErrResetInvalid is an exported constant or variable used by the authentication engine.
	ErrResetInvalid = errors.New("password reset challenge invalid")
	// ErrResetDisabled is an exported constant or variable used by the authentication engine.
	ErrResetDisabled = errors.New("password reset disabled")
	// ErrRegistrationDisabled is an exported constant or variable used by the authentication engine.
	ErrRegistrationDisabled = errors.New("self-service registration disabled")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ValidationError reports itemized field errors from self-service
// registration. Field keys are input names ("email", "password",
// "password_confirmation"); values are human-readable reasons.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

func newValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

func (e *ValidationError) add(field, reason string) {
	e.Fields[field] = append(e.Fields[field], reason)
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0
}
