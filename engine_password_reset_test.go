package voteauth

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// requestReset drives a reset request and extracts the opaque token from the
// mailed link.
func requestReset(t *testing.T, engine *Engine, notifier *recordingNotifier, email string) string {
	t.Helper()

	if err := engine.RequestPasswordReset(context.Background(), email); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}

	mail := notifier.last(t)
	lines := strings.Split(mail.TextBody, "\n")
	if len(lines) != 4 {
		t.Fatalf("unexpected mail body:\n%s", mail.TextBody)
	}
	link := lines[2]
	return link[strings.LastIndex(link, "/")+1:]
}

func TestRequestPasswordResetSendsMail(t *testing.T) {
	engine, _, users, notifier, done := newTestEngine(t, engineTestConfig())
	defer done()

	seedUser(t, engine, users, "voter1", "123", nil)

	if err := engine.RequestPasswordReset(context.Background(), "voter1@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}

	mail := notifier.last(t)
	if mail.To != "voter1@example.com" {
		t.Fatalf("unexpected recipient %q", mail.To)
	}

	lines := strings.Split(mail.TextBody, "\n")
	if len(lines) != 4 {
		t.Fatalf("unexpected mail body:\n%s", mail.TextBody)
	}
	if lines[0] != "Alguien solicitó restablecer la contraseña del correo electrónico voter1@example.com." {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
	if lines[1] != "Haz click en el siguiente link:" {
		t.Fatalf("unexpected second line: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "http://127.0.0.1:8000/authentication/reset/") {
		t.Fatalf("unexpected reset link: %q", lines[2])
	}
	if lines[3] != "Tu nombre de usuario, en caso de que lo hayas olvidado: voter1" {
		t.Fatalf("unexpected last line: %q", lines[3])
	}
}

func TestRequestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	engine, _, _, notifier, done := newTestEngine(t, engineTestConfig())
	defer done()

	// No account, no mail, no error: the endpoint must not reveal which
	// addresses are registered.
	if err := engine.RequestPasswordReset(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if notifier.count() != 0 {
		t.Fatal("expected no mail for unknown address")
	}
}

func TestConfirmPasswordResetInstallsNewPassword(t *testing.T) {
	engine, _, users, notifier, done := newTestEngine(t, engineTestConfig())
	defer done()

	seedUser(t, engine, users, "voter1", "123", nil)
	resetToken := requestReset(t, engine, notifier, "voter1@example.com")

	if err := engine.ConfirmPasswordReset(context.Background(), resetToken, "fresh-password"); err != nil {
		t.Fatalf("ConfirmPasswordReset failed: %v", err)
	}

	if _, err := engine.Login(context.Background(), "voter1", "123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to stop working, got %v", err)
	}
	if _, err := engine.Login(context.Background(), "voter1", "fresh-password"); err != nil {
		t.Fatalf("Login with new password failed: %v", err)
	}
}

func TestConfirmPasswordResetIsSingleUse(t *testing.T) {
	engine, _, users, notifier, done := newTestEngine(t, engineTestConfig())
	defer done()

	seedUser(t, engine, users, "voter1", "123", nil)
	resetToken := requestReset(t, engine, notifier, "voter1@example.com")

	if err := engine.ConfirmPasswordReset(context.Background(), resetToken, "fresh-password"); err != nil {
		t.Fatalf("ConfirmPasswordReset failed: %v", err)
	}
	if err := engine.ConfirmPasswordReset(context.Background(), resetToken, "another-password"); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("expected ErrResetInvalid on reuse, got %v", err)
	}
}

func TestConfirmPasswordResetRejectsTamperedToken(t *testing.T) {
	engine, _, users, notifier, done := newTestEngine(t, engineTestConfig())
	defer done()

	seedUser(t, engine, users, "voter1", "123", nil)
	resetToken := requestReset(t, engine, notifier, "voter1@example.com")

	tampered := []byte(resetToken)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	if err := engine.ConfirmPasswordReset(context.Background(), string(tampered), "fresh-password"); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("expected ErrResetInvalid, got %v", err)
	}
	if err := engine.ConfirmPasswordReset(context.Background(), "garbage", "fresh-password"); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("expected ErrResetInvalid, got %v", err)
	}
}

func TestPasswordResetDisabled(t *testing.T) {
	cfg := engineTestConfig()
	cfg.PasswordReset.Enabled = false

	engine, _, _, _, done := newTestEngine(t, cfg)
	defer done()

	if err := engine.RequestPasswordReset(context.Background(), "voter1@example.com"); !errors.Is(err, ErrResetDisabled) {
		t.Fatalf("expected ErrResetDisabled, got %v", err)
	}
	if err := engine.ConfirmPasswordReset(context.Background(), "whatever", "pw"); !errors.Is(err, ErrResetDisabled) {
		t.Fatalf("expected ErrResetDisabled, got %v", err)
	}
}
