package voteauth

import (
	"context"
	"encoding/base32"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// memoryUserStore is an in-memory UserStore used by the engine tests. It
// hands out copies so tests observe only what Save persisted.
type memoryUserStore struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]*User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{byID: map[string]*User{}}
}

func copyUser(u *User) *User {
	clone := *u
	if u.TOTPSecret != nil {
		clone.TOTPSecret = append([]byte(nil), u.TOTPSecret...)
	}
	return &clone
}

func (s *memoryUserStore) FindByUsername(_ context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memoryUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == email && email != "" {
			return copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memoryUserStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[id]; ok {
		return copyUser(u), nil
	}
	return nil, ErrUserNotFound
}

func (s *memoryUserStore) Create(_ context.Context, user *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Username == user.Username {
			return nil, ErrDuplicateUser
		}
		if user.Email != "" && u.Email == user.Email {
			return nil, ErrDuplicateUser
		}
	}
	s.nextID++
	clone := copyUser(user)
	clone.ID = strconv.Itoa(s.nextID)
	s.byID[clone.ID] = clone
	return copyUser(clone), nil
}

func (s *memoryUserStore) Save(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[user.ID]; !ok {
		return ErrUserNotFound
	}
	s.byID[user.ID] = copyUser(user)
	return nil
}

func (s *memoryUserStore) delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

// recordingNotifier captures outbound mail for assertions.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

func (n *recordingNotifier) Send(_ context.Context, to, subject, textBody, htmlBody string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{To: to, Subject: subject, TextBody: textBody, HTMLBody: htmlBody})
	return nil
}

func (n *recordingNotifier) last(t *testing.T) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatal("expected at least one mail to have been sent")
	}
	return n.sent[len(n.sent)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func engineTestConfig() Config {
	cfg := defaultConfig()
	cfg.Lockout.MaxFailedAttempts = 3
	// Fastest parameters the hasher accepts; these tests exercise flow, not
	// argon2 hardness.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 16
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *redis.Client, *memoryUserStore, *recordingNotifier, func()) {
	t.Helper()
	return newTestEngineWithSink(t, cfg, nil)
}

func newTestEngineWithSink(t *testing.T, cfg Config, sink AuditSink) (*Engine, *redis.Client, *memoryUserStore, *recordingNotifier, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	users := newMemoryUserStore()
	notifier := &recordingNotifier{}

	builder := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithNotifier(notifier)
	if sink != nil {
		builder = builder.WithAuditSink(sink)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	return engine, rdb, users, notifier, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

// seedUser registers an account directly through the store with a real hash.
func seedUser(t *testing.T, engine *Engine, users *memoryUserStore, username, password string, mutate func(*User)) *User {
	t.Helper()

	hash, err := engine.passwordHash.Hash(password)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	user := &User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
	}
	if mutate != nil {
		mutate(user)
	}

	created, err := users.Create(context.Background(), user)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return created
}

func codeForNow(t *testing.T, secret string, cfg TOTPConfig) string {
	t.Helper()
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		t.Fatalf("decode secret failed: %v", err)
	}
	counter := time.Now().Unix() / int64(cfg.Period)
	code, err := hotpCode(key, counter, cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	return code
}

func codeForOffset(t *testing.T, secret string, cfg TOTPConfig, offset int64) string {
	t.Helper()
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		t.Fatalf("decode secret failed: %v", err)
	}
	counter := (time.Now().Unix() / int64(cfg.Period)) + offset
	code, err := hotpCode(key, counter, cfg.Digits, cfg.Algorithm)
	if err != nil {
		t.Fatalf("hotpCode failed: %v", err)
	}
	return code
}

// wrongCodeFor returns a well-formed code guaranteed not to verify within
// the skew window around now.
func wrongCodeFor(t *testing.T, secret string, cfg TOTPConfig) string {
	t.Helper()

	valid := map[string]bool{}
	for off := int64(-cfg.Skew) - 1; off <= int64(cfg.Skew)+1; off++ {
		valid[codeForOffset(t, secret, cfg, off)] = true
	}
	for off := int64(1000); ; off++ {
		candidate := codeForOffset(t, secret, cfg, off)
		if !valid[candidate] {
			return candidate
		}
	}
}
