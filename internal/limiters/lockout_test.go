package limiters

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestGuard(t *testing.T, cfg LockoutConfig) (*LockoutGuard, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return NewLockoutGuard(rdb, cfg), mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestRecordFailureReachesThreshold(t *testing.T) {
	guard, _, done := newTestGuard(t, LockoutConfig{Enabled: true, Threshold: 3})
	defer done()

	for i := 0; i < 2; i++ {
		reached, err := guard.RecordFailure(context.Background(), "voter1")
		if err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
		if reached {
			t.Fatalf("threshold reported early at attempt %d", i+1)
		}
	}

	reached, err := guard.RecordFailure(context.Background(), "voter1")
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if !reached {
		t.Fatal("expected threshold at third failure")
	}
}

func TestCountersAreKeyedPerAccount(t *testing.T) {
	guard, _, done := newTestGuard(t, LockoutConfig{Enabled: true, Threshold: 3})
	defer done()

	for i := 0; i < 2; i++ {
		if _, err := guard.RecordFailure(context.Background(), "voter1"); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}

	reached, err := guard.RecordFailure(context.Background(), "voter2")
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if reached {
		t.Fatal("failures must not leak across accounts")
	}

	count, err := guard.FailureCount(context.Background(), "voter1")
	if err != nil {
		t.Fatalf("FailureCount failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
}

func TestResetClearsStreak(t *testing.T) {
	guard, _, done := newTestGuard(t, LockoutConfig{Enabled: true, Threshold: 3})
	defer done()

	for i := 0; i < 2; i++ {
		if _, err := guard.RecordFailure(context.Background(), "voter1"); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}
	if err := guard.Reset(context.Background(), "voter1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	count, err := guard.FailureCount(context.Background(), "voter1")
	if err != nil {
		t.Fatalf("FailureCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 after reset, got %d", count)
	}

	reached, err := guard.RecordFailure(context.Background(), "voter1")
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if reached {
		t.Fatal("streak must restart from zero after reset")
	}
}

func TestWindowExpiresStreak(t *testing.T) {
	guard, mr, done := newTestGuard(t, LockoutConfig{Enabled: true, Threshold: 3, Window: time.Minute})
	defer done()

	for i := 0; i < 2; i++ {
		if _, err := guard.RecordFailure(context.Background(), "voter1"); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}

	mr.FastForward(2 * time.Minute)

	count, err := guard.FailureCount(context.Background(), "voter1")
	if err != nil {
		t.Fatalf("FailureCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected expired streak, got %d", count)
	}
}

func TestDisabledGuardNeverTrips(t *testing.T) {
	guard, _, done := newTestGuard(t, LockoutConfig{Enabled: false, Threshold: 1})
	defer done()

	for i := 0; i < 5; i++ {
		reached, err := guard.RecordFailure(context.Background(), "voter1")
		if err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
		if reached {
			t.Fatal("disabled guard must never report the threshold")
		}
	}
}
