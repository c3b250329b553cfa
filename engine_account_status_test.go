package goGuard

import (
	"context"
	"errors"
	"testing"
)

func TestUnlockAccountRestoresLogin(t *testing.T) {
	store := newFakeStore()
	clock := newTestClock()
	a := seedAccount(t, store, clock, "jperez", testPassword)
	a.Locked, a.FailedAttempts = true, 3
	store.put(a)
	engine, sink := newTestEngine(t, store, clock)

	if err := engine.UnlockAccount(context.Background(), "jperez"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	got := store.account(t, "jperez")
	if got.Locked || got.FailedAttempts != 0 {
		t.Fatalf("expected Unlocked(0), got locked=%v attempts=%d", got.Locked, got.FailedAttempts)
	}
	if _, err := engine.Login(context.Background(), "jperez", testPassword); err != nil {
		t.Fatalf("login after unlock: %v", err)
	}

	var sawUnlock bool
	for _, ev := range drainAudit(sink) {
		if ev.EventType == auditEventAccountUnlocked && ev.Metadata["previous"] == "locked" {
			sawUnlock = true
		}
	}
	if !sawUnlock {
		t.Fatal("expected account_unlocked audit event")
	}
}

func TestUnlockAccountClearsPartialCounter(t *testing.T) {
	store := newFakeStore()
	clock := newTestClock()
	a := seedAccount(t, store, clock, "jperez", testPassword)
	a.FailedAttempts = 2
	store.put(a)
	engine, _ := newTestEngine(t, store, clock)

	if err := engine.UnlockAccount(context.Background(), "jperez"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if got := store.account(t, "jperez").FailedAttempts; got != 0 {
		t.Fatalf("expected counter 0, got %d", got)
	}
}

func TestUnlockAccountIdempotent(t *testing.T) {
	store := newFakeStore()
	clock := newTestClock()
	seedAccount(t, store, clock, "jperez", testPassword)
	engine, _ := newTestEngine(t, store, clock)

	for i := 0; i < 2; i++ {
		if err := engine.UnlockAccount(context.Background(), "jperez"); err != nil {
			t.Fatalf("unlock %d: %v", i, err)
		}
	}
	if store.writes != 0 {
		t.Fatalf("unlocking a clean account must not write, got %d writes", store.writes)
	}
}

func TestUnlockAccountUnknown(t *testing.T) {
	store := newFakeStore()
	clock := newTestClock()
	engine, _ := newTestEngine(t, store, clock)

	err := engine.UnlockAccount(context.Background(), "ghost")
	if !errors.Is(err, ErrAccountNotFound) || KindOf(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIsPasswordExpiredUsesCalendarDate(t *testing.T) {
	store := newFakeStore()
	clock := newTestClock()
	a := seedAccount(t, store, clock, "jperez", testPassword)
	engine, _ := newTestEngine(t, store, clock)

	if engine.IsPasswordExpired(a) {
		t.Fatal("fresh password must not be expired")
	}

	a.PasswordExpiresAt = clock.Now()
	if engine.IsPasswordExpired(a) {
		t.Fatal("password expiring today is still valid")
	}
	a.PasswordExpiresAt = clock.Now().AddDate(0, 0, -1)
	if !engine.IsPasswordExpired(a) {
		t.Fatal("password that expired yesterday must be expired")
	}

	var nilEngine *Engine
	if nilEngine.IsPasswordExpired(a) {
		t.Fatal("nil engine reports nothing expired")
	}
}
