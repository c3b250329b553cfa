package goGuard

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/MrEthical07/goGuard/password"
)

var alphanumeric14 = regexp.MustCompile(`^[A-Za-z0-9]{14}$`)

func TestResetPasswordGeneratesShortLivedPassword(t *testing.T) {
	store := newFakeStore()
	clock := newTestClock()
	before := seedAccount(t, store, clock, "jperez", testPassword)
	engine, _ := newTestEngine(t, store, clock)

	generated, err := engine.ResetPassword(context.Background(), "jperez")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !alphanumeric14.MatchString(generated) {
		t.Fatalf("expected 14 alphanumeric characters, got %q", generated)
	}

	after := store.account(t, "jperez")
	if want := clock.Now().Add(password.DefaultResetExpiry); !after.PasswordExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, after.PasswordExpiresAt)
	}
	if len(after.PasswordHistory) != 1 || after.PasswordHistory[0].Hash != before.PasswordHash {
		t.Fatalf("expected previous hash archived, got %+v", after.PasswordHistory)
	}

	if _, err := engine.Login(context.Background(), "jperez", generated); err != nil {
		t.Fatalf("login with generated password: %v", err)
	}
	// The old password was archived and cannot come back.
	if err := engine.ChangePassword(context.Background(), "jperez", generated, testPassword); !errors.Is(err, ErrPasswordReused) {
		t.Fatalf("expected ErrPasswordReused, got %v", err)
	}
}

func TestResetPasswordKeepsLockout(t *testing.T) {
	store := newFakeStore()
	clock := newTestClock()
	a := seedAccount(t, store, clock, "jperez", testPassword)
	a.Locked, a.FailedAttempts = true, 3
	store.put(a)
	engine, _ := newTestEngine(t, store, clock)

	generated, err := engine.ResetPassword(context.Background(), "jperez")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := store.account(t, "jperez"); !got.Locked || got.FailedAttempts != 3 {
		t.Fatalf("reset must not touch lockout, got locked=%v attempts=%d", got.Locked, got.FailedAttempts)
	}
	if _, err := engine.Login(context.Background(), "jperez", generated); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestResetPasswordDoesNotAuditPlaintext(t *testing.T) {
	store := newFakeStore()
	clock := newTestClock()
	seedAccount(t, store, clock, "jperez", testPassword)
	engine, sink := newTestEngine(t, store, clock)

	generated, err := engine.ResetPassword(context.Background(), "jperez")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	for _, ev := range drainAudit(sink) {
		for _, v := range ev.Metadata {
			if v == generated {
				t.Fatal("generated password leaked into audit metadata")
			}
		}
	}
}

func TestResetPasswordUnknownAccount(t *testing.T) {
	store := newFakeStore()
	clock := newTestClock()
	engine, _ := newTestEngine(t, store, clock)

	if _, err := engine.ResetPassword(context.Background(), "ghost"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
