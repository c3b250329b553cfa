package limiters

import "testing"

func TestLockout_FailuresBelowThresholdIncrement(t *testing.T) {
	l := NewLockout(LockoutConfig{})

	for n := 0; n < l.Threshold()-1; n++ {
		next, lockedNow := l.RecordFailure(LockoutState{FailedAttempts: n})
		if lockedNow || next.Locked {
			t.Fatalf("n=%d: unexpected lock", n)
		}
		if next.FailedAttempts != n+1 {
			t.Fatalf("n=%d: expected counter %d, got %d", n, n+1, next.FailedAttempts)
		}
	}
}

func TestLockout_ThresholdFailureLocks(t *testing.T) {
	l := NewLockout(LockoutConfig{})

	next, lockedNow := l.RecordFailure(LockoutState{FailedAttempts: 2})
	if !lockedNow || !next.Locked {
		t.Fatalf("expected lock at threshold, got %+v", next)
	}
	if next.FailedAttempts != 3 {
		t.Fatalf("expected counter 3, got %d", next.FailedAttempts)
	}
}

func TestLockout_LockedCounterFrozen(t *testing.T) {
	l := NewLockout(LockoutConfig{})
	locked := LockoutState{FailedAttempts: 3, Locked: true}

	for i := 0; i < 5; i++ {
		next, lockedNow := l.RecordFailure(locked)
		if lockedNow {
			t.Fatal("already-locked account must not report a new lock")
		}
		if next != locked {
			t.Fatalf("expected frozen state, got %+v", next)
		}
	}
	if l.Permits(locked) {
		t.Fatal("locked account must not be permitted")
	}
}

func TestLockout_SuccessResetsCounter(t *testing.T) {
	l := NewLockout(LockoutConfig{})

	next, changed := l.RecordSuccess(LockoutState{FailedAttempts: 2})
	if !changed || next != (LockoutState{}) {
		t.Fatalf("expected reset, got %+v changed=%v", next, changed)
	}

	next, changed = l.RecordSuccess(LockoutState{})
	if changed || next != (LockoutState{}) {
		t.Fatalf("clean state should be unchanged, got %+v changed=%v", next, changed)
	}
}

func TestLockout_UnlockIsIdempotent(t *testing.T) {
	l := NewLockout(LockoutConfig{})

	if got := l.Unlock(); got != (LockoutState{}) {
		t.Fatalf("expected Unlocked(0), got %+v", got)
	}
	if got := l.Unlock(); got != (LockoutState{}) {
		t.Fatalf("expected Unlocked(0) on repeat, got %+v", got)
	}
	if !l.Permits(l.Unlock()) {
		t.Fatal("unlocked account must be permitted")
	}
}

func TestLockout_CustomThreshold(t *testing.T) {
	l := NewLockout(LockoutConfig{Threshold: 5})

	state := LockoutState{}
	for i := 1; i <= 4; i++ {
		var lockedNow bool
		state, lockedNow = l.RecordFailure(state)
		if lockedNow {
			t.Fatalf("attempt %d: locked too early", i)
		}
	}
	state, lockedNow := l.RecordFailure(state)
	if !lockedNow || !state.Locked || state.FailedAttempts != 5 {
		t.Fatalf("expected lock on fifth failure, got %+v", state)
	}
}
