package limiters

// DefaultLockoutThreshold is the number of consecutive failures that locks an account.
const DefaultLockoutThreshold = 3

// LockoutConfig holds configuration for the automatic account lockout tracker.
type LockoutConfig struct {
	Threshold int // 0 selects DefaultLockoutThreshold
}

// LockoutState is the attempt-tracking slice of an account.
//
// Locked is only reachable with FailedAttempts >= threshold, and an unlocked
// account with zero failures is the initial state.
type LockoutState struct {
	FailedAttempts int
	Locked         bool
}

// Lockout is the login-attempt state machine. It holds no per-account data;
// callers load a LockoutState, apply a transition and persist the result under
// whatever serialization their store provides.
type Lockout struct {
	threshold int
}

// NewLockout creates a lockout tracker.
func NewLockout(cfg LockoutConfig) *Lockout {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultLockoutThreshold
	}
	return &Lockout{threshold: threshold}
}

// Threshold returns the effective failure threshold.
func (l *Lockout) Threshold() int {
	return l.threshold
}

// Permits reports whether an authentication attempt may proceed.
func (l *Lockout) Permits(s LockoutState) bool {
	return !s.Locked
}

// RecordFailure applies a failed credential check.
// Returns the next state and true when this failure locked the account.
// A locked state is returned unchanged: the counter is frozen until Unlock.
func (l *Lockout) RecordFailure(s LockoutState) (LockoutState, bool) {
	if s.Locked {
		return s, false
	}

	next := LockoutState{FailedAttempts: s.FailedAttempts + 1}
	if next.FailedAttempts >= l.threshold {
		next.Locked = true
		return next, true
	}
	return next, false
}

// RecordSuccess applies a successful credential check on an unlocked account.
// Returns the next state and whether it differs from s.
func (l *Lockout) RecordSuccess(s LockoutState) (LockoutState, bool) {
	if s.Locked || s.FailedAttempts == 0 {
		return s, false
	}
	return LockoutState{}, true
}

// Unlock is the administrative transition to Unlocked(0). It is always permitted.
func (l *Lockout) Unlock() LockoutState {
	return LockoutState{}
}
