// Package limiters tracks consecutive failed logins per account.
//
// [Lockout] is a pure state machine over [LockoutState]. It keeps no data of
// its own; the engine loads the state from the account, applies a transition
// inside the store's per-account update and persists the result.
//
// # Transitions
//
//   - [Lockout.RecordFailure]: Unlocked(n) becomes Unlocked(n+1), or Locked
//     once the threshold is reached. Locked is returned unchanged.
//   - [Lockout.RecordSuccess]: Unlocked(n) becomes Unlocked(0).
//   - [Lockout.Unlock]: any state becomes Unlocked(0).
//
// # What this package must NOT do
//
//   - Import goGuard or any other package of this module.
//   - Decide what a locked login returns; the engine owns that.
package limiters
