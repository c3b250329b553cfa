package goGuard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/jwt"
)

// errNoChange aborts an UpdateAccount call whose mutation would be a no-op.
var errNoChange = errors.New("no change")

const passwordExpiryLayout = "2006-01-02"

// Login verifies username and plaintext and, on success, issues an access
// token.
//
// Unknown usernames and wrong passwords both return ErrInvalidCredentials
// after a bcrypt verification of equal cost. A failed attempt is persisted
// even though the call fails; the attempt that reaches the lockout threshold
// returns ErrAccountLocked, as does any attempt against a locked account.
// Every attempt that reaches the store runs one bcrypt verification.
// Correct credentials with a past expiry date return ErrPasswordExpired and
// leave the attempt counter alone.
func (e *Engine) Login(ctx context.Context, username, plaintext string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	started := time.Now()
	defer func() { e.metrics.ObserveLogin(time.Since(started)) }()

	username = strings.TrimSpace(username)
	if username == "" || plaintext == "" {
		return nil, ErrInvalidRequest
	}

	account, err := e.store.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.hasher.Verify(plaintext, e.dummyHash)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, username, ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"reason": "unknown_user"}
			})
			return nil, ErrInvalidCredentials
		}
		e.logFault(ctx, "login", username, err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if !e.lockout.Permits(lockoutStateOf(account)) {
		// Locked accounts pay the same verify cost as unknown usernames.
		e.hasher.Verify(plaintext, account.PasswordHash)
		e.metricInc(MetricLoginLockedOut)
		e.emitAudit(ctx, auditEventLoginFailure, false, username, ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}

	if !e.hasher.Verify(plaintext, account.PasswordHash) {
		return nil, e.recordLoginFailure(ctx, username)
	}

	if e.policy.IsExpired(account.PasswordExpiresAt, e.now()) {
		e.metricInc(MetricLoginPasswordExpired)
		e.emitAudit(ctx, auditEventLoginFailure, false, username, ErrPasswordExpired, nil)
		return nil, ErrPasswordExpired
	}

	account, err = e.recordLoginSuccess(ctx, account, plaintext)
	if err != nil {
		return nil, err
	}

	result, err := e.issueToken(account)
	if err != nil {
		e.logFault(ctx, "login.issue", username, err)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, username, nil, nil)
	return result, nil
}

func (e *Engine) recordLoginFailure(ctx context.Context, username string) error {
	var lockedNow, frozen bool
	_, err := e.store.UpdateAccount(ctx, username, func(a *Account) error {
		current := lockoutStateOf(*a)
		next, locked := e.lockout.RecordFailure(current)
		lockedNow = locked
		frozen = next == current
		if frozen {
			return errNoChange
		}
		applyLockoutState(a, next)
		a.UpdatedAt = e.now().UTC()
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, errNoChange):
		// Locked by a concurrent attempt after our snapshot was read.
		e.metricInc(MetricLoginLockedOut)
		e.emitAudit(ctx, auditEventLoginFailure, false, username, ErrAccountLocked, nil)
		return ErrAccountLocked
	case errors.Is(err, ErrAccountNotFound):
		e.metricInc(MetricLoginFailure)
		return ErrInvalidCredentials
	default:
		e.logFault(ctx, "login.record_failure", username, err)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLoginFailure)
	if lockedNow {
		e.metricInc(MetricAccountLocked)
		e.logger.WarnContext(ctx, "account locked after repeated login failures",
			slog.String("username", username),
			slog.Int("threshold", e.lockout.Threshold()),
			slog.String("request_id", RequestIDFromContext(ctx)),
		)
		e.emitAudit(ctx, auditEventAccountLocked, true, username, nil, func() map[string]string {
			return map[string]string{"trigger": "failed_attempts"}
		})
		e.emitAudit(ctx, auditEventLoginFailure, false, username, ErrAccountLocked, nil)
		return ErrAccountLocked
	}

	e.emitAudit(ctx, auditEventLoginFailure, false, username, ErrInvalidCredentials, nil)
	return ErrInvalidCredentials
}

// recordLoginSuccess clears the failure counter and upgrades the hash cost
// when configured. The replacement hash is computed before entering the
// store's critical section.
func (e *Engine) recordLoginSuccess(ctx context.Context, snapshot Account, plaintext string) (Account, error) {
	var rehashed string
	if e.config.Password.UpgradeOnLogin && e.hasher.NeedsRehash(snapshot.PasswordHash) {
		if h, err := e.hasher.Hash(plaintext); err == nil {
			rehashed = h
		} else {
			e.logger.WarnContext(ctx, "password rehash failed", slog.String("username", snapshot.Username), slog.Any("error", err))
		}
	}

	var didRehash bool
	updated, err := e.store.UpdateAccount(ctx, snapshot.Username, func(a *Account) error {
		current := lockoutStateOf(*a)
		if !e.lockout.Permits(current) {
			return ErrAccountLocked
		}
		if a.PasswordHash != snapshot.PasswordHash {
			// Password rotated between verification and this write.
			return ErrInvalidCredentials
		}

		next, changed := e.lockout.RecordSuccess(current)
		didRehash = rehashed != ""
		if !changed && !didRehash {
			return errNoChange
		}
		applyLockoutState(a, next)
		if didRehash {
			a.PasswordHash = rehashed
		}
		a.UpdatedAt = e.now().UTC()
		return nil
	})

	switch {
	case err == nil:
		if didRehash {
			e.metricInc(MetricPasswordRehashed)
		}
		return updated, nil
	case errors.Is(err, errNoChange):
		return snapshot, nil
	case errors.Is(err, ErrAccountLocked):
		e.metricInc(MetricLoginLockedOut)
		e.emitAudit(ctx, auditEventLoginFailure, false, snapshot.Username, ErrAccountLocked, nil)
		return Account{}, ErrAccountLocked
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrAccountNotFound):
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, snapshot.Username, ErrInvalidCredentials, nil)
		return Account{}, ErrInvalidCredentials
	default:
		e.logFault(ctx, "login.record_success", snapshot.Username, err)
		return Account{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

func (e *Engine) issueToken(account Account) (*LoginResult, error) {
	roles := make([]string, len(account.Roles))
	for i, r := range account.Roles {
		roles[i] = string(r)
	}

	extra := map[string]any{
		"username":  account.Username,
		"job_title": account.JobTitle,
		"city":      account.City,
		"branch":    account.Branch,
	}
	if !account.PasswordExpiresAt.IsZero() {
		extra["password_expires_at"] = account.PasswordExpiresAt.UTC().Format(passwordExpiryLayout)
	}

	issuedAt := e.now()
	token, err := e.tokens.Issue(account.Username, roles, extra)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:     token,
		Username:  account.Username,
		Roles:     append([]Role(nil), account.Roles...),
		ExpiresAt: issuedAt.Add(jwt.AccessTTL),
	}, nil
}

func lockoutStateOf(a Account) limiters.LockoutState {
	return limiters.LockoutState{FailedAttempts: a.FailedAttempts, Locked: a.Locked}
}

func applyLockoutState(a *Account, s limiters.LockoutState) {
	a.FailedAttempts = s.FailedAttempts
	a.Locked = s.Locked
}
