package goGuard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/password"
	"github.com/oklog/ulid/v2"
)

// ChangePassword replaces username's password after verifying current.
//
// Complexity is checked before the store is touched. Verification, the
// unchanged check, the reuse check against the current and archived hashes, archiving and the
// write run inside one UpdateAccount call, so two concurrent changes cannot
// both archive the same hash. On success the new password expires after
// the configured Expiry.
func (e *Engine) ChangePassword(ctx context.Context, username, current, next string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	username = strings.TrimSpace(username)
	if username == "" || current == "" || next == "" {
		return ErrInvalidRequest
	}

	if err := e.policy.ValidateComplexity(next); err != nil {
		e.metricInc(MetricPasswordChangePolicyRejected)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, username, err, nil)
		return err
	}

	newHash, err := e.hasher.Hash(next)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			e.metricInc(MetricPasswordChangePolicyRejected)
			return err
		}
		e.logFault(ctx, "change_password.hash", username, err)
		return err
	}

	now := e.now().UTC()
	_, err = e.store.UpdateAccount(ctx, username, func(a *Account) error {
		if !e.hasher.Verify(current, a.PasswordHash) {
			return ErrInvalidCurrentPassword
		}
		if next == current {
			return ErrPasswordUnchanged
		}
		if e.policy.IsReused(e.hasher, next, archivedHashes(*a)) {
			return ErrPasswordReused
		}
		archivePassword(e.policy, a, now)
		a.PasswordHash = newHash
		a.PasswordExpiresAt = e.policy.NextExpiry(now)
		a.UpdatedAt = now
		return nil
	})

	switch {
	case err == nil:
		e.metricInc(MetricPasswordChangeSuccess)
		e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, username, nil, nil)
		return nil
	case errors.Is(err, ErrInvalidCurrentPassword):
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalidOld, false, username, err, nil)
		return ErrInvalidCurrentPassword
	case errors.Is(err, ErrPasswordUnchanged):
		e.metricInc(MetricPasswordChangePolicyRejected)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, username, err, nil)
		return ErrPasswordUnchanged
	case errors.Is(err, ErrPasswordReused):
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeReuse, false, username, err, nil)
		return ErrPasswordReused
	case errors.Is(err, ErrAccountNotFound):
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, username, err, nil)
		return ErrAccountNotFound
	default:
		e.logFault(ctx, "change_password", username, err)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

// archivedHashes returns the current hash followed by the history.
func archivedHashes(a Account) []string {
	hashes := make([]string, 0, len(a.PasswordHistory)+1)
	if a.PasswordHash != "" {
		hashes = append(hashes, a.PasswordHash)
	}
	for _, h := range a.PasswordHistory {
		hashes = append(hashes, h.Hash)
	}
	return hashes
}

// archivePassword moves the current hash into the history and applies the
// history limit. History is ordered oldest first.
func archivePassword(policy *password.Policy, a *Account, now time.Time) {
	if a.PasswordHash == "" {
		return
	}
	a.PasswordHistory = append(a.PasswordHistory, ArchivedPassword{
		ID:        ulid.Make().String(),
		Hash:      a.PasswordHash,
		CreatedAt: now,
	})
	a.PasswordHistory = password.TrimHistory(policy, a.PasswordHistory)
}
