package goGuard

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ResetPassword replaces username's password with a generated alphanumeric
// one that expires after ResetExpiry, archiving the previous hash. The
// plaintext is returned once and is neither stored nor logged.
//
// Lockout state is left untouched; unlock separately with UnlockAccount.
func (e *Engine) ResetPassword(ctx context.Context, username string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return "", ErrInvalidRequest
	}

	generated, err := e.policy.Generate()
	if err != nil {
		e.logFault(ctx, "reset_password.generate", username, err)
		return "", err
	}
	newHash, err := e.hasher.Hash(generated)
	if err != nil {
		e.logFault(ctx, "reset_password.hash", username, err)
		return "", err
	}

	now := e.now().UTC()
	_, err = e.store.UpdateAccount(ctx, username, func(a *Account) error {
		archivePassword(e.policy, a, now)
		a.PasswordHash = newHash
		a.PasswordExpiresAt = e.policy.NextResetExpiry(now)
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.emitAudit(ctx, auditEventPasswordReset, false, username, err, nil)
			return "", ErrAccountNotFound
		}
		e.logFault(ctx, "reset_password", username, err)
		return "", fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricPasswordReset)
	e.emitAudit(ctx, auditEventPasswordReset, true, username, nil, nil)
	return generated, nil
}
