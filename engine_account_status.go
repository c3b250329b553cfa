package goGuard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// UnlockAccount clears the lock and the failure counter. Unlocking an
// unlocked account with no failures succeeds without writing.
func (e *Engine) UnlockAccount(ctx context.Context, username string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrInvalidRequest
	}

	var wasLocked bool
	_, err := e.store.UpdateAccount(ctx, username, func(a *Account) error {
		current := lockoutStateOf(*a)
		next := e.lockout.Unlock()
		if current == next {
			return errNoChange
		}
		wasLocked = current.Locked
		applyLockoutState(a, next)
		a.UpdatedAt = e.now().UTC()
		return nil
	})

	switch {
	case err == nil:
	case errors.Is(err, errNoChange):
	case errors.Is(err, ErrAccountNotFound):
		e.emitAudit(ctx, auditEventAccountUnlocked, false, username, err, nil)
		return ErrAccountNotFound
	default:
		e.logFault(ctx, "unlock_account", username, err)
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if wasLocked {
		e.metricInc(MetricAccountUnlocked)
		e.logger.InfoContext(ctx, "account unlocked",
			slog.String("username", username),
			slog.String("request_id", RequestIDFromContext(ctx)),
		)
	}
	e.emitAudit(ctx, auditEventAccountUnlocked, true, username, nil, func() map[string]string {
		if wasLocked {
			return map[string]string{"previous": "locked"}
		}
		return map[string]string{"previous": "unlocked"}
	})
	return nil
}
