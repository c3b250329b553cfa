package goGuard

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/password"
)

// credentialHasher is the hashing surface the engine needs from
// password.Bcrypt.
type credentialHasher interface {
	password.Hasher
	NeedsRehash(hash string) bool
}

// Engine runs the authentication and authorization pipelines. Construct it
// with [New] and [Builder.Build]; the zero value is not usable.
type Engine struct {
	config    Config
	store     AccountStore
	hasher    credentialHasher
	policy    *password.Policy
	lockout   *limiters.Lockout
	tokens    *jwt.Manager
	audit     *auditDispatcher
	metrics   *Metrics
	logger    *slog.Logger
	clock     func() time.Time
	dummyHash string
	roles     map[Role]struct{}
}

// Close flushes pending audit events. It is safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped on a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// JWKS returns the public half of the signing key as a JWK set.
func (e *Engine) JWKS() jwt.JWKSet {
	if e == nil || e.tokens == nil {
		return jwt.JWKSet{Keys: []jwt.JWK{}}
	}
	return e.tokens.JWKS()
}

// IsPasswordExpired reports whether account's password expiry date is in the past.
func (e *Engine) IsPasswordExpired(account Account) bool {
	if e == nil || e.policy == nil {
		return false
	}
	return e.policy.IsExpired(account.PasswordExpiresAt, e.now())
}

// Ping checks the store when it supports health checks.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if p, ok := e.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// ValidRole reports whether role belongs to the configured closed set.
func (e *Engine) ValidRole(role Role) bool {
	if e == nil {
		return false
	}
	_, ok := e.roles[role]
	return ok
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.hasher != nil && e.policy != nil && e.tokens != nil
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

// logFault records an unexpected store or crypto failure. Callers must not
// pass plaintext secrets in err.
func (e *Engine) logFault(ctx context.Context, operation, username string, err error) {
	e.metricInc(MetricStoreError)
	e.logger.ErrorContext(ctx, "account operation failed",
		slog.String("operation", operation),
		slog.String("username", username),
		slog.String("request_id", RequestIDFromContext(ctx)),
		slog.Any("error", err),
	)
}
