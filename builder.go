package goGuard

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/password"
	"github.com/prometheus/client_golang/prometheus"
)

// Builder assembles an [Engine]. It is single use: a second Build call fails.
type Builder struct {
	config Config

	store      AccountStore
	signingKey *rsa.PrivateKey
	auditSink  AuditSink
	logger     *slog.Logger
	registerer prometheus.Registerer
	clock      func() time.Time

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the credential store. Required.
func (b *Builder) WithStore(store AccountStore) *Builder {
	b.store = store
	return b
}

// WithSigningKey sets the single active RS256 signing key. Required.
func (b *Builder) WithSigningKey(key *rsa.PrivateKey) *Builder {
	b.signingKey = key
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsRegisterer selects where engine collectors are registered. A
// private registry is used when none is given.
func (b *Builder) WithMetricsRegisterer(reg prometheus.Registerer) *Builder {
	b.registerer = reg
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithClock overrides time.Now for expiry and token timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("account store required")
	}
	if b.signingKey == nil {
		return nil, errors.New("signing key required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	hasher, err := password.NewBcrypt(cfg.Password.BcryptCost)
	if err != nil {
		return nil, err
	}
	policy, err := password.NewPolicy(cfg.policyConfig())
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		KeyID:      cfg.Token.KeyID,
		PrivateKey: b.signingKey,
		Issuer:     cfg.Token.Issuer,
		Audience:   cfg.Token.Audience,
		Leeway:     cfg.Token.Leeway,
		Logger:     logger,
		Now:        clock,
	})
	if err != nil {
		return nil, err
	}

	// Unknown usernames are verified against this hash so they cost the
	// same as a wrong password.
	dummy, err := policy.Generate()
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash(dummy)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics, b.registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	roles := make(map[Role]struct{}, len(cfg.Roles))
	for _, r := range cfg.Roles {
		roles[r] = struct{}{}
	}

	engine := &Engine{
		config:    cfg,
		store:     b.store,
		hasher:    hasher,
		policy:    policy,
		lockout:   limiters.NewLockout(limiters.LockoutConfig{Threshold: cfg.Lockout.Threshold}),
		tokens:    tokens,
		metrics:   metrics,
		logger:    logger,
		clock:     clock,
		dummyHash: dummyHash,
		roles:     roles,
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	if engine.audit != nil {
		if err := metrics.registerAuditDropped(engine.audit.Dropped); err != nil {
			engine.audit.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	b.built = true

	return engine, nil
}
