package goGuard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/limiters"
	"github.com/MrEthical07/goGuard/password"
	"golang.org/x/crypto/bcrypt"
)

// Config holds every engine setting. Build it from [DefaultConfig] and
// override what you need; [Builder.Build] validates it.
type Config struct {
	Password      PasswordConfig
	Lockout       LockoutConfig
	Token         TokenConfig
	Authorization AuthorizationConfig
	Roles         []Role
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls hashing cost and the password policy.
type PasswordConfig struct {
	BcryptCost   int
	MinLength    int
	Specials     string
	Expiry       time.Duration
	ResetExpiry  time.Duration
	ResetLength  int
	HistoryLimit int // 0 keeps every archived hash
	// UpgradeOnLogin rehashes the password after a successful login when
	// the stored hash was produced with a different bcrypt cost.
	UpgradeOnLogin bool
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig sets how many consecutive failures lock an account.
type LockoutConfig struct {
	Threshold int
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig describes the access tokens the engine issues. The signing key
// itself is passed to [Builder.WithSigningKey].
type TokenConfig struct {
	KeyID    string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

/*
====================================
AUTHORIZATION CONFIG
====================================
*/

type AuthorizationConfig struct {
	RolePrefix string
}

/*
====================================
AUDIT + METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Password: PasswordConfig{
			BcryptCost:     bcrypt.DefaultCost,
			MinLength:      password.DefaultMinLength,
			Specials:       password.DefaultSpecials,
			Expiry:         password.DefaultExpiry,
			ResetExpiry:    password.DefaultResetExpiry,
			ResetLength:    password.DefaultResetLength,
			UpgradeOnLogin: true,
		},
		Lockout: LockoutConfig{
			Threshold: limiters.DefaultLockoutThreshold,
		},
		Token: TokenConfig{
			KeyID: "goguard",
		},
		Authorization: AuthorizationConfig{
			RolePrefix: "ROLE_",
		},
		Roles: DefaultRoles(),
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "goguard",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if cfg.Roles != nil {
		out.Roles = append([]Role(nil), cfg.Roles...)
	}
	return out
}

func (c Config) policyConfig() password.PolicyConfig {
	return password.PolicyConfig{
		MinLength:    c.Password.MinLength,
		Specials:     c.Password.Specials,
		Expiry:       c.Password.Expiry,
		ResetExpiry:  c.Password.ResetExpiry,
		ResetLength:  c.Password.ResetLength,
		HistoryLimit: c.Password.HistoryLimit,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Password
	if c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("Password BcryptCost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}
	if c.Password.Specials == "" {
		return errors.New("Password Specials must not be empty")
	}
	if c.Password.Expiry <= 0 {
		return errors.New("Password Expiry must be > 0")
	}
	if c.Password.ResetExpiry <= 0 {
		return errors.New("Password ResetExpiry must be > 0")
	}
	if c.Password.ResetLength < 8 {
		return errors.New("Password ResetLength must be >= 8")
	}
	if c.Password.HistoryLimit < 0 {
		return errors.New("Password HistoryLimit must be >= 0")
	}

	// Lockout
	if c.Lockout.Threshold < 1 {
		return errors.New("Lockout Threshold must be >= 1")
	}

	// Token
	if strings.TrimSpace(c.Token.KeyID) == "" {
		return errors.New("Token KeyID must not be empty")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// Roles
	if len(c.Roles) == 0 {
		return errors.New("Roles must not be empty")
	}
	seen := make(map[Role]struct{}, len(c.Roles))
	for _, r := range c.Roles {
		if strings.TrimSpace(string(r)) == "" {
			return errors.New("Roles must not contain empty names")
		}
		if _, dup := seen[r]; dup {
			return fmt.Errorf("Roles contains duplicate %q", r)
		}
		seen[r] = struct{}{}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Metrics
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return errors.New("Metrics Namespace must not be empty when metrics are enabled")
	}

	return nil
}
