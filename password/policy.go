package password

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"
)

const (
	// DefaultMinLength is the minimum plaintext length in characters.
	DefaultMinLength = 14
	// DefaultSpecials is the symbol set a password must draw at least one character from.
	DefaultSpecials = "!@#&()–[{}]:;',?/*~$^+=<>.-_"
	// DefaultExpiry is how long a self-chosen password stays valid.
	DefaultExpiry = 90 * 24 * time.Hour
	// DefaultResetExpiry is how long a generated reset password stays valid.
	DefaultResetExpiry = 24 * time.Hour
	// DefaultResetLength is the length of generated reset passwords.
	DefaultResetLength = 14

	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// ErrWeakPassword is wrapped by every complexity failure.
var ErrWeakPassword = errors.New("password does not meet complexity requirements")

// PolicyConfig configures a [Policy]. Zero values select the defaults.
type PolicyConfig struct {
	MinLength    int
	Specials     string
	Expiry       time.Duration
	ResetExpiry  time.Duration
	ResetLength  int
	HistoryLimit int // 0 keeps every archived hash
}

// Policy evaluates complexity, reuse and expiry rules.
//
// Policy instances are immutable after construction and safe for concurrent use.
type Policy struct {
	config PolicyConfig
}

// NewPolicy returns a policy with defaults applied to zero fields.
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	if cfg.MinLength == 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.Specials == "" {
		cfg.Specials = DefaultSpecials
	}
	if cfg.Expiry == 0 {
		cfg.Expiry = DefaultExpiry
	}
	if cfg.ResetExpiry == 0 {
		cfg.ResetExpiry = DefaultResetExpiry
	}
	if cfg.ResetLength == 0 {
		cfg.ResetLength = DefaultResetLength
	}

	if cfg.MinLength < 8 || cfg.MinLength > maxPassBytes {
		return nil, fmt.Errorf("password MinLength must be between 8 and %d", maxPassBytes)
	}
	if cfg.Expiry < 0 || cfg.ResetExpiry < 0 {
		return nil, errors.New("password expiry durations must be > 0")
	}
	if cfg.ResetLength < 8 || cfg.ResetLength > maxPassBytes {
		return nil, fmt.Errorf("password ResetLength must be between 8 and %d", maxPassBytes)
	}
	if cfg.HistoryLimit < 0 {
		return nil, errors.New("password HistoryLimit must be >= 0")
	}

	return &Policy{config: cfg}, nil
}

// Config returns the effective configuration.
func (p *Policy) Config() PolicyConfig {
	return p.config
}

// ValidateComplexity describes the validatecomplexity operation and its observable behavior.
//
// ValidateComplexity returns nil iff plaintext is at least MinLength characters
// long and contains a digit, a lowercase letter, an uppercase letter and a
// symbol from the configured set. Otherwise the returned error wraps
// [ErrWeakPassword] and names every rule that failed.
func (p *Policy) ValidateComplexity(plaintext string) error {
	var (
		hasDigit, hasLower, hasUpper, hasSpecial bool
		length                                   int
	)
	for _, r := range plaintext {
		length++
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case strings.ContainsRune(p.config.Specials, r):
			hasSpecial = true
		}
	}

	var missing []string
	if length < p.config.MinLength {
		missing = append(missing, fmt.Sprintf("at least %d characters", p.config.MinLength))
	}
	if !hasDigit {
		missing = append(missing, "a digit")
	}
	if !hasLower {
		missing = append(missing, "a lowercase letter")
	}
	if !hasUpper {
		missing = append(missing, "an uppercase letter")
	}
	if !hasSpecial {
		missing = append(missing, "a special character")
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: requires %s", ErrWeakPassword, strings.Join(missing, ", "))
}

// IsReused reports whether candidate verifies against any archived hash.
func (p *Policy) IsReused(hasher Hasher, candidate string, archived []string) bool {
	for _, h := range archived {
		if hasher.Verify(candidate, h) {
			return true
		}
	}
	return false
}

// IsExpired reports whether the calendar date of expiresAt is strictly
// before the calendar date of now. A zero expiresAt never expires.
func (p *Policy) IsExpired(expiresAt, now time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return dateOf(expiresAt).Before(dateOf(now))
}

// NextExpiry returns the expiry for a password chosen at now.
func (p *Policy) NextExpiry(now time.Time) time.Time {
	return now.Add(p.config.Expiry)
}

// NextResetExpiry returns the expiry for a password generated at now.
func (p *Policy) NextResetExpiry(now time.Time) time.Time {
	return now.Add(p.config.ResetExpiry)
}

// TrimHistory keeps the newest HistoryLimit entries of an oldest-first slice.
func TrimHistory[T any](p *Policy, history []T) []T {
	limit := p.config.HistoryLimit
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return append([]T(nil), history[len(history)-limit:]...)
}

// Generate returns a random alphanumeric password of ResetLength characters.
func (p *Policy) Generate() (string, error) {
	return randomAlphanumeric(p.config.ResetLength)
}

func randomAlphanumeric(n int) (string, error) {
	max := big.NewInt(int64(len(alphanumeric)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphanumeric[idx.Int64()]
	}
	return string(out), nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
