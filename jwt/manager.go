package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTTL is the fixed lifetime of every issued access token.
const AccessTTL = 24 * time.Hour

const (
	claimSubject   = "sub"
	claimRoles     = "roles"
	claimIssuedAt  = "iat"
	claimExpiresAt = "exp"
	claimIssuer    = "iss"
	claimAudience  = "aud"

	minRSABits = 2048
)

// ErrTokenInvalid is returned by ParseClaims for any token Verify rejects.
var ErrTokenInvalid = errors.New("token invalid")

// Config holds the single active signing key and validation settings.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	KeyID      string
	PrivateKey *rsa.PrivateKey
	Issuer     string
	Audience   string
	Leeway     time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// Manager issues and verifies RS256 access tokens.
//
// The key pair is read-only after NewManager returns, so a Manager is safe
// for concurrent use without locking.
type Manager struct {
	config   Config
	public   *rsa.PublicKey
	reserved map[string]struct{}
	logger   *slog.Logger
	now      func() time.Time
}

// Claims is the verified content of an access token.
type Claims struct {
	Subject   string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]any
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager returns an error when the key is missing or weaker than 2048
// bits, when KeyID is blank, or when Leeway is out of range.
func NewManager(cfg Config) (*Manager, error) {
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.KeyID == "" {
		return nil, errors.New("KeyID is required")
	}
	if cfg.PrivateKey == nil {
		return nil, errors.New("rs256 requires private key")
	}
	if cfg.PrivateKey.N.BitLen() < minRSABits {
		return nil, fmt.Errorf("rsa key must be at least %d bits", minRSABits)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	m := &Manager{
		config: cfg,
		public: &cfg.PrivateKey.PublicKey,
		reserved: map[string]struct{}{
			claimSubject:   {},
			claimRoles:     {},
			claimIssuedAt:  {},
			claimExpiresAt: {},
		},
		logger: cfg.Logger,
		now:    cfg.Now,
	}
	if cfg.Issuer != "" {
		m.reserved[claimIssuer] = struct{}{}
	}
	if cfg.Audience != "" {
		m.reserved[claimAudience] = struct{}{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// KeyID returns the alias written to the kid header.
func (j *Manager) KeyID() string {
	return j.config.KeyID
}

// PublicKey returns the verification half of the signing key.
func (j *Manager) PublicKey() *rsa.PublicKey {
	return j.public
}

// Issue describes the issue operation and its observable behavior.
//
// Issue signs a token for subject carrying roles, iat=now and exp=now+AccessTTL.
// Entries of extra are merged into the payload; keys colliding with reserved
// claims are dropped and logged, so reserved values always win.
func (j *Manager) Issue(subject string, roles []string, extra map[string]any) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}

	now := j.now()
	claims := jwt.MapClaims{}
	for k, v := range extra {
		if _, reserved := j.reserved[k]; reserved {
			j.logger.Warn("dropping extra claim that collides with reserved claim", "claim", k, "sub", subject)
			continue
		}
		claims[k] = v
	}

	if roles == nil {
		roles = []string{}
	}
	claims[claimSubject] = subject
	claims[claimRoles] = roles
	claims[claimIssuedAt] = jwt.NewNumericDate(now)
	claims[claimExpiresAt] = jwt.NewNumericDate(now.Add(AccessTTL))
	if j.config.Issuer != "" {
		claims[claimIssuer] = j.config.Issuer
	}
	if j.config.Audience != "" {
		claims[claimAudience] = j.config.Audience
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = j.config.KeyID

	return token.SignedString(j.config.PrivateKey)
}

// Verify reports whether token is well formed, signed by the active key,
// and not expired. It never panics and never returns an error.
func (j *Manager) Verify(token string) bool {
	_, err := j.parse(token)
	return err == nil
}

// ParseClaims verifies token and returns its claims.
func (j *Manager) ParseClaims(token string) (*Claims, error) {
	raw, err := j.parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	sub, err := raw.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	roles, err := stringSlice(raw[claimRoles])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	out := &Claims{
		Subject: sub,
		Roles:   roles,
		Extra:   map[string]any{},
	}
	if iat, _ := raw.GetIssuedAt(); iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, _ := raw.GetExpirationTime(); exp != nil {
		out.ExpiresAt = exp.Time
	}
	for k, v := range raw {
		if _, reserved := j.reserved[k]; reserved {
			continue
		}
		out.Extra[k] = v
	}
	return out, nil
}

func (j *Manager) parse(tokenStr string) (jwt.MapClaims, error) {
	if tokenStr == "" {
		return nil, errors.New("empty token")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(j.now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		if kid != j.config.KeyID {
			return nil, errors.New("unknown kid")
		}
		return j.public, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	// WithIssuedAt rejects future iat values but accepts tokens without one.
	if iat, _ := claims.GetIssuedAt(); iat == nil {
		return nil, errors.New("missing iat")
	}

	return claims, nil
}

func stringSlice(v any) ([]string, error) {
	switch vals := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return vals, nil
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			s, ok := item.(string)
			if !ok {
				return nil, errors.New("roles claim must contain strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.New("roles claim must be an array")
	}
}
