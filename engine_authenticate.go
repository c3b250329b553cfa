package goGuard

import (
	"context"
	"strings"
)

// Authenticate turns a bearer token into an Identity. Any verification
// failure yields (nil, false); it never returns an error so callers can treat
// the request as anonymous.
func (e *Engine) Authenticate(ctx context.Context, token string) (*Identity, bool) {
	if e == nil || e.tokens == nil || token == "" {
		return nil, false
	}

	claims, err := e.tokens.ParseClaims(token)
	if err != nil {
		e.metricInc(MetricTokenRejected)
		e.logger.DebugContext(ctx, "bearer token rejected", "request_id", RequestIDFromContext(ctx))
		return nil, false
	}

	prefix := e.config.Authorization.RolePrefix
	identity := &Identity{
		Username:    claims.Subject,
		Roles:       make([]Role, 0, len(claims.Roles)),
		Authorities: make([]string, 0, len(claims.Roles)),
		Claims:      make(map[string]any, len(claims.Extra)+4),
	}
	for _, r := range claims.Roles {
		identity.Roles = append(identity.Roles, Role(strings.TrimPrefix(r, prefix)))
		identity.Authorities = append(identity.Authorities, authority(prefix, r))
	}
	for k, v := range claims.Extra {
		identity.Claims[k] = v
	}
	identity.Claims["sub"] = claims.Subject
	identity.Claims["roles"] = append([]string(nil), claims.Roles...)
	identity.Claims["iat"] = claims.IssuedAt.Unix()
	identity.Claims["exp"] = claims.ExpiresAt.Unix()

	return identity, true
}

// Authority returns role with the configured prefix, as carried on
// [Identity.Authorities].
func (e *Engine) Authority(role Role) string {
	if e == nil {
		return string(role)
	}
	return authority(e.config.Authorization.RolePrefix, string(role))
}

func authority(prefix, role string) string {
	if prefix == "" || strings.HasPrefix(role, prefix) {
		return role
	}
	return prefix + role
}
