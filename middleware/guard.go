package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"

	goGuard "github.com/MrEthical07/goGuard"
)

type identityLocalsKey struct{}

// Authenticator resolves a bearer token. *goGuard.Engine implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*goGuard.Identity, bool)
}

// ErrorBody is the JSON shape of every rejection written by this package.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// IdentityFromContext returns the identity stored by [Authorize].
func IdentityFromContext(c fiber.Ctx) (*goGuard.Identity, bool) {
	id, ok := c.Locals(identityLocalsKey{}).(*goGuard.Identity)
	return id, ok && id != nil
}

// Authorize looks for "Authorization: Bearer <token>" and, when the engine
// accepts the token, stores the resulting identity for downstream handlers.
// The request always continues.
func Authorize(auth Authenticator) fiber.Handler {
	return func(c fiber.Ctx) error {
		if auth == nil {
			return c.Next()
		}
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return c.Next()
		}
		if identity, ok := auth.Authenticate(c.Context(), token); ok {
			c.Locals(identityLocalsKey{}, identity)
		}
		return c.Next()
	}
}

// RequireAuthenticated rejects anonymous requests with 401.
func RequireAuthenticated() fiber.Handler {
	return func(c fiber.Ctx) error {
		if _, ok := IdentityFromContext(c); !ok {
			return unauthorized(c)
		}
		return c.Next()
	}
}

// RequireRole rejects anonymous requests with 401 and identities holding
// none of roles with 403.
func RequireRole(roles ...goGuard.Role) fiber.Handler {
	return func(c fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return unauthorized(c)
		}
		for _, role := range roles {
			if identity.HasRole(role) {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(ErrorBody{
			Error:   "forbidden",
			Message: "insufficient role",
		})
	}
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorBody{
		Error:   "unauthorized",
		Message: "authentication required",
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
