package httpapi

import (
	"github.com/gofiber/fiber/v3"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/middleware"
)

const loginSuccessMessage = "authentication successful"

// decode validates the raw body against dst's schema and then binds it.
func (s *server) decode(c fiber.Ctx, dst any) error {
	if err := s.validator.validate(c.Body(), dst); err != nil {
		return err
	}
	if err := c.Bind().JSON(dst); err != nil {
		return &badBody{message: "request body is not valid JSON"}
	}
	return nil
}

func (s *server) jwks(c fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "public, max-age=300")
	return c.JSON(s.engine.JWKS())
}

func (s *server) login(c fiber.Ctx) error {
	var req LoginRequest
	if err := s.decode(c, &req); err != nil {
		return writeBadBody(c, err)
	}

	result, err := s.engine.Login(c.Context(), req.Username, req.Password)
	if err != nil {
		switch goGuard.KindOf(err) {
		case goGuard.KindBadRequest:
			return writeBadBody(c, err)
		case goGuard.KindUnauthorized:
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   loginFailureError,
				Message: loginFailureMessage,
			})
		default:
			return s.writeEngineError(c, err)
		}
	}

	c.Set(fiber.HeaderAuthorization, "Bearer "+result.Token)
	return c.Status(fiber.StatusOK).JSON(LoginResponse{
		Token:    result.Token,
		Message:  loginSuccessMessage,
		Username: result.Username,
	})
}

func (s *server) changePassword(c fiber.Ctx) error {
	identity, _ := middleware.IdentityFromContext(c)

	var req ChangePasswordRequest
	if err := s.decode(c, &req); err != nil {
		return writeBadBody(c, err)
	}
	if err := s.engine.ChangePassword(c.Context(), identity.Username, req.PasswordActual, req.NewPassword); err != nil {
		return s.writeEngineError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *server) createAccount(c fiber.Ctx) error {
	var req CreateAccountRequest
	if err := s.decode(c, &req); err != nil {
		return writeBadBody(c, err)
	}
	account, err := s.engine.CreateAccount(c.Context(), req.input())
	if err != nil {
		return s.writeEngineError(c, err)
	}
	c.Set(fiber.HeaderLocation, "/api/v1/users/"+account.Username)
	return c.Status(fiber.StatusCreated).JSON(accountView(account))
}

func (s *server) listAccounts(c fiber.Ctx) error {
	accounts, err := s.engine.ListAccounts(c.Context())
	if err != nil {
		return s.writeEngineError(c, err)
	}
	views := make([]AccountView, len(accounts))
	for i, a := range accounts {
		views[i] = accountView(a)
	}
	return c.JSON(views)
}

// getAccount serves administrators and the account owner.
func (s *server) getAccount(c fiber.Ctx) error {
	identity, _ := middleware.IdentityFromContext(c)
	username := c.Params("username")
	if !identity.HasRole(goGuard.RoleAdmin) && identity.Username != username {
		return s.writeEngineError(c, goGuard.ErrForbidden)
	}
	account, err := s.engine.GetAccount(c.Context(), username)
	if err != nil {
		return s.writeEngineError(c, err)
	}
	return c.JSON(accountView(account))
}

func (s *server) updateAccount(c fiber.Ctx) error {
	var req UpdateAccountRequest
	if err := s.decode(c, &req); err != nil {
		return writeBadBody(c, err)
	}
	account, err := s.engine.UpdateAccount(c.Context(), c.Params("username"), req.input())
	if err != nil {
		return s.writeEngineError(c, err)
	}
	return c.JSON(accountView(account))
}

func (s *server) unlockAccount(c fiber.Ctx) error {
	if err := s.engine.UnlockAccount(c.Context(), c.Params("username")); err != nil {
		return s.writeEngineError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *server) resetPassword(c fiber.Ctx) error {
	generated, err := s.engine.ResetPassword(c.Context(), c.Params("username"))
	if err != nil {
		return s.writeEngineError(c, err)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(ResetPasswordResponse{NewPassword: generated})
}

