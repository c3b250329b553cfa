package httpapi

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	goGuard "github.com/MrEthical07/goGuard"
)

// Login failures share one body so callers cannot tell an unknown user from
// a wrong password or a locked account.
const (
	loginFailureError   = "invalid credentials or account locked"
	loginFailureMessage = "authentication failed"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func statusOf(kind goGuard.ErrorKind) int {
	switch kind {
	case goGuard.KindBadRequest, goGuard.KindPolicyViolation:
		return fiber.StatusBadRequest
	case goGuard.KindUnauthorized:
		return fiber.StatusUnauthorized
	case goGuard.KindForbidden:
		return fiber.StatusForbidden
	case goGuard.KindNotFound:
		return fiber.StatusNotFound
	case goGuard.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// writeEngineError maps err through goGuard.KindOf. Internal errors are
// logged with the request ID and their text is not sent to the client.
func (s *server) writeEngineError(c fiber.Ctx, err error) error {
	kind := goGuard.KindOf(err)
	status := statusOf(kind)
	if status == fiber.StatusInternalServerError {
		s.logger.ErrorContext(c.Context(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", goGuard.RequestIDFromContext(c.Context()),
			"error", err,
		)
		return c.Status(status).JSON(ErrorResponse{
			Error:   kind.String(),
			Message: "internal server error",
		})
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:   kind.String(),
		Message: err.Error(),
	})
}

func writeBadBody(c fiber.Ctx, err error) error {
	resp := ErrorResponse{Error: goGuard.KindBadRequest.String(), Message: err.Error()}
	var bb *badBody
	if errors.As(err, &bb) {
		resp.Details = bb.details
	}
	return c.Status(fiber.StatusBadRequest).JSON(resp)
}

// errorHandler renders errors that escape a handler, such as routing misses
// and body-limit violations, in the common error shape.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "internal server error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			message = fe.Message
		} else {
			logger.ErrorContext(c.Context(), "unhandled error",
				"path", c.Path(),
				"request_id", goGuard.RequestIDFromContext(c.Context()),
				"error", err,
			)
		}
		kind := goGuard.KindInternal
		switch status {
		case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge:
			kind = goGuard.KindBadRequest
		case fiber.StatusUnauthorized:
			kind = goGuard.KindUnauthorized
		case fiber.StatusForbidden:
			kind = goGuard.KindForbidden
		case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
			kind = goGuard.KindNotFound
		}
		return c.Status(status).JSON(ErrorResponse{Error: kind.String(), Message: message})
	}
}
