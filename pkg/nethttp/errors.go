package nethttp

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/shiftpay/usdt-gateway/pkg/apperr"
)

// WithError dispatches err to the matching fiber response, mirroring the
// teacher's common/net/http.WithError switch.
func WithError(c *fiber.Ctx, err error) error {
	switch e := err.(type) {
	case apperr.EntityNotFoundError:
		return NotFound(c, e.Code, e.Title, e.Message)
	case apperr.EntityConflictError:
		return Conflict(c, e.Code, e.Title, e.Message)
	case apperr.ValidationError:
		return BadRequest(c, ResponseError{Code: e.Code, Title: e.Title, Message: e.Message})
	case apperr.ValidationFieldsError:
		return BadRequest(c, e)
	case apperr.UnprocessableOperationError:
		return UnprocessableEntity(c, e.Code, e.Title, e.Message)
	case apperr.UnauthorizedError:
		return Unauthorized(c, e.Code, e.Title, e.Message)
	case apperr.ForbiddenError:
		return Forbidden(c, e.Code, e.Title, e.Message)
	case apperr.InternalServerError:
		return InternalServerError(c, e.Code, e.Title, e.Message)
	default:
		var iErr apperr.InternalServerError
		if errors.As(err, &iErr) {
			return InternalServerError(c, iErr.Code, iErr.Title, iErr.Message)
		}

		return InternalServerError(c, "0011", "Internal Server Error", "The server encountered an unexpected error.")
	}
}
