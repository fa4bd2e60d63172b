// Package constant lists the business-error sentinels shared by the
// invoice, matcher and webhook services, the same role
// common/constant/errors.go plays for the teacher's services.
package constant

import (
	"errors"
	"fmt"

	"github.com/shiftpay/usdt-gateway/pkg/apperr"
)

var (
	ErrEntityNotFound                = errors.New("0001")
	ErrMerchantNotFound              = errors.New("0002")
	ErrInvoiceNotFound               = errors.New("0003")
	ErrCollisionExhausted            = errors.New("0004")
	ErrAmountDiffPrecisionError      = errors.New("0005")
	ErrAmountDiffCollision           = errors.New("0006")
	ErrInvalidAPIKey                 = errors.New("0007")
	ErrUnexpectedFieldsInTheRequest  = errors.New("0008")
	ErrMissingFieldsInRequest        = errors.New("0009")
	ErrBadRequest                    = errors.New("0010")
	ErrInternalServer                = errors.New("0011")
	ErrWebhookDeliveryFailedTerminal = errors.New("0012")
)

// ValidateBusinessError maps a sentinel business error to the typed apperr
// value the HTTP layer and callers switch on.
func ValidateBusinessError(err error, entityType string, args ...any) error {
	switch {
	case errors.Is(err, ErrEntityNotFound):
		return apperr.EntityNotFoundError{
			EntityType: entityType,
			Code:       ErrEntityNotFound.Error(),
			Title:      "Entity Not Found",
			Message:    "No entity was found for the given ID.",
		}
	case errors.Is(err, ErrMerchantNotFound):
		return apperr.EntityNotFoundError{
			EntityType: entityType,
			Code:       ErrMerchantNotFound.Error(),
			Title:      "Merchant Not Found",
			Message:    "The provided merchant_id does not exist.",
		}
	case errors.Is(err, ErrInvoiceNotFound):
		return apperr.EntityNotFoundError{
			EntityType: entityType,
			Code:       ErrInvoiceNotFound.Error(),
			Title:      "Invoice Not Found",
			Message:    "No invoice was found for the given ID.",
		}
	case errors.Is(err, ErrCollisionExhausted):
		return apperr.EntityConflictError{
			EntityType: entityType,
			Code:       ErrCollisionExhausted.Error(),
			Title:      "Collision Exhausted",
			Message:    fmt.Sprintf("Could not allocate a unique published amount for merchant %v after all attempts; the invoice was recorded for manual resolution.", args...),
		}
	case errors.Is(err, ErrAmountDiffPrecisionError):
		return apperr.UnprocessableOperationError{
			EntityType: entityType,
			Code:       ErrAmountDiffPrecisionError.Error(),
			Title:      "Amount-Diff Precision Error",
			Message:    "The configured reserved fractional digits exceed the target network's precision.",
		}
	case errors.Is(err, ErrInvalidAPIKey):
		return apperr.UnauthorizedError{
			EntityType: entityType,
			Code:       ErrInvalidAPIKey.Error(),
			Title:      "Invalid API Key",
			Message:    "The provided API key is missing or invalid.",
		}
	case errors.Is(err, ErrMissingFieldsInRequest):
		return apperr.ValidationError{
			EntityType: entityType,
			Code:       ErrMissingFieldsInRequest.Error(),
			Title:      "Missing Fields in Request",
			Message:    "The request is missing one or more required fields.",
		}
	case errors.Is(err, ErrBadRequest):
		return apperr.ValidationError{
			EntityType: entityType,
			Code:       ErrBadRequest.Error(),
			Title:      "Bad Request",
			Message:    "The server could not understand the request due to malformed syntax.",
		}
	default:
		return err
	}
}

// ValidateInternalError wraps an opaque failure the way ValidateInternalError
// does for the teacher's services: the client never sees err's text.
func ValidateInternalError(err error, entityType string) error {
	return apperr.InternalServerError{
		EntityType: entityType,
		Code:       ErrInternalServer.Error(),
		Title:      "Internal Server Error",
		Message:    "The server encountered an unexpected error. Please try again later.",
		Err:        err,
	}
}
