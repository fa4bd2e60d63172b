// Package nethttp holds the fiber response helpers and the error-dispatch
// glue shared by the gateway's HTTP handlers, the same role
// common/net/http plays for the teacher's services.
package nethttp

import (
	"github.com/gofiber/fiber/v2"
)

// ResponseError is the JSON body returned for every non-2xx response.
type ResponseError struct {
	Code    string `json:"code,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK writes a 200 with the given payload.
func OK(c *fiber.Ctx, payload any) error {
	return c.Status(fiber.StatusOK).JSON(payload)
}

// Created writes a 201 with the given payload.
func Created(c *fiber.Ctx, payload any) error {
	return c.Status(fiber.StatusCreated).JSON(payload)
}

// NotFound writes a 404 ResponseError.
func NotFound(c *fiber.Ctx, code, title, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(ResponseError{Code: code, Title: title, Message: message})
}

// Conflict writes a 409 ResponseError.
func Conflict(c *fiber.Ctx, code, title, message string) error {
	return c.Status(fiber.StatusConflict).JSON(ResponseError{Code: code, Title: title, Message: message})
}

// BadRequest writes a 400 with an arbitrary error payload (a
// ValidationFieldsError or a plain ResponseError).
func BadRequest(c *fiber.Ctx, payload any) error {
	return c.Status(fiber.StatusBadRequest).JSON(payload)
}

// UnprocessableEntity writes a 422 ResponseError.
func UnprocessableEntity(c *fiber.Ctx, code, title, message string) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(ResponseError{Code: code, Title: title, Message: message})
}

// Unauthorized writes a 401 ResponseError.
func Unauthorized(c *fiber.Ctx, code, title, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ResponseError{Code: code, Title: title, Message: message})
}

// Forbidden writes a 403 ResponseError.
func Forbidden(c *fiber.Ctx, code, title, message string) error {
	return c.Status(fiber.StatusForbidden).JSON(ResponseError{Code: code, Title: title, Message: message})
}

// InternalServerError writes a 500 ResponseError. The caller is responsible
// for stripping sensitive text from message before calling this (per the
// opaque-failure policy on POST /api/invoices).
func InternalServerError(c *fiber.Ctx, code, title, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(ResponseError{Code: code, Title: title, Message: message})
}

// ServiceUnavailable writes a 503, used by GET /api/ready when a dependency
// is unreachable.
func ServiceUnavailable(c *fiber.Ctx, payload any) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(payload)
}
