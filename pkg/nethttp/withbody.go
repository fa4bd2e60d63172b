package nethttp

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	validator "gopkg.in/go-playground/validator.v9"

	"github.com/shiftpay/usdt-gateway/pkg/apperr"
)

// DecodeHandlerFunc receives the struct decoded and validated by WithBody.
type DecodeHandlerFunc func(payload any, c *fiber.Ctx) error

// ConstructorFunc builds a fresh instance of the payload struct.
type ConstructorFunc func() any

var validate = validator.New()

// WithBody decodes the request body into a struct built by newPayload,
// rejects unknown fields, validates it with go-playground/validator.v9 tags
// and only then calls h. Mirrors the teacher's withBody decorator, trimmed
// to this service's single write endpoint.
func WithBody(newPayload ConstructorFunc, h DecodeHandlerFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := newPayload()

		body := c.Body()

		if err := json.Unmarshal(body, payload); err != nil {
			return WithError(c, apperr.ValidationError{
				Code:    "0010",
				Title:   "Bad Request",
				Message: "The request body is not valid JSON.",
			})
		}

		if unknown := diffFields(body, payload); len(unknown) > 0 {
			return WithError(c, apperr.ValidationFieldsError{
				Code:    "0008",
				Title:   "Unexpected Fields in the Request",
				Message: "The request body contains fields that aren't recognized.",
				Fields:  unknown,
			})
		}

		if err := validate.Struct(payload); err != nil {
			fields := make(map[string]string)

			if verrs, ok := err.(validator.ValidationErrors); ok {
				for _, fe := range verrs {
					fields[strings.ToLower(fe.Field())] = fe.Tag()
				}
			}

			return WithError(c, apperr.ValidationFieldsError{
				Code:    "0009",
				Title:   "Missing or Invalid Fields",
				Message: "One or more fields failed validation.",
				Fields:  fields,
			})
		}

		return h(payload, c)
	}
}

// diffFields returns the set of top-level JSON keys present in body but not
// reproduced when payload is marshaled back — i.e. fields the struct has no
// tag for.
func diffFields(body []byte, payload any) map[string]string {
	var original map[string]any
	if err := json.Unmarshal(body, &original); err != nil {
		return nil
	}

	marshaled, err := json.Marshal(payload)
	if err != nil {
		return nil
	}

	var reEncoded map[string]any
	if err := json.Unmarshal(marshaled, &reEncoded); err != nil {
		return nil
	}

	diff := make(map[string]string)

	for key := range original {
		if _, ok := reEncoded[key]; !ok {
			diff[key] = "unexpected field"
		}
	}

	return diff
}
