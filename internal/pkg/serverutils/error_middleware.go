package serverutils

import (
	"errors"

	"research-agent-be/pkg/ingest"
	"research-agent-be/pkg/retrieval/hybrid"

	"github.com/gofiber/fiber/v2"
)

// RequestError is returned by services when the caller's input is at fault
type RequestError struct {
	Status  int
	Message string
	Details interface{}
}

func (e *RequestError) Error() string {
	return e.Message
}

func NewRequestError(status int, message string, details interface{}) *RequestError {
	return &RequestError{Status: status, Message: message, Details: details}
}

// ErrorHandlerMiddleware turns handler errors into JSON error envelopes
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code, body := classify(err)
		return ctx.Status(code).JSON(body)
	}
}

func classify(err error) (int, ErrorBody) {
	var validationErr *ValidationError
	var requestErr *RequestError
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &validationErr):
		return fiber.StatusBadRequest, ErrorResponse(fiber.StatusBadRequest, "Invalid request").WithErrors(validationErr.Fields)
	case errors.As(err, &requestErr):
		return requestErr.Status, ErrorResponse(requestErr.Status, requestErr.Message).WithErrors(requestErr.Details)
	case errors.Is(err, hybrid.ErrRebuildInProgress):
		return fiber.StatusConflict, ErrorResponse(fiber.StatusConflict, err.Error())
	case errors.Is(err, ingest.ErrUnsupportedFile), errors.Is(err, ingest.ErrEmptyDocument),
		errors.Is(err, hybrid.ErrInvalidCorpus):
		return fiber.StatusBadRequest, ErrorResponse(fiber.StatusBadRequest, err.Error())
	case errors.As(err, &fiberErr):
		return fiberErr.Code, ErrorResponse(fiberErr.Code, fiberErr.Message)
	default:
		return fiber.StatusInternalServerError, ErrorResponse(fiber.StatusInternalServerError, "Internal server error")
	}
}
