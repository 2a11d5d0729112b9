package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"docqa/database"
	"docqa/embeddings"
	"docqa/llm"
)

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func (e Error) Error() string {
	return e.Message
}

func NewError(code int, message string) Error {
	return Error{Code: code, Message: message}
}

func ErrBadRequest(message string) Error {
	return Error{Code: fiber.StatusBadRequest, Message: message}
}

func ErrUnauthorized(message string) Error {
	return Error{Code: fiber.StatusUnauthorized, Message: message}
}

type ValidationError struct {
	Code   int               `json:"code"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(fields map[string]string) ValidationError {
	return ValidationError{Code: fiber.StatusUnprocessableEntity, Errors: fields}
}

// NewErrorHandler maps service errors onto HTTP statuses. Provider failures
// surface as bad-gateway so clients can distinguish them from their own
// mistakes.
func NewErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var apiErr Error
		if errors.As(err, &apiErr) {
			return c.Status(apiErr.Code).JSON(apiErr)
		}

		var valErr ValidationError
		if errors.As(err, &valErr) {
			return c.Status(valErr.Code).JSON(valErr)
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(Error{Code: fiberErr.Code, Message: fiberErr.Message})
		}

		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, database.ErrNotFound):
			status = fiber.StatusNotFound
		case errors.Is(err, database.ErrEmailTaken):
			status = fiber.StatusBadRequest
		case errors.Is(err, llm.ErrRateLimited):
			status = fiber.StatusTooManyRequests
		case errors.Is(err, llm.ErrGenerate), errors.Is(err, embeddings.ErrEmbed):
			status = fiber.StatusBadGateway
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		}

		return c.Status(status).JSON(Error{Code: status, Message: err.Error()})
	}
}
