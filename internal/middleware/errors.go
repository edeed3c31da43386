package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/types"
	"github.com/localnerve/memebase/internal/utils"
)

// ErrorHandler renders every error as the standard JSON error body. Status
// errors keep their status and type; anything else is a 500 whose details
// stay in the log.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Internal Server Error"
	errorType := "unknown"

	var fe *fiber.Error
	if se, ok := types.AsStatusError(err); ok {
		status = se.HTTPStatus()
		errorType = se.ErrorType()
		message = publicMessage(se)
	} else if errors.As(err, &fe) {
		status = fe.Code
		message = fe.Message
		errorType = "http"
	}

	logger := logging.Ctx(c.UserContext())
	event := logger.Warn()
	if status >= fiber.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Int("status", status).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Str("type", errorType).
		Msg("Request failed")

	return utils.ErrorResponse(c, message, status, errorType)
}

// publicMessage drops the wrapped cause, which may carry internals
func publicMessage(se types.StatusError) string {
	var appErr *types.AppError
	if errors.As(se, &appErr) {
		return appErr.Message
	}
	return se.Error()
}

// NotFound answers requests no route matched
func NotFound(c *fiber.Ctx) error {
	return utils.NotFoundResponse(c, "[404] Resource Not Found")
}
