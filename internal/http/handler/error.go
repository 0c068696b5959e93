package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/extract"
	"docvault/internal/http/middleware"
	"docvault/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "NOT_FOUND", "DUPLICATE_FILENAME")
// - message: human-readable safe message
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps a FileService error onto status and code.
// Client and not-found errors carry their own message; everything else is
// logged and answered with a generic one.
func writeServiceError(c *fiber.Ctx, err error) error {
	var (
		mismatch  *service.BucketMismatchError
		dup       *service.DuplicateFilenameError
		tooLarge  *service.PayloadTooLargeError
		malformed *extract.MalformedPayloadError
		encErr    *extract.EncodingError
		exErr     *extract.ExtractionError
		noContent *service.ContentNotFoundError
		noMatch   *service.NoMatchError
		notFound  *service.NotFoundError
	)

	switch {
	case errors.As(err, &mismatch):
		return writeError(c, fiber.StatusConflict, "BUCKET_MISMATCH", err.Error())
	case errors.As(err, &dup):
		return writeError(c, fiber.StatusConflict, "DUPLICATE_FILENAME", err.Error())
	case errors.As(err, &tooLarge):
		return writeError(c, fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error())
	case errors.As(err, &malformed):
		return writeError(c, fiber.StatusUnprocessableEntity, "MALFORMED_PAYLOAD", err.Error())
	case errors.As(err, &encErr):
		return writeError(c, fiber.StatusUnprocessableEntity, "ENCODING_ERROR", err.Error())
	case errors.As(err, &exErr):
		return writeError(c, fiber.StatusUnprocessableEntity, "EXTRACTION_FAILED", err.Error())
	case errors.Is(err, service.ErrTypeNotAllowed):
		return writeError(c, fiber.StatusBadRequest, "TYPE_NOT_ALLOWED", err.Error())
	case errors.As(err, &noContent):
		return writeError(c, fiber.StatusNotFound, "CONTENT_NOT_FOUND", err.Error())
	case errors.As(err, &noMatch):
		return writeError(c, fiber.StatusNotFound, "NO_MATCH", err.Error())
	case errors.As(err, &notFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", err.Error())
	}

	switch service.KindOf(err) {
	case service.KindClientInput:
		return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", err.Error())
	case service.KindIntegrity:
		slog.ErrorContext(c.UserContext(), "integrity fault",
			"request_id", requestIDFromCtx(c), "path", c.Path(), "error", err)
		return writeError(c, fiber.StatusInternalServerError, "INCONSISTENT_STATE", "stored data is inconsistent")
	default:
		slog.ErrorContext(c.UserContext(), "request failed",
			"request_id", requestIDFromCtx(c), "path", c.Path(), "error", err)
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
