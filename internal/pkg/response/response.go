package response

import (
	"errors"

	"carmatch-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
)

// SuccessBody is the standardized success JSON shape.
type SuccessBody struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Metadata interface{} `json:"metadata,omitempty"`
}

// ErrorBody is the standardized error JSON shape.
type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

// ErrorDetail is the nested error object.
type ErrorDetail struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details,omitempty"`
}

const statusSuccess = "success"
const statusError = "error"

// Success sends a 200 OK response with the standard success format.
func Success(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusOK).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// SuccessCreated sends a 201 Created response with the standard success format.
func SuccessCreated(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return c.Status(fiber.StatusCreated).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     data,
		Metadata: metadata,
	})
}

// Error sends a response with the standard error format.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	if details == nil {
		details = map[string]interface{}{}
	}
	return c.Status(statusCode).JSON(ErrorBody{
		Status: statusError,
		Error: ErrorDetail{
			Message:    message,
			StatusCode: statusCode,
			Details:    details,
		},
	})
}

// FromError maps domain errors to HTTP responses so every handler reports the
// same shape for the same failure class.
func FromError(c *fiber.Ctx, err error) error {
	switch {
	case domain.IsValidation(err), domain.IsConfiguration(err):
		return Error(c, err.Error(), fiber.StatusBadRequest, nil)
	case errors.Is(err, domain.ErrRecordNotFound),
		errors.Is(err, domain.ErrListingNotFound),
		errors.Is(err, domain.ErrProfileNotFound):
		return Error(c, err.Error(), fiber.StatusNotFound, nil)
	case errors.Is(err, domain.ErrRevisionConflict),
		errors.Is(err, domain.ErrAmbiguousMatch),
		errors.Is(err, domain.ErrAlreadyMatched):
		return Error(c, err.Error(), fiber.StatusConflict, nil)
	default:
		return Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
}
