package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error   string                   `json:"error"`
	Message string                   `json:"message,omitempty"`
	Details []map[string]interface{} `json:"details,omitempty"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(error, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:   error,
		Message: message,
	}
}

// WithDetails adds details to an error response
func (e *ErrorResponse) WithDetails(details []map[string]interface{}) *ErrorResponse {
	e.Details = details
	return e
}

// ErrorBadRequest returns a 400 Bad Request error
func ErrorBadRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", message))
}

// ErrorNotFound returns a 404 Not Found error
func ErrorNotFound(c echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", message))
}

// ErrorValidation returns a 422 Unprocessable Entity error with per-field details
func ErrorValidation(c echo.Context, err error) error {
	var details []map[string]interface{}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details = make([]map[string]interface{}, len(fieldErrs))
		for i, fe := range fieldErrs {
			details[i] = map[string]interface{}{
				"field":   fe.Field(),
				"message": "failed on the '" + fe.Tag() + "' rule",
			}
		}
	}

	return c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(
		"validation_failed",
		"Request validation failed",
	).WithDetails(details))
}

// ErrorInternal returns a 500 Internal Server Error
func ErrorInternal(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", message))
}
