package api

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator wraps the validator instance
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new custom validator
func NewValidator() *CustomValidator {
	return &CustomValidator{
		validator: validator.New(),
	}
}

// Validate validates a struct. Field errors are returned unwrapped so
// handlers can report them with ErrorValidation.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// bindAndValidate binds the request body and validates it, writing the error
// response itself. A nil return with ok=false means a response was written.
func bindAndValidate(c echo.Context, req interface{}) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, ErrorBadRequest(c, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return false, ErrorValidation(c, err)
	}
	return true, nil
}
