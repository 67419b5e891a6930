package errors

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// APIError is an error that knows how it should be rendered to a client.
type APIError struct {
	Status   int               `json:"-"`
	Message  string            `json:"error"`
	Details  map[string]string `json:"details,omitempty"`
	Internal error             `json:"-"`
}

func (e *APIError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

// Unwrap returns the original error
func (e *APIError) Unwrap() error {
	return e.Internal
}

func New(status int, message string, err error) *APIError {
	return &APIError{
		Status:   status,
		Message:  message,
		Internal: err,
	}
}

func BadRequest(msg string, err error) *APIError {
	return New(http.StatusBadRequest, msg, err)
}

func Unauthorized(msg string, err error) *APIError {
	return New(http.StatusUnauthorized, msg, err)
}

func Forbidden(msg string, err error) *APIError {
	return New(http.StatusForbidden, msg, err)
}

func NotFound(msg string, err error) *APIError {
	return New(http.StatusNotFound, msg, err)
}

func Conflict(msg string, err error) *APIError {
	return New(http.StatusConflict, msg, err)
}

func UnprocessableEntity(msg string, err error) *APIError {
	return New(http.StatusUnprocessableEntity, msg, err)
}

func Internal(err error) *APIError {
	return New(http.StatusInternalServerError, "Internal server error", err)
}

// NewValidationError turns binding failures into a 422 with one entry per invalid field.
func NewValidationError(err error) *APIError {
	apiErr := UnprocessableEntity("Validation failed", err)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		apiErr.Details = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			apiErr.Details[fe.Field()] = describe(fe)
		}
	}
	return apiErr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
