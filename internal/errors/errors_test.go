package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

var errSentinel = stdErrors.New("sentinel")

func TestAPIError_UnwrapsInternal(t *testing.T) {
	err := NotFound("Page not found", errSentinel)

	assert.True(t, stdErrors.Is(err, errSentinel))
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.Equal(t, "Page not found: sentinel", err.Error())
}

func TestAPIError_MessageOnly(t *testing.T) {
	err := Forbidden("Access denied", nil)

	assert.Equal(t, "Access denied", err.Error())
	assert.Nil(t, err.Unwrap())
}

type form struct {
	Name  string `validate:"required"`
	Email string `validate:"required,email"`
}

func TestNewValidationError_Details(t *testing.T) {
	v := validator.New()
	err := v.Struct(form{Email: "nope"})

	apiErr := NewValidationError(err)

	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "is required", apiErr.Details["Name"])
	assert.Equal(t, "must be a valid email", apiErr.Details["Email"])
}

func TestNewValidationError_PlainError(t *testing.T) {
	apiErr := NewValidationError(errSentinel)

	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Empty(t, apiErr.Details)
}
