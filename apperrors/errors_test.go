package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{MissingFields("description"), http.StatusBadRequest},
		{MalformedID("case"), http.StatusBadRequest},
		{InvalidStatus([]string{"active"}), http.StatusBadRequest},
		{Conflict("Email is already taken"), http.StatusBadRequest},
		{Unauthorized("Invalid token"), http.StatusUnauthorized},
		{Forbidden("Access denied"), http.StatusForbidden},
		{NotFound("Case"), http.StatusNotFound},
		{Internal("boom", errors.New("db down")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus)
		})
	}
}

func TestMissingFieldsMessage(t *testing.T) {
	err := MissingFields("missingPerson.name", "lastSeenDate")
	assert.Equal(t, "Missing required fields: missingPerson.name, lastSeenDate", err.Message)
	assert.Equal(t, []string{"missingPerson.name", "lastSeenDate"}, err.Fields)
}

func TestFromKeepsClassifiedErrors(t *testing.T) {
	wrapped := fmt.Errorf("update status: %w", Forbidden("nope"))
	got := From(wrapped, "Server error")
	assert.Equal(t, CodeForbidden, got.Code)
	assert.True(t, HasCode(wrapped, CodeForbidden))
	assert.True(t, errors.Is(wrapped, Forbidden("")))
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("connection reset")
	got := From(cause, "Server error while fetching cases")
	assert.Equal(t, CodeInternal, got.Code)
	assert.Equal(t, "Server error while fetching cases", got.Message)
	assert.ErrorIs(t, got, cause)
}
