package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStatusMapsCodes(t *testing.T) {
	cases := []struct {
		status int
		code   string
	}{
		{http.StatusBadRequest, CodeValidation},
		{http.StatusUnauthorized, CodeUnauthorized},
		{http.StatusForbidden, CodeForbidden},
		{http.StatusNotFound, CodeNotFound},
		{http.StatusConflict, CodeConflict},
		{http.StatusInternalServerError, CodeAPI},
		{http.StatusBadGateway, CodeAPI},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			de := FromStatus(tc.status, "boom")
			assert.Equal(t, tc.code, de.Code)
			assert.Equal(t, tc.status, de.HTTPStatus)
			assert.True(t, de.Remote)
		})
	}
}

func TestFromStatusWithoutServerMessage(t *testing.T) {
	de := FromStatus(http.StatusNotFound, "  ")
	assert.False(t, de.Remote)
	assert.Equal(t, "not found", de.Message)
}

func TestUserMessagePrefersServerText(t *testing.T) {
	remote := fmt.Errorf("login: %w", FromStatus(http.StatusUnauthorized, "E-mail ou senha inválidos"))
	assert.Equal(t, "E-mail ou senha inválidos", UserMessage(remote, "generic"))

	local := FromStatus(http.StatusInternalServerError, "")
	assert.Equal(t, "generic", UserMessage(local, "generic"))

	assert.Equal(t, "generic", UserMessage(NewNetworkError(errors.New("dial tcp")), "generic"))
	assert.Equal(t, "generic", UserMessage(errors.New("plain"), "generic"))
}

func TestDomainErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("get: %w", NewNotFound("occurrence", nil))
	assert.True(t, errors.Is(err, &DomainError{Code: CodeNotFound}))
	assert.False(t, errors.Is(err, &DomainError{Code: CodeConflict}))
	assert.True(t, HasCode(err, CodeNotFound))
}

func TestFieldErrors(t *testing.T) {
	err := NewValidationError("invalid form", map[string]any{"title": "too short", "n": 3})
	fields := FieldErrors(err)
	require.Len(t, fields, 1)
	assert.Equal(t, "too short", fields["title"])

	assert.Nil(t, FieldErrors(NewUnauthorized("nope")))
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	de := ToDomainError(errors.New("disk full"))
	assert.Equal(t, CodeInternal, de.Code)
	assert.Nil(t, ToDomainError(nil))
}
