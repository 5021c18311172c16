package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestCode_Status(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Code
		want int
	}{
		{CodeInvalid, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeGone, http.StatusGone},
		{CodeTooManyRequests, http.StatusTooManyRequests},
		{CodeUnavailable, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
		{Code("something-else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.code.Status())
		})
	}
}

func TestError_WrapAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := Wrap(cause, CodeConflict, "email taken")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "conflict: email taken: boom", err.Error())
	assert.Equal(t, http.StatusConflict, StatusOf(err))

	wrapped := fmt.Errorf("signup: %w", err)
	assert.True(t, IsCode(wrapped, CodeConflict))
	assert.False(t, IsCode(wrapped, CodeNotFound))
	assert.Equal(t, http.StatusConflict, StatusOf(wrapped))
}

func TestStatusOf_PlainError(t *testing.T) {
	t.Parallel()
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("plain")))
}

func TestConstructors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusBadRequest, Validation("bad").Status())
	assert.Equal(t, http.StatusUnauthorized, Unauthorized("no").Status())
	assert.Equal(t, http.StatusForbidden, Forbidden("no").Status())
	assert.Equal(t, http.StatusNotFound, NotFound("gone").Status())
	assert.Equal(t, http.StatusConflict, Conflict("dup").Status())
	assert.Equal(t, http.StatusGone, Gone("expired").Status())

	internal := Internal(errors.New("db down"))
	assert.Equal(t, http.StatusInternalServerError, internal.Status())
	assert.Equal(t, "Internal Server Error", internal.Message)

	withDetails := Validation("bad").WithDetails(map[string]string{"field": "email"})
	assert.Equal(t, map[string]string{"field": "email"}, withDetails.Details)
}

func TestFromStorage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"record not found", gorm.ErrRecordNotFound, CodeNotFound},
		{"duplicated key", gorm.ErrDuplicatedKey, CodeConflict},
		{"invalid field", gorm.ErrInvalidField, CodeInvalid},
		{"pg unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, CodeConflict},
		{"pg not null", &pgconn.PgError{Code: "23502", ColumnName: "email"}, CodeInvalid},
		{"pg cast", &pgconn.PgError{Code: "22P02"}, CodeInvalid},
		{"pg other", &pgconn.PgError{Code: "53300"}, CodeInternal},
		{"unknown", errors.New("connection reset"), CodeInternal},
		{"already coded", Forbidden("nope"), CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := FromStorage(tt.err, "user")
			assert.True(t, IsCode(got, tt.want), "got %v", got)
		})
	}

	assert.NoError(t, FromStorage(nil, "user"))
}

func TestFromStorage_Messages(t *testing.T) {
	t.Parallel()

	e, ok := As(FromStorage(gorm.ErrRecordNotFound, "task"))
	assert.True(t, ok)
	assert.Equal(t, "task not found", e.Message)

	e, ok = As(FromStorage(gorm.ErrDuplicatedKey, "user"))
	assert.True(t, ok)
	assert.Equal(t, "Duplicate value for user", e.Message)
}
