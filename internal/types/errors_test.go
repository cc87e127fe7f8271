package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationInvalidSchedule, http.StatusBadRequest},
		{ErrCodeNotFoundScheduledReport, http.StatusNotFound},
		{ErrCodeConflictLogFinalized, http.StatusConflict},
		{ErrCodeEmailBlocked, http.StatusForbidden},
		{ErrCodeUpstreamRateLimited, http.StatusTooManyRequests},
		{ErrCodeUpstreamWebhook, http.StatusBadGateway},
		{ErrCodeDeliveryFailed, http.StatusInternalServerError},
		{ErrCodeInternalPersistence, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestAppErrorWrapping(t *testing.T) {
	root := errors.New("connection reset")
	appErr := NewAppError(ErrCodeInternalDB, "failed to insert", root)
	wrapped := fmt.Errorf("Dispatch: %w", appErr)

	var got *AppError
	require.True(t, errors.As(wrapped, &got))
	assert.Equal(t, ErrCodeInternalDB, got.Code)
	assert.ErrorIs(t, wrapped, root)
	assert.Equal(t, "internal_database_error: failed to insert", appErr.Error())
}

func TestAppErrorWithDetailsCopies(t *testing.T) {
	base := NewAppErrorWithDetails(ErrCodeValidationInvalidChannel, "bad", nil, map[string]any{"a": 1})
	derived := base.WithDetails(map[string]any{"b": 2})

	assert.Equal(t, map[string]any{"a": 1}, base.Details)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, derived.Details)
	assert.Equal(t, base.Code, derived.Code)
}
