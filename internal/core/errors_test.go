package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := NewError("media.CreateRoom", ErrValidation, "room already exists", nil)
	assert.Equal(t, "media.CreateRoom: [validation] room already exists", err.Error())
}

func TestError_ErrorFallsBackToWrapped(t *testing.T) {
	err := NewError("trunk.probe", ErrConnection, "", fmt.Errorf("dial tcp: timeout"))
	assert.Contains(t, err.Error(), "dial tcp: timeout")
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := NewError("op", ErrInternal, "wrapped", cause)
	assert.ErrorIs(t, err, cause)
}

func TestError_Is(t *testing.T) {
	err := NewError("media.GetParticipant", ErrNotFound, "no such participant", nil)
	assert.True(t, errors.Is(err, &Error{Code: ErrNotFound}))
	assert.False(t, errors.Is(err, &Error{Code: ErrValidation}))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit retryable", NewError("op", ErrRateLimit, "", nil), true},
		{"server error retryable", NewError("op", ErrServerError, "", nil), true},
		{"connection retryable", NewError("op", ErrConnection, "", nil), true},
		{"timeout retryable", NewError("op", ErrTimeout, "", nil), true},
		{"validation not retryable", NewError("op", ErrValidation, "", nil), false},
		{"auth not retryable", NewError("op", ErrAuth, "", nil), false},
		{"plain error not retryable", fmt.Errorf("plain"), false},
		{"nil not retryable", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestCode(t *testing.T) {
	code, ok := Code(NewError("op", ErrTimeout, "", nil))
	assert.True(t, ok)
	assert.Equal(t, ErrTimeout, code)

	_, ok = Code(fmt.Errorf("plain"))
	assert.False(t, ok)
}
