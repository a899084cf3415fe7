package petchat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vovakirdan/petchat-sdk-go/petchat/rest"
)

func TestChatErrorMatchesByCode(t *testing.T) {
	err := fmt.Errorf("connect: %w", WrapError(ErrorConnection, "dial", errors.New("refused")))

	assert.True(t, errors.Is(err, NewError(ErrorConnection, "")))
	assert.False(t, errors.Is(err, NewError(ErrorTimeout, "")))
	assert.Equal(t, ErrorConnection, CodeOf(err))
	assert.Equal(t, ErrorUnknown, CodeOf(errors.New("plain")))
	assert.Contains(t, err.Error(), "connection_error: dial (wrapped: refused)")
}

func TestChatErrorSentinelsAreDistinct(t *testing.T) {
	err := fmt.Errorf("connect: %w", ErrMissingToken)

	assert.ErrorIs(t, err, ErrMissingToken)
	assert.NotErrorIs(t, err, ErrMissingUserID)
	assert.NotErrorIs(t, ErrMissingUserID, ErrMissingToken)
	assert.ErrorIs(t, err, NewError(ErrorInvalidArgument, ""))
	assert.NotErrorIs(t, NewError(ErrorInvalidArgument, "user id is required"), ErrMissingUserID)
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, IsConnectionError(NewError(ErrorTimeout, "slow")))
	assert.True(t, IsConnectionError(NewError(ErrorNotConnected, "no socket")))
	assert.False(t, IsConnectionError(NewError(ErrorServer, "500")))
	assert.False(t, IsConnectionError(nil))
}

func TestWrapAPIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "rate limited", err: &rest.APIError{StatusCode: http.StatusTooManyRequests}, want: ErrorRateLimited},
		{name: "server", err: &rest.APIError{StatusCode: http.StatusBadGateway}, want: ErrorServer},
		{name: "client", err: &rest.APIError{StatusCode: http.StatusNotFound}, want: ErrorHTTP},
		{name: "deadline", err: fmt.Errorf("http request: %w", context.DeadlineExceeded), want: ErrorTimeout},
		{name: "network", err: errors.New("connection reset"), want: ErrorConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapAPIError("op", tt.err)
			assert.Equal(t, tt.want, CodeOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "rate_limited", ErrorRateLimited.String())
	assert.Equal(t, "unknown_code_99", ErrorCode(99).String())
}
