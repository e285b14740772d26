package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/fintrack/internal/service"
)

var fastRetry = service.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     2 * time.Millisecond,
	Multiplier:   2,
}

func TestWithRetry(t *testing.T) {
	errFlaky := errors.New("connection reset")

	tests := []struct {
		wantErr   error
		failures  []error
		name      string
		wantCalls int
	}{
		{
			name:      "succeeds first time",
			wantCalls: 1,
		},
		{
			name:      "recovers after transient failures",
			failures:  []error{errFlaky, errFlaky},
			wantCalls: 3,
		},
		{
			name:      "gives up after max attempts",
			failures:  []error{errFlaky, errFlaky, errFlaky},
			wantCalls: 3,
			wantErr:   ErrMaxRetries,
		},
		{
			name:      "permanent errors stop immediately",
			failures:  []error{Permanent(ErrNotFound)},
			wantCalls: 1,
			wantErr:   ErrNotFound,
		},
		{
			name:      "cancellation is not retried",
			failures:  []error{context.Canceled},
			wantCalls: 1,
			wantErr:   context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), "test", func(context.Context) error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			}, fastRetry)

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWithRetry_SingleAttemptReturnsRawError(t *testing.T) {
	errBoom := errors.New("boom")
	err := WithRetry(context.Background(), "test", func(context.Context) error { return errBoom },
		service.RetryOptions{MaxAttempts: 1})

	assert.Equal(t, errBoom, err)
}

func TestWithRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := WithRetry(ctx, "test", func(context.Context) error {
		called = true
		return nil
	}, fastRetry)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
