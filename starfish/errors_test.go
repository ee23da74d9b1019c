package starfish

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	t.Run("with status", func(t *testing.T) {
		err := &Error{Kind: KindClientFault, StatusCode: 404, Method: "GET", Path: "storage/x", Message: "Not Found"}
		assert.Equal(t, "starfish API error GET storage/x: client_fault (HTTP 404): Not Found", err.Error())
	})

	t.Run("without status", func(t *testing.T) {
		err := &Error{Kind: KindTransport, Message: "connection refused"}
		assert.Equal(t, "starfish API error: transport: connection refused", err.Error())
	})
}

func TestErrorIsSentinel(t *testing.T) {
	tests := []struct {
		kind     Kind
		sentinel error
	}{
		{KindAuth, ErrAuth},
		{KindRateLimited, ErrRateLimited},
		{KindClientFault, ErrClientFault},
		{KindServerFault, ErrServerFault},
		{KindTransport, ErrTransport},
		{KindPagination, ErrPagination},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			wrapped := fmt.Errorf("failed to get volumes: %w", &Error{Kind: tt.kind})
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.kind, KindOf(wrapped))

			for _, other := range tests {
				if other.kind != tt.kind {
					assert.NotErrorIs(t, wrapped, other.sentinel)
				}
			}
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, (&Error{Kind: KindRateLimited}).Retryable())
	assert.True(t, (&Error{Kind: KindServerFault}).Retryable())
	assert.True(t, (&Error{Kind: KindTransport}).Retryable())
	assert.False(t, (&Error{Kind: KindAuth}).Retryable())
	assert.False(t, (&Error{Kind: KindClientFault}).Retryable())
	assert.False(t, (&Error{Kind: KindPagination}).Retryable())

	assert.True(t, (&Error{Kind: KindAuth, StatusCode: 403}).IsUnauthorized())
	assert.False(t, (&Error{Kind: KindClientFault, StatusCode: 404}).IsUnauthorized())
	assert.True(t, (&Error{Kind: KindClientFault, StatusCode: 404}).IsNotFound())

	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestBackoffDelay(t *testing.T) {
	b := backoff{base: 10 * time.Millisecond, max: 100 * time.Millisecond}

	t.Run("doubles until capped", func(t *testing.T) {
		want := []time.Duration{10, 20, 40, 80, 100, 100}
		for n, w := range want {
			assert.Equal(t, w*time.Millisecond, b.delay(uint(n), nil), "retry %d", n)
		}
		assert.Equal(t, 100*time.Millisecond, b.delay(63, nil))
	})

	t.Run("jitter keeps delays strictly increasing below the cap", func(t *testing.T) {
		jb := b
		jb.jitter = 0.5
		jb.rand = func() float64 { return 0.999 }
		low := b
		low.jitter = 0.5
		low.rand = func() float64 { return 0 }

		for n := uint(0); n < 3; n++ {
			hi := jb.delay(n, nil)
			next := low.delay(n+1, nil)
			assert.Less(t, hi, next, "retry %d", n)
		}
	})

	t.Run("retry-after wins but is capped", func(t *testing.T) {
		err := &Error{Kind: KindRateLimited, RetryAfter: 50 * time.Millisecond}
		assert.Equal(t, 50*time.Millisecond, b.delay(0, err))

		err.RetryAfter = time.Hour
		assert.Equal(t, 100*time.Millisecond, b.delay(0, err))
	})
}
