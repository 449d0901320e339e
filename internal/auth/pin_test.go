package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "idwallet/pkg/domain-errors"
	"idwallet/pkg/platform/clock"
)

func newTestPin(t *testing.T, c clock.Clock, maxAttempts int, lockout time.Duration) *PinFallback {
	t.Helper()
	hash, err := HashPIN("123456")
	require.NoError(t, err)
	pin, err := NewPinFallback(hash, WithPinClock(c), WithLockout(maxAttempts, lockout))
	require.NoError(t, err)
	return pin
}

func TestHashPIN(t *testing.T) {
	t.Run("hashes a numeric pin", func(t *testing.T) {
		hash, err := HashPIN("4321")
		require.NoError(t, err)
		assert.NotEqual(t, "4321", hash)
	})

	for _, pin := range []string{"", "123", "12ab56", "1234567890123"} {
		t.Run("rejects "+pin, func(t *testing.T) {
			_, err := HashPIN(pin)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestNewPinFallback_RejectsNonBcryptHash(t *testing.T) {
	_, err := NewPinFallback("123456")
	assert.Error(t, err)
}

func TestPinFallback_Authenticate(t *testing.T) {
	ctx := context.Background()
	c := clock.NewManual(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	t.Run("correct pin succeeds and resets failures", func(t *testing.T) {
		pin := newTestPin(t, c, 3, time.Minute)
		res, err := pin.Authenticate(ctx, Challenge{PIN: "000000"})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, 1, pin.FailedAttempts())

		res, err = pin.Authenticate(ctx, Challenge{PIN: "123456"})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, MethodPIN, res.Method)
		assert.Equal(t, 0, pin.FailedAttempts())
	})

	t.Run("malformed pin counts as a failure", func(t *testing.T) {
		pin := newTestPin(t, c, 3, time.Minute)
		res, err := pin.Authenticate(ctx, Challenge{PIN: "abc"})
		require.NoError(t, err)
		assert.Equal(t, ReasonInvalidPIN, res.Reason)
		assert.Equal(t, 1, pin.FailedAttempts())
	})

	t.Run("locks after max attempts until the window passes", func(t *testing.T) {
		pin := newTestPin(t, c, 3, 10*time.Minute)
		for range 3 {
			res, err := pin.Authenticate(ctx, Challenge{PIN: "999999"})
			require.NoError(t, err)
			assert.Equal(t, ReasonInvalidPIN, res.Reason)
		}
		assert.False(t, pin.Available(ctx))

		res, err := pin.Authenticate(ctx, Challenge{PIN: "123456"})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeLocked))
		assert.Equal(t, ReasonLocked, res.Reason)
		assert.False(t, res.Success)

		c.Advance(10 * time.Minute)
		assert.True(t, pin.Available(ctx))
		res, err = pin.Authenticate(ctx, Challenge{PIN: "123456"})
		require.NoError(t, err)
		assert.True(t, res.Success)
	})
}
