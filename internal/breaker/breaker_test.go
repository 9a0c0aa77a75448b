package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsOnConsecutiveFailures(t *testing.T) {
	b := New("test", Config{FailureThreshold: 3, Cooldown: time.Hour, SuccessThreshold: 1}, nil)
	fail := errors.New("boom")
	for i := 0; i < 3; i++ {
		err := b.Call(context.Background(), func(ctx context.Context) error { return fail })
		require.Error(t, err)
	}
	assert.Equal(t, Open, b.State())

	err := b.Call(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	b := New("test", Config{FailureThreshold: 1, Cooldown: 10 * time.Millisecond, SuccessThreshold: 1}, nil)
	_ = b.Call(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	assert.Equal(t, Open, b.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, HalfOpen, b.State())
}

func TestBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	b := New("test", Config{FailureThreshold: 1, Cooldown: time.Millisecond, SuccessThreshold: 2}, nil)
	_ = b.Call(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, HalfOpen, b.State())

	require.NoError(t, b.Call(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Equal(t, HalfOpen, b.State())

	require.NoError(t, b.Call(context.Background(), func(ctx context.Context) error { return nil }))
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	b := New("test", Config{FailureThreshold: 1, Cooldown: time.Millisecond, SuccessThreshold: 2}, nil)
	_ = b.Call(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	time.Sleep(5 * time.Millisecond)
	require.Equal(t, HalfOpen, b.State())

	_ = b.Call(context.Background(), func(ctx context.Context) error { return errors.New("boom again") })
	assert.Equal(t, Open, b.State())
}

func TestBreaker_FailureRateTripsWithinWindow(t *testing.T) {
	cfg := Config{
		FailureThreshold:     1000, // disable consecutive-count trip
		FailureRateThreshold: 0.5,
		MinimumRequests:      4,
		Window:               time.Minute,
		Cooldown:             time.Hour,
		SuccessThreshold:     1,
	}
	b := New("test", cfg, nil)
	calls := []bool{true, false, true, false, false}
	for _, ok := range calls {
		_ = b.Call(context.Background(), func(ctx context.Context) error {
			if ok {
				return nil
			}
			return errors.New("boom")
		})
	}
	assert.Equal(t, Open, b.State())
}

func TestBreaker_AllowGatesCallWithoutExecutingFn(t *testing.T) {
	b := New("test", Config{FailureThreshold: 1, Cooldown: time.Hour, SuccessThreshold: 1}, nil)
	_ = b.Call(context.Background(), func(ctx context.Context) error { return errors.New("boom") })

	called := false
	err := b.Call(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.False(t, called)
	assert.ErrorIs(t, err, ErrOpen)
}
