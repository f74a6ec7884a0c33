package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyer-group-cli/pkg/apierr"
)

var errUnavailable = &apierr.Error{Provider: "zerobounce", StatusCode: 503}

func fail(context.Context) (int, error) { return 0, errUnavailable }
func succeed(context.Context) (int, error) { return 1, nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker("zerobounce", BreakerConfig{FailureThreshold: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = Call(ctx, b, fail)
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	_, err := Call(ctx, b, func(context.Context) (int, error) {
		called = true
		return 0, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_NonTrippingErrorsResetCount(t *testing.T) {
	b := NewBreaker("hunter", BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	ctx := context.Background()

	_, _ = Call(ctx, b, fail)
	_, _ = Call(ctx, b, func(context.Context) (int, error) { return 0, &apierr.Error{StatusCode: 404} })
	_, _ = Call(ctx, b, fail)

	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenTrialCall(t *testing.T) {
	now := time.Now()
	b := NewBreaker("lusha", BreakerConfig{FailureThreshold: 1, Cooldown: 10 * time.Second})
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = Call(ctx, b, fail)
	require.Equal(t, StateOpen, b.State())

	now = now.Add(11 * time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	v, err := Call(ctx, b, succeed)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker("lusha", BreakerConfig{FailureThreshold: 1, Cooldown: 10 * time.Second})
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = Call(ctx, b, fail)
	now = now.Add(11 * time.Second)
	_, err := Call(ctx, b, fail)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, StateOpen, b.State())
}

func TestCall_NilBreakerPassesThrough(t *testing.T) {
	v, err := Call(context.Background(), nil, succeed)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestBreakers_PerProvider(t *testing.T) {
	r := NewBreakers(BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})
	ctx := context.Background()

	assert.Same(t, r.Get("hunter"), r.Get("hunter"))

	_, _ = Call(ctx, r.Get("hunter"), fail)
	states := r.States()
	assert.Equal(t, StateOpen, states["hunter"])

	_, err := Call(ctx, r.Get("lusha"), succeed)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, r.States()["lusha"])
}

func TestFromConfig(t *testing.T) {
	p := PolicyFromConfig(3, 250, 0)
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, p.InitialBackoff)
	assert.Equal(t, 30*time.Second, p.MaxBackoff)

	bc := BreakerFromConfig(0, 5)
	assert.Equal(t, 5, bc.FailureThreshold)
	assert.Equal(t, 5*time.Second, bc.Cooldown)
}
