package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilLimiterNeverThrottles(t *testing.T) {
	var l *Limiter
	assert.True(t, l.Unlimited())
	assert.True(t, l.TryAcquire())
	require.NoError(t, l.Acquire(context.Background()))
}

func TestZeroRateIsUnlimited(t *testing.T) {
	l := New(0, 0)
	assert.True(t, l.Unlimited())
	for i := 0; i < 1000; i++ {
		require.True(t, l.TryAcquire())
	}
}

func TestBurstThenThrottle(t *testing.T) {
	l := New(10, 3)

	for i := 0; i < 3; i++ {
		require.True(t, l.TryAcquire(), "request %d is within burst", i)
	}
	assert.False(t, l.TryAcquire(), "bucket should be empty after burst")

	time.Sleep(120 * time.Millisecond)
	assert.True(t, l.TryAcquire(), "one token refills after 100ms")
}

func TestAcquireHonoursContext(t *testing.T) {
	l := New(1, 1)
	require.True(t, l.TryAcquire())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Acquire(ctx)
	require.Error(t, err)
}

func TestSetRate(t *testing.T) {
	l := New(1, 1)
	assert.False(t, l.Unlimited())

	l.SetRate(0)
	assert.True(t, l.Unlimited())

	l.SetRate(5)
	assert.False(t, l.Unlimited())
}
