package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReal_SleepCancelled verifies Sleep returns promptly on cancellation.
func TestReal_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Real{}.Sleep(ctx, time.Minute)

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

// TestReal_SleepZero verifies non-positive durations do not block.
func TestReal_SleepZero(t *testing.T) {
	err := Real{}.Sleep(context.Background(), 0)
	assert.NoError(t, err)
}

// TestFake_SleepAdvances verifies the fake clock advances without blocking.
func TestFake_SleepAdvances(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f := NewFake(start)

	require.NoError(t, f.Sleep(context.Background(), 30*time.Second))
	require.NoError(t, f.Sleep(context.Background(), 15*time.Second))

	assert.Equal(t, start.Add(45*time.Second), f.Now())
	assert.Equal(t, []time.Duration{30 * time.Second, 15 * time.Second}, f.Sleeps())
}

// TestFake_SleepCancelled verifies context cancellation is honored.
func TestFake_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFake(time.Now())
	err := f.Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
