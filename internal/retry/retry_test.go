package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Do(context.Background(), Policy{
		Attempts:       5,
		InitialBackoff: time.Millisecond,
		Multiplier:     2,
	}, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("still down")
	attempts := 0
	err := Do(context.Background(), Policy{
		Attempts:       3,
		InitialBackoff: time.Millisecond,
		Multiplier:     2,
	}, func(context.Context) error {
		attempts++
		return sentinel
	})
	require.Error(t, err)
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 3, attempts)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	t.Parallel()

	fatal := errors.New("fatal")
	attempts := 0
	err := Do(context.Background(), Policy{
		Attempts:       5,
		InitialBackoff: time.Millisecond,
		Retryable:      func(err error) bool { return !errors.Is(err, fatal) },
	}, func(context.Context) error {
		attempts++
		return fatal
	})
	require.ErrorIs(t, err, fatal)
	require.Equal(t, 1, attempts)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, Policy{
		Attempts:       10,
		InitialBackoff: time.Hour,
	}, func(context.Context) error {
		attempts++
		return errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}

func TestDoRejectsZeroAttempts(t *testing.T) {
	t.Parallel()

	err := Do(context.Background(), Policy{}, func(context.Context) error { return nil })
	require.Error(t, err)
}
