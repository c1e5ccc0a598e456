package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBootstrapFailureClassification(t *testing.T) {
	t.Parallel()

	t.Run("success is not a failure", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, bootstrapFailure(nil))
	})

	t.Run("shutdown cancellation is a clean exit", func(t *testing.T) {
		t.Parallel()

		// Bootstrap surfaces a signal-driven cancellation wrapped by the
		// retry layer; it must not be treated as exhaustion.
		err := fmt.Errorf("bootstrap schema: retry canceled: %w", context.Canceled)
		require.NoError(t, bootstrapFailure(err))
	})

	t.Run("retry exhaustion is fatal", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("connection refused")
		err := bootstrapFailure(fmt.Errorf("bootstrap schema: retry exhausted after 5 attempts: %w", cause))
		require.Error(t, err)
		require.ErrorIs(t, err, cause)
		require.Contains(t, err.Error(), "refusing to serve")
	})
}
