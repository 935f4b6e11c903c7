package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reconware/sweeper/internal/model"
)

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	all := []model.Status{
		model.StatusQueued,
		model.StatusRunning,
		model.StatusCompleted,
		model.StatusFailed,
		model.StatusCancelled,
	}

	legal := map[model.Status][]model.Status{
		model.StatusQueued:  {model.StatusRunning, model.StatusCancelled},
		model.StatusRunning: {model.StatusCompleted, model.StatusFailed, model.StatusCancelled},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, next := range legal[from] {
				if next == to {
					want = true
				}
			}
			require.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	require.False(t, model.StatusQueued.Terminal())
	require.False(t, model.StatusRunning.Terminal())
	require.True(t, model.StatusCompleted.Terminal())
	require.True(t, model.StatusFailed.Terminal())
	require.True(t, model.StatusCancelled.Terminal())
}
