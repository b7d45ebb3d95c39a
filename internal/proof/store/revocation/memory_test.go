package revocation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoprivacy/pkg/platform/sentinel"
)

func TestInMemoryList(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	list := NewInMemoryList(WithClock(func() time.Time { return now }))

	t.Run("revoked token is reported until its ttl elapses", func(t *testing.T) {
		require.NoError(t, list.Revoke(ctx, "tok-a", time.Minute))

		revoked, err := list.IsRevoked(ctx, "tok-a")
		require.NoError(t, err)
		assert.True(t, revoked)

		now = now.Add(time.Minute)
		revoked, err = list.IsRevoked(ctx, "tok-a")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("unknown token is not revoked", func(t *testing.T) {
		revoked, err := list.IsRevoked(ctx, "never-seen")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("non-positive ttl is rejected", func(t *testing.T) {
		err := list.Revoke(ctx, "tok-b", 0)
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})

	t.Run("empty token is ignored", func(t *testing.T) {
		assert.NoError(t, list.Revoke(ctx, "", time.Minute))
	})
}

func TestInMemoryListSweepsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	list := NewInMemoryList(WithClock(func() time.Time { return now }))

	for i := range sweepEvery - 1 {
		require.NoError(t, list.Revoke(ctx, fmt.Sprintf("stale-%d", i), time.Minute))
	}
	require.NoError(t, list.Revoke(ctx, "long-lived", time.Hour))
	require.Equal(t, sweepEvery, list.Len())

	now = now.Add(2 * time.Minute)
	for i := range sweepEvery - 1 {
		require.NoError(t, list.Revoke(ctx, fmt.Sprintf("fresh-%d", i), time.Minute))
	}
	assert.Equal(t, 2*sweepEvery-1, list.Len(), "sweep has not run yet")

	require.NoError(t, list.Revoke(ctx, "trigger", time.Minute))
	assert.Equal(t, sweepEvery+1, list.Len(), "stale entries swept, long-lived and fresh kept")

	revoked, err := list.IsRevoked(ctx, "long-lived")
	require.NoError(t, err)
	assert.True(t, revoked)
}
