package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artstreakbot/internal/store"
	"artstreakbot/internal/testutil"
)

func TestSyncGuildsReconciles(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	gw := testutil.NewFakeGateway()
	svc := NewGuildService(ms, gw)

	// Stored: stale + kept. Gateway: kept + fresh.
	require.NoError(t, ms.CreateGuild(ctx, "stale"))
	require.NoError(t, ms.CreateGuild(ctx, "kept"))
	gw.Guilds = []string{"kept", "fresh"}

	require.NoError(t, svc.SyncGuilds(ctx))

	ids, err := ms.ListGuildIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh", "kept"}, ids)
}

func TestUnregisterGuildDropsEverything(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	svc := NewGuildService(ms, testutil.NewFakeGateway())

	require.NoError(t, svc.RegisterGuild(ctx, "g1"))
	require.NoError(t, ms.AddSubscriber(ctx, "g1", "u1"))

	require.NoError(t, svc.UnregisterGuild(ctx, "g1"))

	_, err := ms.GetGuild(ctx, "g1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	subs, err := ms.Subscribers(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}
