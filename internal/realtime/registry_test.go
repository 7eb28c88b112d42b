package realtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/realtime"
)

func newRegistry(t *testing.T, opts ...realtime.RegistryOption) *realtime.Registry {
	t.Helper()
	auth := &mockAuth{users: map[string]string{"token-a": "userA", "token-b": "userB"}}
	store := &mockStore{
		blocks: map[string]*domain.Block{
			"card1": {ID: "card1", BoardID: "board1", Type: "card"},
		},
	}
	return realtime.NewRegistry(auth, store, opts...)
}

func TestRegistry_Connect(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	c1 := r.Connect()
	c2 := r.Connect()

	assert.NotEmpty(t, c1.ID())
	assert.NotEqual(t, c1.ID(), c2.ID())

	got, ok := r.Get(c1.ID())
	require.True(t, ok)
	assert.Same(t, c1, got)

	_, authed := r.UserID(c1.ID())
	assert.False(t, authed)

	stats := r.Stats()
	assert.Equal(t, 2, stats.Connections)
	assert.Equal(t, 0, stats.Authenticated)
}

func TestRegistry_Authenticate(t *testing.T) {
	t.Parallel()

	t.Run("valid token", func(t *testing.T) {
		t.Parallel()
		r := newRegistry(t)
		c := r.Connect()

		userID, err := r.Authenticate(context.Background(), c.ID(), "token-a")
		require.NoError(t, err)
		assert.Equal(t, "userA", userID)

		got, ok := r.UserID(c.ID())
		assert.True(t, ok)
		assert.Equal(t, "userA", got)
		assert.Equal(t, 1, r.Stats().Users)
	})

	t.Run("invalid token keeps previous state", func(t *testing.T) {
		t.Parallel()
		r := newRegistry(t)
		c := r.Connect()

		_, err := r.Authenticate(context.Background(), c.ID(), "token-a")
		require.NoError(t, err)

		_, err = r.Authenticate(context.Background(), c.ID(), "nope")
		require.ErrorIs(t, err, realtime.ErrAuthFailed)

		got, ok := r.UserID(c.ID())
		assert.True(t, ok)
		assert.Equal(t, "userA", got)
	})

	t.Run("re-authentication as another user", func(t *testing.T) {
		t.Parallel()
		r := newRegistry(t)
		c := r.Connect()

		_, err := r.Authenticate(context.Background(), c.ID(), "token-a")
		require.NoError(t, err)
		_, err = r.Authenticate(context.Background(), c.ID(), "token-b")
		require.NoError(t, err)

		got, _ := r.UserID(c.ID())
		assert.Equal(t, "userB", got)
		assert.Equal(t, 1, r.Stats().Users)
	})

	t.Run("unknown connection", func(t *testing.T) {
		t.Parallel()
		r := newRegistry(t)
		_, err := r.Authenticate(context.Background(), "missing", "token-a")
		require.ErrorIs(t, err, realtime.ErrUnknownConnection)
	})
}

func TestRegistry_SubscribeRequiresAuthentication(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	c := r.Connect()

	require.ErrorIs(t, r.SubscribeTeam(c.ID(), "team1"), realtime.ErrNotAuthenticated)
	require.ErrorIs(t, r.UnsubscribeTeam(c.ID(), "team1"), realtime.ErrNotAuthenticated)
	require.ErrorIs(t, r.SubscribeBlocks(c.ID(), []string{"card1"}), realtime.ErrNotAuthenticated)
	require.ErrorIs(t, r.UnsubscribeBlocks(c.ID(), []string{"card1"}), realtime.ErrNotAuthenticated)

	stats := r.Stats()
	assert.Zero(t, stats.Teams)
	assert.Zero(t, stats.Blocks)
}

func TestRegistry_SubscriptionsAreIdempotent(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	c := r.Connect()
	_, err := r.Authenticate(context.Background(), c.ID(), "token-a")
	require.NoError(t, err)

	require.NoError(t, r.SubscribeTeam(c.ID(), "team1"))
	require.NoError(t, r.SubscribeTeam(c.ID(), "team1"))
	require.NoError(t, r.SubscribeBlocks(c.ID(), []string{"card1", "card1", "card2"}))
	assert.Equal(t, 1, r.Stats().Teams)
	assert.Equal(t, 2, r.Stats().Blocks)

	require.NoError(t, r.UnsubscribeTeam(c.ID(), "team1"))
	require.NoError(t, r.UnsubscribeTeam(c.ID(), "team1"))
	require.NoError(t, r.UnsubscribeTeam(c.ID(), "never-subscribed"))
	require.NoError(t, r.UnsubscribeBlocks(c.ID(), []string{"card1", "card2", "card3"}))

	stats := r.Stats()
	assert.Zero(t, stats.Teams)
	assert.Zero(t, stats.Blocks)
}

func TestRegistry_Disconnect(t *testing.T) {
	t.Parallel()

	r := newRegistry(t)
	c := r.Connect()
	_, err := r.Authenticate(context.Background(), c.ID(), "token-a")
	require.NoError(t, err)
	require.NoError(t, r.SubscribeTeam(c.ID(), "team1"))
	require.NoError(t, r.SubscribeBlocks(c.ID(), []string{"card1"}))

	assert.True(t, r.Disconnect(c.ID()))
	assert.False(t, r.Disconnect(c.ID()), "second disconnect is a no-op")

	_, ok := r.Get(c.ID())
	assert.False(t, ok)
	assert.Equal(t, realtime.Stats{}, r.Stats())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done should be closed after Disconnect")
	}

	require.ErrorIs(t, r.SubscribeTeam(c.ID(), "team1"), realtime.ErrUnknownConnection)
}

func TestRegistry_SubscribeBlocksWithReadToken(t *testing.T) {
	t.Parallel()

	readTokens := &mockReadTokens{tokens: map[string]string{"board1": "share-1"}}

	t.Run("grants blocks of the shared board", func(t *testing.T) {
		t.Parallel()
		r := newRegistry(t, realtime.WithReadTokens(readTokens))
		c := r.Connect()

		err := r.SubscribeBlocksWithReadToken(context.Background(), c.ID(), "share-1", []string{"card1", "board1"})
		require.NoError(t, err)
		assert.Equal(t, 2, r.Stats().Blocks)

		require.NoError(t, r.UnsubscribeBlocks(c.ID(), []string{"card1"}))
		assert.Equal(t, 1, r.Stats().Blocks)
	})

	t.Run("wrong token", func(t *testing.T) {
		t.Parallel()
		r := newRegistry(t, realtime.WithReadTokens(readTokens))
		c := r.Connect()

		err := r.SubscribeBlocksWithReadToken(context.Background(), c.ID(), "guess", []string{"card1"})
		require.ErrorIs(t, err, realtime.ErrInvalidReadToken)
		assert.Zero(t, r.Stats().Blocks)
	})

	t.Run("disabled without validator", func(t *testing.T) {
		t.Parallel()
		r := newRegistry(t)
		c := r.Connect()

		err := r.SubscribeBlocksWithReadToken(context.Background(), c.ID(), "share-1", []string{"card1"})
		require.ErrorIs(t, err, realtime.ErrInvalidReadToken)
	})
}

func TestRegistry_Stale(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	r := newRegistry(t, realtime.WithClock(clock.Now))

	idle := r.Connect()
	clock.Advance(time.Minute)
	active := r.Connect()

	stale := r.Stale(clock.Now().Add(-30 * time.Second))
	assert.Equal(t, []string{idle.ID()}, stale)

	r.Touch(idle.ID())
	assert.Empty(t, r.Stale(clock.Now().Add(-30*time.Second)))
	assert.ElementsMatch(t, []string{idle.ID(), active.ID()}, r.IDs())
}
