package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zeus-insurance/internal/model"
)

func newTestCache(t *testing.T) (*HistoryCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHistoryCache(client, time.Minute, 5*time.Second), srv
}

func TestHistoryRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, hit, err := c.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, hit)

	messages := []model.Message{
		{ID: 1, SessionID: "s1", Role: model.RoleUser, Content: "hello"},
		{ID: 2, SessionID: "s1", Role: model.RoleAssistant, Content: "hi"},
	}
	require.NoError(t, c.SetHistory(ctx, "s1", messages))

	got, hit, err := c.GetHistory(ctx, "s1")
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got, 2)
	assert.Equal(t, "hi", got[1].Content)

	require.NoError(t, c.EndTurn(ctx, "s1"))
	_, hit, err = c.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestHistoryExpires(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetHistory(ctx, "s1", []model.Message{{Content: "x"}}))
	srv.FastForward(2 * time.Minute)

	_, hit, err := c.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestTurnMarkers(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	dirty, err := c.IsDirty(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, c.SetHistory(ctx, "s1", []model.Message{{Content: "x"}}))
	require.NoError(t, c.BeginTurn(ctx, "s1"))
	dirty, err = c.IsDirty(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, dirty)
	_, hit, err := c.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.EndTurn(ctx, "s1"))
	dirty, err = c.IsDirty(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, c.BeginTurn(ctx, "s1"))
	srv.FastForward(6 * time.Second)
	dirty, err = c.IsDirty(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestCorruptHistoryIsReported(t *testing.T) {
	c, srv := newTestCache(t)
	require.NoError(t, srv.Set("zeus:session:s1:history", "{not json"))

	_, _, err := c.GetHistory(context.Background(), "s1")
	assert.Error(t, err)
}
