package cache

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nivostack/buildhub/internal/models"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	return mr, NewRedisCache(rdb, ttl, log)
}

func samplePayload(projectID string, mode models.Mode) *models.ActiveBuildPayload {
	return &models.ActiveBuildPayload{
		ProjectID: projectID,
		Mode:      mode,
		Features: map[models.FeatureType]models.ActiveBuildInfo{
			models.FeatureBusinessConfig: {
				BuildID: "b1",
				Version: 3,
				Items:   []models.SnapshotItem{{Key: "a", Value: json.RawMessage(`1`)}},
			},
		},
		FetchedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestRedisCache_SetGet(t *testing.T) {
	_, c := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	_, gen, ok, err := c.Get(ctx, "p1", models.ModeProduction)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, c.Set(ctx, samplePayload("p1", models.ModeProduction), gen))

	got, _, ok, err := c.Get(ctx, "p1", models.ModeProduction)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.Features[models.FeatureBusinessConfig].Version)
	assert.JSONEq(t, `1`, string(got.Features[models.FeatureBusinessConfig].Items[0].Value))

	_, _, ok, err = c.Get(ctx, "p1", models.ModePreview)
	require.NoError(t, err)
	assert.False(t, ok, "modes must not share entries")
}

func TestRedisCache_Miss(t *testing.T) {
	_, c := setupTestRedis(t, time.Minute)

	got, gen, ok, err := c.Get(context.Background(), "nope", models.ModePreview)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Equal(t, Generation(0), gen)
}

func TestRedisCache_TTL(t *testing.T) {
	mr, c := setupTestRedis(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, samplePayload("p1", models.ModePreview), 0))
	assert.Equal(t, 30*time.Second, mr.TTL(Key("p1", 0, models.ModePreview)))

	mr.FastForward(31 * time.Second)

	_, _, ok, err := c.Get(ctx, "p1", models.ModePreview)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_Invalidate(t *testing.T) {
	mr, c := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, samplePayload("p1", models.ModePreview), 0))
	require.NoError(t, c.Set(ctx, samplePayload("p1", models.ModeProduction), 0))
	require.NoError(t, c.Set(ctx, samplePayload("p2", models.ModeProduction), 0))

	require.NoError(t, c.Invalidate(ctx, "p1"))

	assert.False(t, mr.Exists(Key("p1", 0, models.ModePreview)))
	assert.False(t, mr.Exists(Key("p1", 0, models.ModeProduction)))
	assert.True(t, mr.Exists(Key("p2", 0, models.ModeProduction)))

	_, gen, ok, err := c.Get(ctx, "p1", models.ModeProduction)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Generation(1), gen)
}

func TestRedisCache_SetAfterInvalidateIsUnreadable(t *testing.T) {
	_, c := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	// A reader misses and starts loading at generation 0.
	_, gen, ok, err := c.Get(ctx, "p1", models.ModeProduction)
	require.NoError(t, err)
	require.False(t, ok)

	// A mode change invalidates before the reader writes back.
	require.NoError(t, c.Invalidate(ctx, "p1"))
	require.NoError(t, c.Set(ctx, samplePayload("p1", models.ModeProduction), gen))

	_, _, ok, err = c.Get(ctx, "p1", models.ModeProduction)
	require.NoError(t, err)
	assert.False(t, ok, "payload loaded before the invalidation must not be served")
}

func TestRedisCache_CorruptEntryIsMiss(t *testing.T) {
	mr, c := setupTestRedis(t, time.Minute)

	require.NoError(t, mr.Set(Key("p1", 0, models.ModePreview), "{not json"))

	_, _, ok, err := c.Get(context.Background(), "p1", models.ModePreview)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(Key("p1", 0, models.ModePreview)))
}

func TestRedisCache_ServerDown(t *testing.T) {
	mr, c := setupTestRedis(t, time.Minute)
	mr.Close()

	_, _, _, err := c.Get(context.Background(), "p1", models.ModePreview)
	assert.Error(t, err)
}

func TestNopCache(t *testing.T) {
	var c PayloadCache = NopCache{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, samplePayload("p1", models.ModePreview), 0))

	_, _, ok, err := c.Get(ctx, "p1", models.ModePreview)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate(ctx, "p1"))
}
