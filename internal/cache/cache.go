// Package cache holds the SDK payload cache that fronts active-build reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nivostack/buildhub/internal/models"
)

// keyPrefix namespaces every cache key.
const keyPrefix = "buildhub:sdk:"

// Generation counts a project's invalidations. Payloads are stored under the
// generation observed before they were loaded, so a payload loaded before an
// invalidation can never be read after it.
type Generation int64

// PayloadCache stores active-build payloads per (project, mode).
type PayloadCache interface {
	// Get returns the cached payload and the project's current generation.
	// A miss is (nil, gen, false, nil); pass gen to Set after loading.
	Get(ctx context.Context, projectID string, mode models.Mode) (*models.ActiveBuildPayload, Generation, bool, error)
	Set(ctx context.Context, payload *models.ActiveBuildPayload, gen Generation) error
	Invalidate(ctx context.Context, projectID string) error
}

// Key returns the cache key of a project's payload for mode at generation gen.
func Key(projectID string, gen Generation, mode models.Mode) string {
	return keyPrefix + projectID + ":" + strconv.FormatInt(int64(gen), 10) + ":" + string(mode)
}

// GenerationKey returns the key holding a project's generation counter.
func GenerationKey(projectID string) string {
	return keyPrefix + "gen:" + projectID
}

// RedisCache is a PayloadCache backed by Redis.
type RedisCache struct {
	rdb *goredis.Client
	ttl time.Duration
	log *logrus.Logger
}

// NewRedisCache wraps an existing client. A non-positive ttl disables expiry.
func NewRedisCache(rdb *goredis.Client, ttl time.Duration, log *logrus.Logger) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, log: log}
}

// Dial connects to addr and verifies the server answers.
func Dial(ctx context.Context, addr string) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}

func (c *RedisCache) generation(ctx context.Context, projectID string) (Generation, error) {
	n, err := c.rdb.Get(ctx, GenerationKey(projectID)).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading sdk cache generation: %w", err)
	}

	return Generation(n), nil
}

// Get returns the cached payload for the project's current generation.
func (c *RedisCache) Get(
	ctx context.Context, projectID string, mode models.Mode,
) (*models.ActiveBuildPayload, Generation, bool, error) {
	gen, err := c.generation(ctx, projectID)
	if err != nil {
		return nil, 0, false, err
	}

	key := Key(projectID, gen, mode)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("reading sdk cache: %w", err)
	}

	var p models.ActiveBuildPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.log.WithError(err).WithField("project_id", projectID).Warn("dropping corrupt sdk cache entry")
		_ = c.rdb.Del(ctx, key).Err()

		return nil, gen, false, nil
	}

	return &p, gen, true, nil
}

// Set stores the payload under generation gen.
func (c *RedisCache) Set(ctx context.Context, payload *models.ActiveBuildPayload, gen Generation) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding sdk payload: %w", err)
	}

	if err := c.rdb.Set(ctx, Key(payload.ProjectID, gen, payload.Mode), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing sdk cache: %w", err)
	}

	return nil
}

// Invalidate advances the project's generation and drops the payloads of the
// previous one.
func (c *RedisCache) Invalidate(ctx context.Context, projectID string) error {
	n, err := c.rdb.Incr(ctx, GenerationKey(projectID)).Result()
	if err != nil {
		return fmt.Errorf("invalidating sdk cache: %w", err)
	}

	prev := Generation(n - 1)
	if err := c.rdb.Del(ctx, Key(projectID, prev, models.ModePreview), Key(projectID, prev, models.ModeProduction)).Err(); err != nil {
		c.log.WithError(err).WithField("project_id", projectID).Warn("dropping superseded sdk cache entries failed")
	}

	return nil
}

// NopCache never stores anything. Used when Redis is not configured.
type NopCache struct{}

func (NopCache) Get(context.Context, string, models.Mode) (*models.ActiveBuildPayload, Generation, bool, error) {
	return nil, 0, false, nil
}

func (NopCache) Set(context.Context, *models.ActiveBuildPayload, Generation) error { return nil }

func (NopCache) Invalidate(context.Context, string) error { return nil }

var (
	_ PayloadCache = (*RedisCache)(nil)
	_ PayloadCache = NopCache{}
)
