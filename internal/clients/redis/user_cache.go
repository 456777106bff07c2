package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/tastelab-backend/internal/domain"
	"github.com/yungbote/tastelab-backend/internal/observability"
	"github.com/yungbote/tastelab-backend/internal/platform/logger"
)

type UserCacheConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// UserCache keeps public user summaries close to the token check so that
// every authenticated request does not need a user row read.
type UserCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*types.UserSummary, bool)
	Set(ctx context.Context, u types.UserSummary)
	Delete(ctx context.Context, userID uuid.UUID)
	// Client is nil when caching is disabled.
	Client() goredis.UniversalClient
	Close() error
}

type userCache struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	ttl     time.Duration
	prefix  string
	metrics *observability.Metrics
}

// NewUserCache connects to Redis. An empty address yields a no-op cache.
func NewUserCache(log *logger.Logger, cfg UserCacheConfig, metrics *observability.Metrics) (UserCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		log.Info("Redis user cache disabled (REDIS_ADDR not set)")
		return NewNoopUserCache(), nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newUserCache(log, rdb, cfg, metrics), nil
}

func newUserCache(log *logger.Logger, rdb goredis.UniversalClient, cfg UserCacheConfig, metrics *observability.Metrics) *userCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "tastelab:user:"
	}
	return &userCache{
		log:     log.With("service", "RedisUserCache"),
		rdb:     rdb,
		ttl:     ttl,
		prefix:  prefix,
		metrics: metrics,
	}
}

func (c *userCache) key(userID uuid.UUID) string {
	return c.prefix + userID.String()
}

func (c *userCache) Get(ctx context.Context, userID uuid.UUID) (*types.UserSummary, bool) {
	raw, err := c.rdb.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("Redis user cache read failed", "error", err)
			c.metrics.IncUserCache("error")
		} else {
			c.metrics.IncUserCache("miss")
		}
		return nil, false
	}
	var u types.UserSummary
	if err := json.Unmarshal(raw, &u); err != nil || u.ID != userID {
		c.log.Warn("Bad redis user cache payload", "error", err)
		c.metrics.IncUserCache("error")
		return nil, false
	}
	c.metrics.IncUserCache("hit")
	return &u, true
}

func (c *userCache) Set(ctx context.Context, u types.UserSummary) {
	if u.ID == uuid.Nil {
		return
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(u.ID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("Redis user cache write failed", "error", err)
		c.metrics.IncUserCache("error")
	}
}

func (c *userCache) Delete(ctx context.Context, userID uuid.UUID) {
	if err := c.rdb.Del(ctx, c.key(userID)).Err(); err != nil {
		c.log.Warn("Redis user cache delete failed", "error", err)
	}
}

func (c *userCache) Client() goredis.UniversalClient { return c.rdb }

func (c *userCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

type noopUserCache struct{}

func NewNoopUserCache() UserCache { return noopUserCache{} }

func (noopUserCache) Get(context.Context, uuid.UUID) (*types.UserSummary, bool) { return nil, false }
func (noopUserCache) Set(context.Context, types.UserSummary)                    {}
func (noopUserCache) Delete(context.Context, uuid.UUID)                         {}
func (noopUserCache) Client() goredis.UniversalClient                           { return nil }
func (noopUserCache) Close() error                                              { return nil }
