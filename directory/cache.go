package directory

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultLanguageTTL = 12 * time.Hour

// LanguageSource resolves language names from the system of record.
type LanguageSource interface {
	LanguageName(ctx context.Context, langID int64) (string, error)
}

// LanguageCache fronts a LanguageSource with Redis. A nil client turns the
// cache into a pass-through, and Redis errors fall back to the source.
type LanguageCache struct {
	source LanguageSource
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger

	warnedUnavailable atomic.Bool
}

func NewLanguageCache(source LanguageSource, client *redis.Client, ttl time.Duration, logger *slog.Logger) *LanguageCache {
	if ttl <= 0 {
		ttl = defaultLanguageTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LanguageCache{source: source, client: client, ttl: ttl, logger: logger}
}

// CachedRepository reads users from the database and language names through
// a LanguageCache.
type CachedRepository struct {
	*PGRepository
	languages *LanguageCache
}

func NewCachedRepository(repo *PGRepository, languages *LanguageCache) *CachedRepository {
	return &CachedRepository{PGRepository: repo, languages: languages}
}

func (r *CachedRepository) LanguageName(ctx context.Context, langID int64) (string, error) {
	return r.languages.LanguageName(ctx, langID)
}

// NewRedisClient pings addr and returns nil when Redis cannot be reached so
// callers run without a cache.
func NewRedisClient(ctx context.Context, addr, password string, db int, logger *slog.Logger) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		if logger != nil {
			logger.Warn("redis unavailable, bypassing language cache", slog.String("addr", addr), slog.Any("error", err))
		}
		_ = client.Close()
		return nil
	}
	return client
}

func (c *LanguageCache) LanguageName(ctx context.Context, langID int64) (string, error) {
	key := languageKey(langID)
	if c.client != nil {
		name, err := c.client.Get(ctx, key).Result()
		switch {
		case err == nil && name != "":
			return name, nil
		case err != nil && !errors.Is(err, redis.Nil):
			c.warnUnavailableOnce(err)
		}
	}

	name, err := c.source.LanguageName(ctx, langID)
	if err != nil {
		return "", err
	}

	if c.client != nil {
		if err := c.client.Set(ctx, key, name, c.ttl).Err(); err != nil {
			c.warnUnavailableOnce(err)
		}
	}
	return name, nil
}

func (c *LanguageCache) warnUnavailableOnce(err error) {
	if c.warnedUnavailable.CompareAndSwap(false, true) {
		c.logger.Warn("redis unavailable, bypassing language cache", slog.Any("error", err))
	}
}

func languageKey(langID int64) string {
	return "language:name:" + strconv.FormatInt(langID, 10)
}
