package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pricewatch/product-scraper/internal/cache"
)

const mirrorKeyPrefix = "scrape:result:"

// RedisClient is the subset of redis.UniversalClient the mirror uses.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Mirror persists cache entries to Redis so results survive a process
// restart. Writes are best-effort: the in-memory cache stays the source
// of truth and mirror failures are logged, never propagated.
type Mirror struct {
	client RedisClient
	ttl    time.Duration
	logger *slog.Logger
}

func NewMirror(client RedisClient, ttl time.Duration) *Mirror {
	return &Mirror{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "redis-mirror"),
	}
}

// DialMirror connects to Redis and verifies the connection before
// handing back a mirror.
func DialMirror(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewMirror(client, ttl), nil
}

func (m *Mirror) Persist(ctx context.Context, key string, entry cache.Entry) {
	payload, err := json.Marshal(cache.KeyedEntry{Key: key, Entry: entry})
	if err != nil {
		m.logger.Error("failed to marshal entry", "key", key, "error", err.Error())
		return
	}

	if err := m.client.Set(ctx, mirrorKeyPrefix+key, payload, m.ttl).Err(); err != nil {
		m.logger.Error("failed to persist entry", "key", key, "error", err.Error())
	}
}

// ListAll returns every mirrored entry. Entries that fail to decode are
// skipped with a warning.
func (m *Mirror) ListAll(ctx context.Context) ([]cache.KeyedEntry, error) {
	keys, err := m.client.Keys(ctx, mirrorKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list mirrored keys: %w", err)
	}

	entries := make([]cache.KeyedEntry, 0, len(keys))
	for _, key := range keys {
		raw, err := m.client.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				continue // expired between Keys and Get
			}
			return nil, fmt.Errorf("failed to read mirrored entry %s: %w", key, err)
		}

		var entry cache.KeyedEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			m.logger.Warn("skipping undecodable entry", "key", key, "error", err.Error())
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (m *Mirror) Close() error {
	return m.client.Close()
}
