package store

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewatch/product-scraper/internal/cache"
	"github.com/pricewatch/product-scraper/internal/models"
)

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch v := value.(type) {
	case string:
		f.data[key] = v
	case []byte:
		f.data[key] = string(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	val, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *fakeRedis) Keys(ctx context.Context, pattern string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := strings.TrimSuffix(pattern, "*")
	keys := make([]string, 0, len(f.data))
	for key := range f.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return redis.NewStringSliceResult(keys, nil)
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Close() error { return nil }

func entryFor(id, title string) cache.Entry {
	record := models.DefaultRecord("myntra", models.AvailabilityInStock)
	record.ID = id
	record.Title = title
	return cache.Entry{Timestamp: time.Now(), Result: models.Succeeded(&record)}
}

func TestMirrorPersistAndListAll(t *testing.T) {
	client := newFakeRedis()
	m := NewMirror(client, time.Hour)

	m.Persist(context.Background(), "12345678", entryFor("12345678", "Roadster Men Tshirt"))
	m.Persist(context.Background(), "87654321", entryFor("87654321", "HRX Running Shoes"))

	entries, err := m.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byKey := make(map[string]cache.KeyedEntry, len(entries))
	for _, e := range entries {
		byKey[e.Key] = e
	}

	require.Contains(t, byKey, "12345678")
	assert.Equal(t, "Roadster Men Tshirt", byKey["12345678"].Entry.Result.Data.Title)
	require.Contains(t, byKey, "87654321")
	assert.Equal(t, "HRX Running Shoes", byKey["87654321"].Entry.Result.Data.Title)
}

func TestMirrorListAllSkipsUndecodableEntries(t *testing.T) {
	client := newFakeRedis()
	client.data[mirrorKeyPrefix+"broken"] = "{not json"

	m := NewMirror(client, time.Hour)
	m.Persist(context.Background(), "12345678", entryFor("12345678", "Roadster Men Tshirt"))

	entries, err := m.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "12345678", entries[0].Key)
}

func TestMirrorListAllIgnoresForeignKeys(t *testing.T) {
	client := newFakeRedis()
	client.data["session:abc"] = "unrelated"

	m := NewMirror(client, time.Hour)

	entries, err := m.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
