package cache

import (
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pricewatch/product-scraper/internal/models"
)

// Entry is a timestamped scrape result. Freshness is judged against
// the cache TTL at read time; a stale entry stays in place until the
// next successful put replaces it.
type Entry struct {
	Timestamp time.Time           `json:"timestamp"`
	Result    models.ScrapeResult `json:"data"`
}

// KeyedEntry pairs an entry with its product key, for enumeration by
// the durable-store mirror and the export job.
type KeyedEntry struct {
	Key   string `json:"key"`
	Entry Entry  `json:"entry"`
}

// Cache maps normalized product keys to timestamped results. The LRU
// bounds memory; expiry is purely read-side so the freshness rule
// stays a single comparison against an injectable clock.
type Cache struct {
	entries *lru.Cache[string, Entry]
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

func New(capacity int, ttl time.Duration) (*Cache, error) {
	entries, err := lru.New[string, Entry](capacity)
	if err != nil {
		return nil, err
	}

	return &Cache{
		entries: entries,
		ttl:     ttl,
		now:     time.Now,
		logger:  slog.Default().With("component", "cache"),
	}, nil
}

// SetClock replaces the time source. Used by tests to simulate expiry.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// Get returns the cached result for key if present and fresh.
func (c *Cache) Get(key string) (models.ScrapeResult, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return models.ScrapeResult{}, false
	}

	if c.now().Sub(entry.Timestamp) >= c.ttl {
		c.logger.Debug("stale cache entry treated as miss", "key", key, "age", c.now().Sub(entry.Timestamp))
		return models.ScrapeResult{}, false
	}

	return entry.Result, true
}

// Put upserts the result for key with the current timestamp.
func (c *Cache) Put(key string, result models.ScrapeResult) Entry {
	entry := Entry{Timestamp: c.now(), Result: result}
	c.entries.Add(key, entry)
	return entry
}

// Entries snapshots all cached entries, fresh and stale alike. The
// durable-store mirror and the export job consume this.
func (c *Cache) Entries() []KeyedEntry {
	keys := c.entries.Keys()
	out := make([]KeyedEntry, 0, len(keys))
	for _, key := range keys {
		if entry, ok := c.entries.Peek(key); ok {
			out = append(out, KeyedEntry{Key: key, Entry: entry})
		}
	}
	return out
}

// Len reports the number of resident entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}
