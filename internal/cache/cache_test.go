package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewatch/product-scraper/internal/models"
)

func resultFor(title string) models.ScrapeResult {
	record := models.DefaultRecord("myntra", models.AvailabilityInStock)
	record.Title = title
	return models.Succeeded(&record)
}

func TestCachePutGet(t *testing.T) {
	c, err := New(16, time.Hour)
	require.NoError(t, err)

	c.Put("99887766", resultFor("Roadster Men Tshirt"))

	got, ok := c.Get("99887766")
	require.True(t, ok)
	require.NotNil(t, got.Data)
	assert.Equal(t, "Roadster Men Tshirt", got.Data.Title)

	_, ok = c.Get("11223344")
	assert.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	c, err := New(16, time.Hour)
	require.NoError(t, err)

	now := time.Now()
	c.SetClock(func() time.Time { return now })

	c.Put("99887766", resultFor("Roadster Men Tshirt"))

	// Just inside the window.
	now = now.Add(time.Hour - time.Second)
	_, ok := c.Get("99887766")
	assert.True(t, ok)

	// Exactly at the boundary counts as stale.
	now = now.Add(time.Second)
	_, ok = c.Get("99887766")
	assert.False(t, ok)
}

func TestStaleEntryStaysResident(t *testing.T) {
	c, err := New(16, time.Minute)
	require.NoError(t, err)

	now := time.Now()
	c.SetClock(func() time.Time { return now })

	c.Put("99887766", resultFor("Old Title"))
	now = now.Add(2 * time.Minute)

	_, ok := c.Get("99887766")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len(), "stale entry should not be evicted by a read")

	// A later put refreshes the same slot.
	c.Put("99887766", resultFor("New Title"))
	got, ok := c.Get("99887766")
	require.True(t, ok)
	assert.Equal(t, "New Title", got.Data.Title)
	assert.Equal(t, 1, c.Len())
}

func TestCacheCapacityBound(t *testing.T) {
	c, err := New(2, time.Hour)
	require.NoError(t, err)

	c.Put("1", resultFor("a"))
	c.Put("2", resultFor("b"))
	c.Put("3", resultFor("c"))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("1")
	assert.False(t, ok, "oldest entry should be evicted at capacity")
}

func TestCacheEntriesSnapshot(t *testing.T) {
	c, err := New(16, time.Minute)
	require.NoError(t, err)

	now := time.Now()
	c.SetClock(func() time.Time { return now })

	c.Put("1", resultFor("a"))
	now = now.Add(2 * time.Minute)
	c.Put("2", resultFor("b"))

	entries := c.Entries()
	require.Len(t, entries, 2, "snapshot includes stale entries")

	keys := []string{entries[0].Key, entries[1].Key}
	assert.ElementsMatch(t, []string{"1", "2"}, keys)
}
