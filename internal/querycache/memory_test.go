package querycache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wattline/internal/cache"
)

type payload struct {
	Channel string  `msgpack:"channel"`
	Total   float64 `msgpack:"total"`
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	key := cache.QueryEnergyKey("home", "hour", 0, 3600)

	m.Set(ctx, key, payload{Channel: "home", Total: 1.25}, time.Minute)

	var got payload
	require.True(t, m.Get(ctx, key, &got))
	require.Equal(t, payload{Channel: "home", Total: 1.25}, got)
}

func TestMemoryMiss(t *testing.T) {
	m := NewMemory()
	var got payload
	require.False(t, m.Get(context.Background(), "wattline:query:energy:missing", &got))
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	m.Set(ctx, "wattline:query:energy:a", payload{Total: 1}, 30*time.Second)

	var got payload
	require.True(t, m.Get(ctx, "wattline:query:energy:a", &got))

	m.now = func() time.Time { return base.Add(31 * time.Second) }
	require.False(t, m.Get(ctx, "wattline:query:energy:a", &got))
	require.Zero(t, m.Len())
}

func TestMemoryInvalidatePattern(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Set(ctx, cache.QueryEnergyKey("home", "hour", 0, 7200), payload{Total: 1}, time.Minute)
	m.Set(ctx, cache.QueryEnergyKey("grid", "day", 0, 86400), payload{Total: 2}, time.Minute)
	m.Set(ctx, "wattline:other:entry", payload{Total: 3}, time.Minute)

	m.InvalidatePattern(ctx, cache.QueryPattern())

	var got payload
	require.False(t, m.Get(ctx, cache.QueryEnergyKey("home", "hour", 0, 7200), &got))
	require.False(t, m.Get(ctx, cache.QueryEnergyKey("grid", "day", 0, 86400), &got))
	require.True(t, m.Get(ctx, "wattline:other:entry", &got))
}

func TestMemorySkipsNonPositiveTTL(t *testing.T) {
	m := NewMemory()
	m.Set(context.Background(), "wattline:query:energy:b", payload{Total: 1}, 0)
	require.Zero(t, m.Len())
}
