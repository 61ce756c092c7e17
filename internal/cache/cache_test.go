package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeromicro/go-zero/core/stores/redis/redistest"

	"feishu-assistant/internal/config"
	"feishu-assistant/internal/model"
	"feishu-assistant/pkg/market"
	"feishu-assistant/pkg/markethours"
)

var (
	// Monday 10:00 Beijing: A-shares open.
	cnOpen = time.Date(2025, 1, 13, 10, 0, 0, 0, markethours.Location())
	// Saturday 12:00 Beijing: everything closed.
	weekend = time.Date(2025, 1, 18, 12, 0, 0, 0, markethours.Location())
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestKey(t *testing.T) {
	assert.Equal(t, "assistant:quote:sh600519", Key(KindQuote, "sh600519"))
	assert.Equal(t, "assistant:search:github:ai:7", Key(KindSearch, SearchCode("github", "AI", " ", "7")))
}

func TestTTLPolicyFresh(t *testing.T) {
	p := DefaultTTLPolicy()

	assert.True(t, p.Fresh(KindQuote, markethours.CN, cnOpen.Add(-29*time.Second), cnOpen))
	assert.False(t, p.Fresh(KindQuote, markethours.CN, cnOpen.Add(-31*time.Second), cnOpen))
	assert.True(t, p.Fresh(KindQuote, markethours.CN, weekend.Add(-40*time.Hour), weekend), "closed quote never stale")
	assert.True(t, p.Fresh(KindIndex, markethours.HK, weekend.Add(-time.Hour), weekend))

	assert.True(t, p.Fresh(KindValuation, markethours.CN, weekend.Add(-11*time.Hour), weekend))
	assert.False(t, p.Fresh(KindValuation, markethours.CN, weekend.Add(-13*time.Hour), weekend))
	assert.False(t, p.Fresh(KindValuation, markethours.CN, cnOpen.Add(-3*time.Hour), cnOpen))

	assert.True(t, p.Fresh(KindProfile, markethours.US, weekend.Add(-6*24*time.Hour), weekend))
	assert.False(t, p.Fresh(KindSearch, "", weekend.Add(-31*time.Minute), weekend))
	assert.True(t, p.Fresh(KindNews, "", cnOpen.Add(-5*time.Hour), cnOpen), "news ignores market hours")
	assert.False(t, p.Fresh(KindNews, "", weekend.Add(-7*time.Hour), weekend))
}

func TestNewTTLPolicy(t *testing.T) {
	p := NewTTLPolicy(config.CacheTTL{QuoteOpen: 5, QuoteClosed: 60, Search: 10, News: 120})
	assert.Equal(t, 5*time.Second, p.TTL(KindQuote, true))
	assert.Equal(t, time.Minute, p.TTL(KindQuote, false))
	assert.Equal(t, 10*time.Second, p.TTL(KindSearch, false))
	assert.Equal(t, 2*time.Minute, p.TTL(KindNews, true))
	assert.Equal(t, minRetention, p.Retention())
	assert.Equal(t, 7*24*time.Hour, DefaultTTLPolicy().Retention())
}

func newMemoryCache(t *testing.T, clk *clock) *Cache {
	t.Helper()
	backend, err := NewMemoryBackend(16, time.Hour*24*7)
	require.NoError(t, err)
	return New(backend, DefaultTTLPolicy(), WithClock(clk.now))
}

func TestGetOrFetchRoundTrip(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: cnOpen}
	c := newMemoryCache(t, clk)

	calls := 0
	fetch := func(context.Context) (*market.Quote, error) {
		calls++
		return &market.Quote{
			Symbol: market.MustParseCode("sh600519"), Name: "贵州茅台",
			Price: 1650 + float64(calls), UpdatedAt: clk.t.Truncate(time.Millisecond),
		}, nil
	}

	q, err := GetOrFetch(ctx, c, KindQuote, markethours.CN, "sh600519", fetch)
	require.NoError(t, err)
	assert.InDelta(t, 1651, q.Price, 1e-9)

	clk.advance(10 * time.Second)
	q, err = GetOrFetch(ctx, c, KindQuote, markethours.CN, "sh600519", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "served from cache")
	assert.Equal(t, "贵州茅台", q.Name)
	assert.Equal(t, "sh600519", q.Symbol.Code)
	assert.True(t, q.UpdatedAt.Equal(cnOpen))

	clk.advance(25 * time.Second)
	q, err = GetOrFetch(ctx, c, KindQuote, markethours.CN, "sh600519", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "stale while the market is open")
	assert.InDelta(t, 1652, q.Price, 1e-9)
}

func TestGetOrFetchDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: weekend}
	c := newMemoryCache(t, clk)

	boom := errors.New("upstream down")
	_, err := GetOrFetch(ctx, c, KindQuote, markethours.US, "usAAPL", func(context.Context) (float64, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)

	v, err := GetOrFetch(ctx, c, KindQuote, markethours.US, "usAAPL", func(context.Context) (float64, error) {
		return 190.5, nil
	})
	require.NoError(t, err)
	assert.InDelta(t, 190.5, v, 1e-9)
}

type brokenBackend struct{ sets int }

func (b *brokenBackend) Get(context.Context, string) (Entry, bool, error) {
	return Entry{}, false, fmt.Errorf("connection refused")
}

func (b *brokenBackend) Set(context.Context, string, Entry, time.Duration) error {
	b.sets++
	return fmt.Errorf("connection refused")
}

func TestGetOrFetchSurvivesBackendErrors(t *testing.T) {
	backend := &brokenBackend{}
	c := New(backend, DefaultTTLPolicy())
	calls := 0
	for i := 0; i < 2; i++ {
		v, err := GetOrFetch(context.Background(), c, KindProfile, markethours.US, "usAAPL", func(context.Context) (string, error) {
			calls++
			return "Apple", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "Apple", v)
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, backend.sets)
}

func TestMemoryBackendEvictsBeyondLimit(t *testing.T) {
	ctx := context.Background()
	backend, err := NewMemoryBackend(2, time.Hour)
	require.NoError(t, err)
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, backend.Set(ctx, k, Entry{Payload: []byte(k), FetchedAtMs: 1}, time.Hour))
	}
	_, ok, err := backend.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "least recently used entry evicted")
	e, ok, err := backend.Get(ctx, "c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("c"), e.Payload)
}

func testBackendRoundTrip(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := backend.Get(ctx, "assistant:quote:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	want := Entry{Payload: []byte{0x92, 0x01, 0xa1, 'x'}, FetchedAtMs: cnOpen.UnixMilli()}
	require.NoError(t, backend.Set(ctx, "assistant:quote:x", want, time.Hour))
	got, ok, err := backend.Get(ctx, "assistant:quote:x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.True(t, got.FetchedAt().Equal(cnOpen))
}

func TestRedisBackend(t *testing.T) {
	rds := redistest.CreateRedis(t)
	testBackendRoundTrip(t, NewRedisBackend(rds))

	ttl, err := rds.Ttl("assistant:quote:x")
	require.NoError(t, err)
	assert.InDelta(t, 3600, ttl, 5)
}

func TestStoreBackend(t *testing.T) {
	conn, err := model.NewConn(model.DriverSQLite, "file:cache_store_backend?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, model.Migrate(context.Background(), conn))
	testBackendRoundTrip(t, NewStoreBackend(model.NewCacheEntriesModel(conn)))
}
